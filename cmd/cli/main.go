// waymark - code annotation search and lint tool
//
// waymark finds the annotations developers leave in comments, reports
// inventories of them and lints them against a marker policy.
package main

import (
	"os"

	"github.com/ccollicutt/waymark/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
