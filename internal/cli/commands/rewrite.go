package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ccollicutt/waymark/pkg/apperror"
	"github.com/ccollicutt/waymark/pkg/parser"
)

// rewriteFunc transforms one file's content, returning the new content, the
// number of lines changed and the lines it could not handle.
type rewriteFunc func(content string) (string, int, []parser.ParseError)

// rewriteSummary tallies a rewrite over many files.
type rewriteSummary struct {
	Files   int
	Changed int
	Lines   int
	Failed  int
}

// applyRewrite runs fn over every file. With write set, changed files are
// saved in place; otherwise they are listed. Unreadable files are reported
// and skipped.
func applyRewrite(cmd *cobra.Command, paths []string, maxSize int64, write bool, fn rewriteFunc) (rewriteSummary, error) {
	out := cmd.OutOrStdout()
	var sum rewriteSummary

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", apperror.FromIO(path, err))
			continue
		}
		if info.Size() > maxSize {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %s: %v\n", path, apperror.FileTooLarge(info.Size(), maxSize))
			continue
		}
		data, err := os.ReadFile(path) // #nosec G304 -- paths come from the user's sources
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", apperror.FromIO(path, err))
			continue
		}
		sum.Files++

		content, changed, failed := fn(string(data))
		for _, f := range failed {
			sum.Failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s:%d:%d: %s\n", path, f.Line, f.Column, f.Message)
		}
		if changed == 0 {
			continue
		}
		sum.Changed++
		sum.Lines += changed

		if !write {
			fmt.Fprintf(out, "%s: %d line(s) would change\n", path, changed)
			continue
		}
		// #nosec G306 -- keep the file's existing permissions
		if err := os.WriteFile(path, []byte(content), info.Mode().Perm()); err != nil {
			return sum, fmt.Errorf("writing %s: %w", path, err)
		}
		Logger.Info("Rewrote file", zap.String("file", path), zap.Int("lines", changed))
		fmt.Fprintf(out, "%s: %d line(s) changed\n", path, changed)
	}
	return sum, nil
}
