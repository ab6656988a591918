// Package cli provides the command-line interface for waymark.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ccollicutt/waymark/internal/cli/commands"
	"github.com/ccollicutt/waymark/internal/cli/plugins"
	"github.com/ccollicutt/waymark/internal/logging"
)

// Execute runs the root command and returns the exit code. A first argument
// that is not a built-in command is dispatched to a plugin when one is
// installed.
func Execute() int {
	rootCmd := NewRootCommand()
	finder := plugins.NewFinder()

	command := pluginCandidate(rootCmd, os.Args[1:])
	if command != "" {
		if pluginPath, err := finder.Find(command); err == nil {
			return plugins.Run(context.Background(), pluginPath, os.Args[2:], commands.Version)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		if command != "" {
			_, _ = fmt.Fprintln(os.Stderr, plugins.NotFoundMessage(command, builtinNames(rootCmd), finder.Installed()))
			return 2
		}
		// Print error to stderr (SilenceErrors prevents Cobra from doing this)
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2 // Configuration or runtime error
	}
	return commands.ExitCode
}

// pluginCandidate returns the first argument when it names no built-in
// command and is not a flag.
func pluginCandidate(rootCmd *cobra.Command, args []string) string {
	if len(args) == 0 || args[0] == "" || args[0][0] == '-' {
		return ""
	}
	if isBuiltinCommand(rootCmd, args[0]) {
		return ""
	}
	return args[0]
}

// isBuiltinCommand checks if a command name is a built-in cobra command.
func isBuiltinCommand(rootCmd *cobra.Command, name string) bool {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == name || cmd.HasAlias(name) {
			return true
		}
	}
	// Also check for special commands like help and completion
	return name == "help" || name == "completion"
}

func builtinNames(rootCmd *cobra.Command) []string {
	names := []string{"help", "completion"}
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
	}
	return names
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "waymark",
		Short: "Search and lint code annotations",
		Long: `waymark finds, audits and lints the annotations developers leave in code
comments, such as:

  // todo ::: cache the parsed config
  // sec, perf ::: validate before the hot loop

It supports the waymark separator style and the older :ga:, :A: and :M:
prefix dialects, and can migrate between them.

Configuration is read from --config, else .waymark.yaml in the working
directory, else built-in defaults.

PLUGINS:
  An unknown command runs the executable waymark-<command> when one is
  installed. The plugin gets WAYMARK_BIN and WAYMARK_VERSION in its
  environment and can read annotations with "$WAYMARK_BIN search -o json".

  Plugin locations (searched in order):
    1. Same directory as the waymark binary
    2. Each directory in WAYMARK_PLUGIN_PATH
    3. ~/.waymark/plugins/
    4. Anywhere in PATH`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(logLevel)
			if err != nil {
				return err
			}
			commands.Logger = logger
			if commands.NoColor {
				color.NoColor = true
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = commands.Logger.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&commands.ConfigFile, "config", "c", "", "Config file (default: .waymark.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", logging.DefaultLevel, "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&commands.NoColor, "no-color", false, "Disable colored output")

	// Add subcommands
	rootCmd.AddCommand(commands.NewSearchCommand())
	rootCmd.AddCommand(commands.NewListCommand())
	rootCmd.AddCommand(commands.NewAuditCommand())
	rootCmd.AddCommand(commands.NewLintCommand())
	rootCmd.AddCommand(commands.NewFormatCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewDetectCommand())
	rootCmd.AddCommand(commands.NewDiagnoseCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewWatchCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
