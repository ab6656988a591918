package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ccollicutt/waymark/pkg/apperror"
	"github.com/ccollicutt/waymark/pkg/config"
	"github.com/ccollicutt/waymark/pkg/files"
	"github.com/ccollicutt/waymark/pkg/output"
	"github.com/ccollicutt/waymark/pkg/parser"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// Settings shared by every command, bound to the root command's persistent
// flags.
var (
	ConfigFile string
	NoColor    bool
	Logger     = zap.NewNop()
)

// ScanOptions are the flags of commands that parse a set of files.
type ScanOptions struct {
	Dialect  string
	Progress bool
	Strict   bool
	Workers  int

	// stream picks the stream options for large files once the config is
	// loaded.
	stream func(*config.Config) parser.StreamOptions
}

func addScanFlags(cmd *cobra.Command, opts *ScanOptions) {
	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "Annotation dialect, overriding the config (waymark|ga|anchor|magic)")
	cmd.Flags().BoolVar(&opts.Progress, "progress", false, "Show a progress bar on stderr")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "Treat parse errors as findings")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Files parsed at once (default: config, then CPU count)")
}

// ReportOptions are the flags of commands that print a report.
type ReportOptions struct {
	Output  string
	Verbose bool
	Quiet   bool
}

func addReportFlags(cmd *cobra.Command, opts *ReportOptions) {
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json|csv)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show context, raw lines and timings")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func loadConfig(ctx context.Context) (*config.Config, string, error) {
	cfg, used, err := config.Discover(ctx, ConfigFile)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	if used != "" {
		Logger.Debug("Loaded config", zap.String("path", used))
	}
	return cfg, used, nil
}

// scan is the outcome of parsing the files a command was pointed at.
type scan struct {
	cfg        *config.Config
	configFile string
	parser     *parser.Parser
	sources    []string
	files      []string
	batch      *parser.BatchResult
	started    time.Time
}

// resolveGrammar applies a --dialect override to the configured grammar.
func resolveGrammar(cfg *config.Config, dialect string) (parser.Grammar, error) {
	if dialect == "" {
		return cfg.Grammar.Resolve()
	}
	g, ok := parser.Dialect(dialect)
	if !ok {
		return parser.Grammar{}, apperror.New(apperror.CodeValidation, "unknown dialect %q", dialect)
	}
	return g, nil
}

func newParser(cfg *config.Config, dialect string) (*parser.Parser, error) {
	popts, err := cfg.ParserOptions()
	if err != nil {
		return nil, err
	}
	if popts.Grammar, err = resolveGrammar(cfg, dialect); err != nil {
		return nil, err
	}
	return parser.New(popts)
}

// collectFiles resolves args, or the configured sources when args is empty.
func collectFiles(cfg *config.Config, args []string) ([]string, []string, error) {
	sources := args
	if len(sources) == 0 {
		sources = cfg.Sources
	}
	found, err := files.Collect(sources, files.Options{
		Include: cfg.Include,
		Ignore:  cfg.Ignore,
		Cache:   files.NewIgnoreCache(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("resolving sources: %w", err)
	}
	return sources, found, nil
}

func runScan(ctx context.Context, args []string, opts *ScanOptions) (*scan, error) {
	s := &scan{started: time.Now()}

	var err error
	if s.cfg, s.configFile, err = loadConfig(ctx); err != nil {
		return nil, err
	}
	if s.parser, err = newParser(s.cfg, opts.Dialect); err != nil {
		return nil, fmt.Errorf("creating parser: %w", err)
	}
	if s.sources, s.files, err = collectFiles(s.cfg, args); err != nil {
		return nil, err
	}
	if len(s.files) == 0 {
		return nil, apperror.New(apperror.CodeFileNotFound, "no files matched %v", s.sources)
	}

	workers := opts.Workers
	if workers == 0 {
		workers = s.cfg.Workers
	}
	batchOpts := parser.BatchOptions{Workers: workers, Logger: Logger}
	if opts.stream != nil {
		batchOpts.Stream = opts.stream(s.cfg)
	}
	if opts.Progress {
		bar := newProgressBar(len(s.files), os.Stderr)
		batchOpts.OnFileDone = func(string) { _ = bar.Add(1) }
		defer func() { _ = bar.Finish() }()
	}

	s.batch, err = s.parser.ParseFiles(ctx, s.files, batchOpts)
	if err != nil {
		return nil, fmt.Errorf("parsing files: %w", err)
	}

	Logger.Debug("Parsed files",
		zap.Int("files", s.batch.Files),
		zap.Int("annotations", len(s.batch.Result.Annotations)),
		zap.Int("parse_errors", len(s.batch.Result.Errors)),
		zap.Int("file_errors", len(s.batch.FileErrors)),
		zap.Int("streamed_with_context", len(s.batch.Contexts)),
		zap.Duration("duration", time.Since(s.started)))
	return s, nil
}

func newProgressBar(total int, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("parsing"),
		progressbar.OptionEnableColorCodes(!NoColor),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

// report starts a report of kind over the scan.
func (s *scan) report(kind output.Kind) *output.Report {
	r := output.NewReport(kind, s.batch)
	r.Metadata.ConfigFile = s.configFile
	r.Metadata.Grammar = s.parser.Grammar()
	r.Metadata.Sources = s.sources
	return r
}

// finish prints the report and sets the exit code for parse errors under
// --strict.
func (s *scan) finish(cmd *cobra.Command, r *output.Report, scanOpts *ScanOptions, opts *ReportOptions) error {
	r.Metadata.Duration = time.Since(s.started)

	formatter, err := output.New(opts.Output, output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
		NoColor: NoColor,
	})
	if err != nil {
		return err
	}
	if err := formatter.Format(commandContext(cmd), r, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	if scanOpts.Strict && r.Summary.ParseErrors > 0 {
		ExitCode = 1
	}
	return nil
}
