package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ccollicutt/waymark/pkg/lint"
	"github.com/ccollicutt/waymark/pkg/output"
	"github.com/ccollicutt/waymark/pkg/parser"
)

// WatchOptions holds command-line options for the watch command.
type WatchOptions struct {
	ScanOptions
	ReportOptions

	Debounce time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	opts := &WatchOptions{}

	cmd := &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Lint annotations again whenever files change",
		Long: `Lint every file once, then watch the directories holding them and lint
changed files again as they are written.

Changes arriving within the debounce window are linted together. New files are
picked up when they match the sources. Stop with Ctrl-C.

Example:
  waymark watch src/
  waymark watch --debounce 1s -o json .`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 300*time.Millisecond, "Quiet period before changed files are linted")
	addScanFlags(cmd, &opts.ScanOptions)
	addReportFlags(cmd, &opts.ReportOptions)

	return cmd
}

func runWatch(cmd *cobra.Command, args []string, opts *WatchOptions) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := runScan(ctx, args, &opts.ScanOptions)
	if err != nil {
		return err
	}
	linter, err := lint.New(s.cfg.Lint)
	if err != nil {
		return fmt.Errorf("creating linter: %w", err)
	}

	lintScan := func() error {
		report := s.report(output.KindLint)
		report.SetLint(linter.Lint(s.batch.Result.Annotations))
		return s.finish(cmd, report, &opts.ScanOptions, &opts.ReportOptions)
	}
	if err := lintScan(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	known := make(map[string]bool, len(s.files))
	dirs := make(map[string]bool)
	for _, f := range s.files {
		known[f] = true
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("error adding directory to watcher: %w", err)
		}
	}
	Logger.Info("Watching", zap.Int("files", len(known)), zap.Int("dirs", len(dirs)))

	accept := func(ev fsnotify.Event) bool {
		path := filepath.Clean(ev.Name)
		if known[path] || ev.Op&fsnotify.Create == 0 {
			return known[path]
		}
		_, found, err := collectFiles(s.cfg, s.sources)
		if err != nil {
			Logger.Warn("Resolving sources failed", zap.Error(err))
			return false
		}
		for _, f := range found {
			known[f] = true
		}
		return known[path]
	}

	relint := func(ctx context.Context, paths []string) error {
		s.started = time.Now()
		s.files = paths
		batch, err := s.parser.ParseFiles(ctx, paths, parser.BatchOptions{Workers: opts.Workers, Logger: Logger})
		if err != nil {
			return err
		}
		s.batch = batch
		return lintScan()
	}

	return watchLoop(ctx, watcher.Events, watcher.Errors, opts.Debounce, accept, relint)
}

// watchLoop collects accepted write and create events and calls run with the
// changed paths, sorted, once no event has arrived for debounce. It returns
// when ctx is done or the event channel closes.
func watchLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, debounce time.Duration,
	accept func(fsnotify.Event) bool, run func(context.Context, []string) error) error {
	pending := make(map[string]bool)
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 || !accept(ev) {
				continue
			}
			Logger.Debug("File changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			pending[filepath.Clean(ev.Name)] = true
			fire = time.After(debounce)

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			Logger.Warn("Watch error", zap.Error(err))

		case <-fire:
			fire = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = make(map[string]bool)

			if err := run(ctx, paths); err != nil {
				Logger.Error("Lint failed", zap.Strings("files", paths), zap.Error(err))
			}
		}
	}
}
