// Package plugins dispatches unknown subcommands to external waymark-<name>
// binaries. A plugin receives the path of the running waymark binary in
// WAYMARK_BIN so it can call back for annotation data, for example with
// "waymark search -o json".
package plugins

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ccollicutt/waymark/pkg/query"
)

const (
	// Prefix is prepended to a command name to form the plugin binary name.
	Prefix = "waymark-"

	// PathEnv lists extra plugin directories, separated like PATH.
	PathEnv = "WAYMARK_PLUGIN_PATH"

	// BinEnv carries the running waymark binary to the plugin.
	BinEnv = "WAYMARK_BIN"

	// VersionEnv carries the running waymark version to the plugin.
	VersionEnv = "WAYMARK_VERSION"
)

// ErrPluginNotFound is returned when no plugin binary can be located.
var ErrPluginNotFound = errors.New("plugin not found")

// Finder locates plugin binaries. Dirs are searched in order before PATH.
type Finder struct {
	Dirs     []string
	lookPath func(string) (string, error)
}

// NewFinder searches the directory of the waymark binary, then each entry
// of WAYMARK_PLUGIN_PATH, then ~/.waymark/plugins, then PATH.
func NewFinder() *Finder {
	var dirs []string
	if execPath, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(execPath))
	}
	for _, dir := range filepath.SplitList(os.Getenv(PathEnv)) {
		if dir != "" {
			dirs = append(dirs, dir)
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".waymark", "plugins"))
	}
	return &Finder{Dirs: dirs, lookPath: exec.LookPath}
}

// Find returns the path of the waymark-<command> binary.
func (f *Finder) Find(command string) (string, error) {
	if !validName(command) {
		return "", ErrPluginNotFound
	}
	name := Prefix + command
	for _, dir := range f.Dirs {
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}
	if f.lookPath != nil {
		if path, err := f.lookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrPluginNotFound
}

// Installed lists the commands provided by plugins in Dirs, sorted.
func (f *Finder) Installed() []string {
	seen := make(map[string]bool)
	for _, dir := range f.Dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			command, ok := strings.CutPrefix(e.Name(), Prefix)
			if !ok || !validName(command) {
				continue
			}
			if isExecutable(filepath.Join(dir, e.Name())) {
				seen[command] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// validName rejects names that would escape the plugin directories.
func validName(command string) bool {
	return command != "" && !strings.HasPrefix(command, "-") && !strings.ContainsAny(command, `/\`)
}

// Run executes the plugin with args and the caller's stdio, and returns the
// plugin's exit code.
func Run(ctx context.Context, pluginPath string, args []string, version string) int {
	cmd := exec.CommandContext(ctx, pluginPath, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = Env(os.Environ(), version)

	err := cmd.Run()
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		return exitErr.ExitCode()
	}
	fmt.Fprintf(os.Stderr, "Error: running plugin %s: %v\n", filepath.Base(pluginPath), err)
	return 2
}

// Env returns base extended with the variables a plugin receives.
func Env(base []string, version string) []string {
	env := append([]string{}, base...)
	if self, err := os.Executable(); err == nil {
		env = append(env, BinEnv+"="+self)
	}
	return append(env, VersionEnv+"="+version)
}

// NotFoundMessage explains that command is neither built in nor an installed
// plugin. builtins and installed feed the suggestions.
func NotFoundMessage(command string, builtins, installed []string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "unknown command %q for \"waymark\"\n", command)

	known := append(append([]string{}, builtins...), installed...)
	if suggestions := query.Suggest(command, known, 3); len(suggestions) > 0 {
		fmt.Fprintf(&sb, "\nDid you mean: %s?\n", strings.Join(suggestions, ", "))
	}
	if len(installed) > 0 {
		fmt.Fprintf(&sb, "\nInstalled plugins: %s\n", strings.Join(installed, ", "))
	}

	sb.WriteString("\nTo add it as a plugin, install an executable named ")
	sb.WriteString(Prefix + command)
	sb.WriteString(" next to waymark, in a directory listed in ")
	sb.WriteString(PathEnv)
	sb.WriteString(", in ~/.waymark/plugins or on your PATH.\n")
	sb.WriteString("\nRun 'waymark --help' for usage.")

	return sb.String()
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode()&0111 != 0
}
