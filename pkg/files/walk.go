package files

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Walk returns the regular files under root that pass the include patterns and
// are not excluded by ignore rules. Ignore files in a directory apply to
// everything beneath it; deeper files override shallower ones. VCS metadata
// directories are always skipped.
func Walk(root string, opts Options) ([]string, error) {
	w := &walker{
		root:  filepath.Clean(root),
		extra: NewMatcher(opts.Ignore),
		opts:  opts,
	}

	var found []string
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == w.root {
			return nil
		}
		if d.IsDir() && skipDirs[d.Name()] {
			return filepath.SkipDir
		}

		rel := w.rel(path)
		ignored, err := w.ignored(rel, d.IsDir())
		if err != nil {
			return err
		}
		if ignored {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if w.included(rel) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(found)
	return found, nil
}

var skipDirs = map[string]bool{
	".git": true,
	".hg":  true,
	".svn": true,
}

type walker struct {
	root  string
	extra Matcher
	opts  Options
}

func (w *walker) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (w *walker) ignored(rel string, isDir bool) (bool, error) {
	ignored := w.extra.Ignored(rel, isDir)
	if w.opts.Cache == nil {
		return ignored, nil
	}

	// Rules from each ancestor directory, root first, see the path relative
	// to themselves.
	parts := strings.Split(rel, "/")
	dir := w.root
	for i := range parts {
		rules, err := w.opts.Cache.Rules(dir)
		if err != nil {
			return false, err
		}
		sub := strings.Join(parts[i:], "/")
		for _, rule := range rules {
			if rule.Match(sub, isDir) {
				ignored = !rule.Negate
			}
		}
		dir = filepath.Join(dir, parts[i])
	}
	return ignored, nil
}

func (w *walker) included(rel string) bool {
	if len(w.opts.Include) == 0 {
		return true
	}
	base := rel[strings.LastIndex(rel, "/")+1:]
	for _, pattern := range w.opts.Include {
		target := rel
		if !strings.Contains(pattern, "/") {
			target = base
		}
		if ok, _ := doublestar.Match(pattern, target); ok {
			return true
		}
	}
	return false
}
