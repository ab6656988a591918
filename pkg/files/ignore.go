package files

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnoreFiles are read from each directory, in this order.
var IgnoreFiles = []string{".gitignore", ".waymarkignore"}

// Rule is one ignore pattern.
type Rule struct {
	Pattern string
	Negate  bool
	DirOnly bool

	// Anchored patterns contain a slash and match relative to the directory
	// that declared them. Others match a base name at any depth.
	Anchored bool
}

// ParseRule parses one line of an ignore file. ok is false for blank lines and
// comments.
func ParseRule(line string) (rule Rule, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Rule{}, false
	}
	if strings.HasPrefix(line, "!") {
		rule.Negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		rule.DirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if strings.Contains(line, "/") {
		rule.Anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	if line == "" {
		return Rule{}, false
	}
	rule.Pattern = line
	return rule, true
}

// Match reports whether rel, a slash-separated path relative to the directory
// that declared the rule, is matched.
func (r Rule) Match(rel string, isDir bool) bool {
	if r.DirOnly && !isDir {
		return false
	}
	if r.Anchored {
		ok, _ := doublestar.Match(r.Pattern, rel)
		return ok
	}
	ok, _ := doublestar.Match(r.Pattern, rel[strings.LastIndex(rel, "/")+1:])
	return ok
}

// Matcher applies a list of rules in order; the last matching rule wins.
type Matcher []Rule

// NewMatcher parses patterns into a Matcher, skipping blanks and comments.
func NewMatcher(patterns []string) Matcher {
	var m Matcher
	for _, p := range patterns {
		if rule, ok := ParseRule(p); ok {
			m = append(m, rule)
		}
	}
	return m
}

// Ignored reports whether rel is excluded by the rules.
func (m Matcher) Ignored(rel string, isDir bool) bool {
	ignored := false
	for _, rule := range m {
		if rule.Match(rel, isDir) {
			ignored = !rule.Negate
		}
	}
	return ignored
}

// IgnoreCache holds the ignore rules declared in each directory. Entries are
// loaded on first use. Concurrent misses for the same directory may both load;
// the last store wins, which is harmless since the loads are identical.
type IgnoreCache struct {
	mu    sync.RWMutex
	rules map[string]Matcher
}

// NewIgnoreCache creates an empty cache. A cache lives for one invocation.
func NewIgnoreCache() *IgnoreCache {
	return &IgnoreCache{rules: make(map[string]Matcher)}
}

// Rules returns the rules declared by the ignore files in dir.
func (c *IgnoreCache) Rules(dir string) (Matcher, error) {
	dir = filepath.Clean(dir)

	c.mu.RLock()
	m, ok := c.rules[dir]
	c.mu.RUnlock()
	if ok {
		return m, nil
	}

	m, err := loadRules(dir)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.rules[dir] = m
	c.mu.Unlock()
	return m, nil
}

// Len returns the number of cached directories.
func (c *IgnoreCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rules)
}

func loadRules(dir string) (Matcher, error) {
	m := Matcher{}
	for _, name := range IgnoreFiles {
		path := filepath.Join(dir, name)
		f, err := os.Open(path) // #nosec G304 -- ignore files live in walked directories
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if rule, ok := ParseRule(scanner.Text()); ok {
				m = append(m, rule)
			}
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return m, nil
}
