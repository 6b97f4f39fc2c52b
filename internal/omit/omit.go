// Package omit loads the [run] omit patterns from an ini-style .coveragerc
// and classifies normalized file paths as omitted or kept.
package omit

import (
	"fmt"
	"os"
	"strings"

	"github.com/gobwas/glob"
	"gopkg.in/ini.v1"
)

// Config holds compiled omit matchers. The zero value omits nothing.
type Config struct {
	patterns []string
	matchers []glob.Glob
}

// Load reads a .coveragerc file from disk. A missing file yields an empty
// config and no error; an unreadable or unparsable file returns an error so
// the caller can warn and continue with an empty omit set.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse compiles the [run] omit list from raw ini content. Patterns may be
// separated by commas or newlines.
func Parse(data []byte) (*Config, error) {
	f, err := ini.LoadSources(ini.LoadOptions{AllowPythonMultilineValues: true}, data)
	if err != nil {
		return nil, fmt.Errorf("parsing coveragerc: %w", err)
	}

	raw := f.Section("run").Key("omit").String()
	cfg := &Config{}
	for _, field := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n'
	}) {
		pattern := normalizePattern(strings.TrimSpace(field))
		if pattern == "" {
			continue
		}
		m, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("compiling omit pattern %q: %w", pattern, err)
		}
		// Patterns written relative to a subdirectory are tolerated by also
		// matching under any leading directory.
		anchored, err := glob.Compile("**/"+pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("compiling omit pattern %q: %w", pattern, err)
		}
		cfg.patterns = append(cfg.patterns, pattern)
		cfg.matchers = append(cfg.matchers, m, anchored)
	}
	return cfg, nil
}

// Patterns returns the normalized pattern list.
func (c *Config) Patterns() []string {
	return c.patterns
}

// Omitted reports whether a normalized path matches any omit pattern.
func (c *Config) Omitted(path string) bool {
	for _, m := range c.matchers {
		if m.Match(path) {
			return true
		}
	}
	return false
}

// normalizePattern converts a coverage.py-style omit pattern into gobwas/glob
// syntax: separators unified, leading "./" dropped, a leading "*/" widened to
// any directory depth, and a trailing "/*" widened to the whole subtree.
func normalizePattern(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	if strings.HasPrefix(p, "*/") {
		p = "**/" + strings.TrimPrefix(p, "*/")
	}
	if strings.HasSuffix(p, "/*") {
		p = strings.TrimSuffix(p, "/*") + "/**"
	}
	return p
}
