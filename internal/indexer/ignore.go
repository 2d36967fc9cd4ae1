package indexer

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// defaultIgnorePatterns covers VCS metadata, build outputs, IDE state,
// caches, logs, temp files, env files, and minified/bundled artefacts, per
// spec §4.7's ignore-pattern composition.
var defaultIgnorePatterns = []string{
	".git/**", ".svn/**", ".hg/**",
	"node_modules/**", "dist/**", "build/**", "out/**", "target/**", "bin/**", "obj/**",
	".idea/**", ".vscode/**", ".vs/**",
	".cache/**", "__pycache__/**", "*.pyc",
	"*.log",
	"tmp/**", "temp/**", "*.tmp",
	".env", ".env.*",
	"*.min.js", "*.min.css", "*.bundle.js", "*.map",
	".cortex/**",
}

// ignoreMatcher is the per-codebase compiled ignore set.
type ignoreMatcher struct {
	patterns []glob.Glob
}

func compileIgnoreMatcher(patterns []string) (*ignoreMatcher, error) {
	m := &ignoreMatcher{}
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			continue // malformed gitignore-style line; skip rather than fail the whole index
		}
		m.patterns = append(m.patterns, g)
	}
	return m, nil
}

// Match reports whether relPath (POSIX-normalised, relative to the
// codebase root) should be ignored.
func (m *ignoreMatcher) Match(relPath string) bool {
	if m.matchesAny(relPath) {
		return true
	}
	// A directory-name pattern like "node_modules/**" should also ignore
	// "node_modules" itself when it is the exact path component.
	return m.matchesAny(relPath + "/**")
}

func (m *ignoreMatcher) matchesAny(path string) bool {
	for _, g := range m.patterns {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// composeIgnorePatterns merges the built-in defaults, every `.*ignore` file
// at the codebase root, the global `~/.context/.contextignore`,
// CUSTOM_IGNORE_PATTERNS, and caller-supplied patterns, per spec §4.7.
func composeIgnorePatterns(codebasePath string, callerPatterns []string) []string {
	patterns := append([]string{}, defaultIgnorePatterns...)

	entries, err := os.ReadDir(codebasePath)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if strings.HasSuffix(e.Name(), "ignore") {
				patterns = append(patterns, readPatternFile(filepath.Join(codebasePath, e.Name()))...)
			}
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		global := filepath.Join(home, ".context", ".contextignore")
		patterns = append(patterns, readPatternFile(global)...)
	}

	if env := os.Getenv("CUSTOM_IGNORE_PATTERNS"); env != "" {
		patterns = append(patterns, splitCommaList(env)...)
	}

	patterns = append(patterns, callerPatterns...)
	return patterns
}

func readPatternFile(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func splitCommaList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IgnoreMatcher is the exported form of ignoreMatcher, for callers outside
// this package (such as the file watcher) that need to skip the same paths
// IndexFull/IndexIncremental would.
type IgnoreMatcher struct {
	m *ignoreMatcher
}

// NewIgnoreMatcher composes the default+file+env+caller ignore patterns for
// codebasePath exactly as discover does, and compiles them into a matcher.
func NewIgnoreMatcher(codebasePath string, callerPatterns []string) (*IgnoreMatcher, error) {
	m, err := compileIgnoreMatcher(composeIgnorePatterns(codebasePath, callerPatterns))
	if err != nil {
		return nil, err
	}
	return &IgnoreMatcher{m: m}, nil
}

// Match reports whether relPath (slash-separated, relative to the codebase
// root) matches an ignore pattern.
func (im *IgnoreMatcher) Match(relPath string) bool {
	return im.m.Match(relPath)
}
