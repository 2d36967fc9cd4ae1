// Package query implements the deterministic, rule-based query
// preprocessor (spec component C3): it expands a user query into a
// bounded, insertion-ordered set of search variants plus detected
// pattern tags, and selects the best variant(s) for retrieval.
package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cortex-search/cortex/internal/retrieval"
)

// Config toggles each preprocessing stage independently, matching §4.3's
// "each stage can be disabled" requirement.
type Config struct {
	AbbreviationExpansion bool
	ConceptualMapping     bool
	CaseSplitting         bool
	FilenameDetection     bool
	LanguageDetection     bool
	ImplementationFocus   bool
	MaxVariants           int
}

// DefaultConfig enables every stage with max_variants = 20.
func DefaultConfig() Config {
	return Config{
		AbbreviationExpansion: true,
		ConceptualMapping:     true,
		CaseSplitting:         true,
		FilenameDetection:     true,
		LanguageDetection:     true,
		ImplementationFocus:   true,
		MaxVariants:           20,
	}
}

// orderedSet is an insertion-ordered, deduplicated collection of strings.
type orderedSet struct {
	order []string
	seen  map[string]bool
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]bool)}
}

func (s *orderedSet) add(v string) {
	if s.seen[v] {
		return
	}
	s.seen[v] = true
	s.order = append(s.order, v)
}

// abbreviations is the fixed whole-word, case-insensitive expansion
// table from §4.3 rule 1.
var abbreviations = map[string]string{
	"js":     "javascript",
	"ts":     "typescript",
	"py":     "python",
	"fn":     "function",
	"var":    "variable",
	"api":    "API",
	"db":     "database",
	"auth":   "authentication",
	"async":  "asynchronous",
	"config": "configuration",
	"util":   "utility",
	"req":    "request",
	"res":    "response",
	"err":    "error",
	"ctx":    "context",
}

// conceptTable maps a detectable concept phrase to the technical terms it
// expands to, per §4.3 rule 2. The glossary names the canonical mapping;
// this reproduces it.
var conceptTable = map[string][]string{
	"error handling":           {"try catch", "exception", "error", "throw"},
	"database connection":      {"connection pool", "database", "query", "transaction"},
	"configuration":            {"config", "settings", "environment variable", "options"},
	"authentication":           {"auth", "login", "session", "token", "credential"},
	"async processing":         {"async", "await", "promise", "concurrency", "goroutine"},
	"file system":              {"filesystem", "file io", "directory", "path"},
	"logging":                  {"logger", "log level", "log message"},
	"data processing":          {"data", "transform", "pipeline"},
	"web development":          {"http", "request", "response", "server"},
	"machine learning":         {"ml", "model", "training", "inference"},
	"data visualization":       {"chart", "graph", "plot"},
	"data analysis":            {"analyze", "metrics", "statistics"},
	"testing":                  {"test", "assertion", "mock", "fixture"},
	"security":                 {"encryption", "validation", "sanitization"},
	"performance optimization": {"cache", "profiling", "benchmark"},
	"database optimization":    {"index", "query plan", "normalization"},
}

// conceptOrder fixes the iteration order over conceptTable so that a query
// matching more than one concept always produces the same variant order and
// the same Reasoning string across runs.
var conceptOrder = []string{
	"error handling", "database connection", "configuration", "authentication",
	"async processing", "file system", "logging", "data processing",
	"web development", "machine learning", "data visualization", "data analysis",
	"testing", "security", "performance optimization", "database optimization",
}

var caseBoundaryPattern = regexp.MustCompile(`[a-z][A-Z]`)

// languagePatterns is the fixed language-pattern table from §4.3 rule 4.
var languagePatterns = map[string]*regexp.Regexp{
	"python":     regexp.MustCompile(`(?i)\bpython\b|\.py\b|\bdjango\b|\bflask\b`),
	"javascript": regexp.MustCompile(`(?i)\bjavascript\b|\bjs\b|\.js\b|\bnode\.?js\b`),
	"typescript": regexp.MustCompile(`(?i)\btypescript\b|\bts\b|\.ts\b`),
	"java":       regexp.MustCompile(`(?i)\bjava\b|\.java\b|\bspring\b`),
	"cpp":        regexp.MustCompile(`(?i)\bc\+\+\b|\bcpp\b|\.cpp\b`),
	"go":         regexp.MustCompile(`(?i)\bgolang\b|\bgo\b|\.go\b`),
	"rust":       regexp.MustCompile(`(?i)\brust\b|\.rs\b|\bcargo\b`),
	"php":        regexp.MustCompile(`(?i)\bphp\b|\.php\b`),
	"ruby":       regexp.MustCompile(`(?i)\bruby\b|\.rb\b|\brails\b`),
	"swift":      regexp.MustCompile(`(?i)\bswift\b|\.swift\b`),
	"kotlin":     regexp.MustCompile(`(?i)\bkotlin\b|\.kt\b`),
	"scala":      regexp.MustCompile(`(?i)\bscala\b|\.scala\b`),
	"csharp":     regexp.MustCompile(`(?i)\bc#\b|\bcsharp\b|\.cs\b`),
}

// languageOrder fixes the iteration order over languagePatterns so that
// DetectedPatterns and the trailing "<query> <lang>" variants come out in
// the same order across runs.
var languageOrder = []string{
	"python", "javascript", "typescript", "java", "cpp", "go", "rust",
	"php", "ruby", "swift", "kotlin", "scala", "csharp",
}

// fileExtensions is the fixed extension set used by filename detection.
const fileExtensions = `ts|tsx|js|jsx|py|java|cpp|c|h|hpp|cs|go|rs|php|rb|swift|kt|scala|m|mm|md|markdown|ipynb`

var (
	filenamePathPattern     = regexp.MustCompile(`(?i)[\w./-]+/[\w.-]+\.(?:` + fileExtensions + `)`)
	filenameDirPattern      = regexp.MustCompile(`(?i)\b[\w-]+/[\w.-]+\.(?:` + fileExtensions + `)`)
	filenameBarePattern     = regexp.MustCompile(`(?i)\b[\w.-]+\.(?:` + fileExtensions + `)\b`)
	implementationFocusWords = []string{"how to", "implement", "create", "build", "write"}
	implementationDefPattern = regexp.MustCompile(`(?i)\b(async|def|class|function)\s+\w+`)
)

// Preprocess runs the six-stage deterministic pipeline over query,
// producing a PreprocessingResult with a bounded, insertion-ordered
// variant set.
func Preprocess(queryText string, cfg Config) retrieval.PreprocessingResult {
	if cfg.MaxVariants <= 0 {
		cfg.MaxVariants = 20
	}

	trimmed := strings.TrimSpace(queryText)
	variants := newOrderedSet()
	variants.add(trimmed)

	var patterns []string
	var reasoning []string

	if cfg.AbbreviationExpansion {
		if v := expandAbbreviations(trimmed); v != trimmed {
			variants.add(v)
			reasoning = append(reasoning, "expanded abbreviations")
		}
	}

	if cfg.ConceptualMapping {
		lower := strings.ToLower(trimmed)
		for _, concept := range conceptOrder {
			if strings.Contains(lower, concept) {
				for _, t := range conceptTable[concept] {
					variants.add(t)
				}
				variants.add(concept)
				reasoning = append(reasoning, fmt.Sprintf("matched concept %q", concept))
			}
		}
	}

	if cfg.CaseSplitting {
		for _, term := range strings.Fields(trimmed) {
			if caseBoundaryPattern.MatchString(term) {
				variants.add(splitCamelCase(term))
			}
			if strings.Contains(term, "_") && !strings.HasPrefix(term, "_") {
				variants.add(strings.ReplaceAll(term, "_", " "))
			}
		}
	}

	if cfg.LanguageDetection {
		for _, lang := range languageOrder {
			if languagePatterns[lang].MatchString(trimmed) {
				patterns = append(patterns, "language:"+lang)
				variants.add(trimmed + " " + lang)
			}
		}
	}

	if cfg.FilenameDetection {
		for _, match := range matchAll(filenamePathPattern, trimmed) {
			patterns = append(patterns, "filename:"+match)
			variants.add(trimmed + " " + basenameWithoutExt(match))
		}
		for _, match := range matchAll(filenameDirPattern, trimmed) {
			patterns = append(patterns, "filename:"+match)
			variants.add(trimmed + " " + basenameWithoutExt(match))
		}
		for _, match := range matchAll(filenameBarePattern, trimmed) {
			patterns = append(patterns, "filename:"+match)
			variants.add(trimmed + " " + basenameWithoutExt(match))
		}
	}

	if cfg.ImplementationFocus {
		lower := strings.ToLower(trimmed)
		for _, word := range implementationFocusWords {
			if strings.Contains(lower, word) {
				variants.add(trimmed + " function class method implementation")
				break
			}
		}
		if implementationDefPattern.MatchString(trimmed) {
			variants.add(trimmed + " implementation definition")
		}
	}

	all := variants.order
	if len(all) > cfg.MaxVariants {
		all = all[:cfg.MaxVariants]
	}

	return retrieval.PreprocessingResult{
		OriginalQuery:    queryText,
		NormalizedQuery:  trimmed,
		ExpandedTerms:    all,
		DetectedPatterns: dedupStrings(patterns),
		Reasoning:        strings.Join(reasoning, "; "),
	}
}

// expandAbbreviations performs whole-word, case-insensitive replacement.
// Word-boundary matching prevents "javascript" (which contains "js" only
// as a substring, never as a standalone word) from firing.
func expandAbbreviations(text string) string {
	result := text
	for abbr, expansion := range abbreviations {
		pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(abbr) + `\b`)
		result = pattern.ReplaceAllString(result, expansion)
	}
	return result
}

// splitCamelCase inserts a space at every [a-z][A-Z] boundary.
func splitCamelCase(term string) string {
	var b strings.Builder
	runes := []rune(term)
	for i, r := range runes {
		b.WriteRune(r)
		if i+1 < len(runes) && isLower(r) && isUpper(runes[i+1]) {
			b.WriteRune(' ')
		}
	}
	return b.String()
}

func isLower(r rune) bool { return r >= 'a' && r <= 'z' }
func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }

func matchAll(pattern *regexp.Regexp, text string) []string {
	return pattern.FindAllString(text, -1)
}

func basenameWithoutExt(path string) string {
	base := path
	if idx := strings.LastIndexAny(base, "/\\"); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndex(base, "."); idx >= 0 {
		base = base[:idx]
	}
	return base
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
