package indexer

import (
	"os"
	"strings"
)

// defaultExtensions is the supported-extensions default set from spec §4.7.
var defaultExtensions = []string{
	".ts", ".tsx", ".js", ".jsx", ".py", ".java", ".cpp", ".c", ".h", ".hpp",
	".cs", ".go", ".rs", ".php", ".rb", ".swift", ".kt", ".scala", ".m", ".mm",
	".md", ".markdown", ".ipynb",
}

// composeExtensions merges the defaults with CUSTOM_EXTENSIONS and any
// caller-provided extensions, dot-prefixing and de-duplicating.
func composeExtensions(callerExtensions []string) map[string]bool {
	set := make(map[string]bool, len(defaultExtensions))
	for _, ext := range defaultExtensions {
		set[ext] = true
	}

	if env := os.Getenv("CUSTOM_EXTENSIONS"); env != "" {
		for _, ext := range splitCommaList(env) {
			set[normalizeExtension(ext)] = true
		}
	}
	for _, ext := range callerExtensions {
		set[normalizeExtension(ext)] = true
	}
	return set
}

// SupportedExtensions returns the full composed extension list (defaults
// + CUSTOM_EXTENSIONS + callerExtensions) as a slice, for callers such as
// the file watcher that need the set rather than the membership map.
func SupportedExtensions(callerExtensions []string) []string {
	set := composeExtensions(callerExtensions)
	out := make([]string, 0, len(set))
	for ext := range set {
		out = append(out, ext)
	}
	return out
}

func normalizeExtension(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}

// languageForExtension maps a file extension to the chunker's language tag.
func languageForExtension(ext string) string {
	switch ext {
	case ".ts":
		return "typescript"
	case ".tsx":
		return "tsx"
	case ".js", ".jsx":
		return "javascript"
	case ".py":
		return "python"
	case ".java":
		return "java"
	case ".go":
		return "go"
	case ".rs":
		return "rust"
	case ".c", ".h":
		return "c"
	case ".cpp", ".hpp":
		return "cpp"
	case ".php":
		return "php"
	case ".rb":
		return "ruby"
	case ".cs":
		return "csharp"
	case ".scala":
		return "scala"
	default:
		return strings.TrimPrefix(ext, ".")
	}
}
