package query

import (
	"strings"

	"github.com/cortex-search/cortex/internal/retrieval"
)

var implementationWords = []string{"function", "class", "method", "implementation", "definition"}
var commonLanguageWords = []string{"javascript", "python", "typescript", "authentication", "configuration", "database"}

func containsAny(haystack string, needles []string) bool {
	lower := strings.ToLower(haystack)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

func containsFilename(variant string, filenames []string) bool {
	for _, f := range filenames {
		if strings.Contains(variant, f) {
			return true
		}
	}
	return false
}

func containsLanguage(variant string, languages []string) bool {
	lower := strings.ToLower(variant)
	for _, l := range languages {
		if strings.Contains(lower, l) {
			return true
		}
	}
	return false
}

func extractTagValues(patterns []string, prefix string) []string {
	var out []string
	for _, p := range patterns {
		if strings.HasPrefix(p, prefix) {
			out = append(out, strings.TrimPrefix(p, prefix))
		}
	}
	return out
}

// SelectVariant picks the single "best" variant for a single-query
// search, per the priority order in §4.3's variant-selection rule.
func SelectVariant(r retrieval.PreprocessingResult) string {
	filenames := extractTagValues(r.DetectedPatterns, "filename:")
	languages := extractTagValues(r.DetectedPatterns, "language:")
	original := r.NormalizedQuery

	for _, v := range r.ExpandedTerms {
		if containsFilename(v, filenames) {
			return v
		}
	}
	for _, v := range r.ExpandedTerms {
		if containsLanguage(v, languages) && v != original {
			return v
		}
	}
	for _, v := range r.ExpandedTerms {
		if containsAny(v, implementationWords) && v != original {
			return v
		}
	}
	for _, v := range r.ExpandedTerms {
		if containsAny(v, commonLanguageWords) && v != original {
			return v
		}
	}

	longest := ""
	for _, v := range r.ExpandedTerms {
		if len(v) > len(longest) {
			longest = v
		}
	}
	if len(longest) > len(original) {
		return longest
	}

	if len(r.ExpandedTerms) == 0 {
		return original
	}
	return original
}

// SelectVariants produces up to n distinct variants for multi-query
// retrieval: priorities (a)-(d) are each run once, then the remaining
// slots are filled with the longest remaining variants, never emitting
// duplicates. If nothing qualifies, it returns [normalized_query].
func SelectVariants(r retrieval.PreprocessingResult, n int) []string {
	filenames := extractTagValues(r.DetectedPatterns, "filename:")
	languages := extractTagValues(r.DetectedPatterns, "language:")
	original := r.NormalizedQuery

	var picked []string
	seen := make(map[string]bool)

	take := func(v string) bool {
		if v == "" || seen[v] || len(picked) >= n {
			return false
		}
		seen[v] = true
		picked = append(picked, v)
		return true
	}

	priorityFilename := func() {
		for _, v := range r.ExpandedTerms {
			if containsFilename(v, filenames) {
				take(v)
				return
			}
		}
	}
	priorityLanguage := func() {
		for _, v := range r.ExpandedTerms {
			if containsLanguage(v, languages) && v != original {
				take(v)
				return
			}
		}
	}
	priorityImplementation := func() {
		for _, v := range r.ExpandedTerms {
			if containsAny(v, implementationWords) && v != original {
				take(v)
				return
			}
		}
	}
	priorityCommon := func() {
		for _, v := range r.ExpandedTerms {
			if containsAny(v, commonLanguageWords) && v != original {
				take(v)
				return
			}
		}
	}

	for _, step := range []func(){priorityFilename, priorityLanguage, priorityImplementation, priorityCommon} {
		if len(picked) >= n {
			break
		}
		step()
	}

	if len(picked) < n {
		sorted := append([]string{}, r.ExpandedTerms...)
		// Longest-first fill, stable among equal lengths (insertion order
		// of ExpandedTerms is preserved by a simple selection pass rather
		// than a full sort, to avoid reordering equal-length ties).
		for len(picked) < n {
			best := ""
			bestIdx := -1
			for i, v := range sorted {
				if v == "" || seen[v] {
					continue
				}
				if len(v) > len(best) {
					best = v
					bestIdx = i
				}
			}
			if bestIdx == -1 {
				break
			}
			take(best)
		}
	}

	if len(picked) == 0 {
		return []string{original}
	}
	return picked
}
