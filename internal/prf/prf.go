// Package prf implements the RM3-style pseudo-relevance-feedback query
// expansion engine (spec component C5): given an original query and the
// top-K results of a first-pass retrieval, it extracts, scores, filters,
// and interpolates expansion terms with the original query.
package prf

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cortex-search/cortex/internal/retrieval"
	"github.com/cortex-search/cortex/internal/tfidf"
)

// Config is PRFConfig from §4.5.
type Config struct {
	Enabled         bool
	TopK            int
	ExpansionTerms  int
	MinTermFreq     int
	OriginalWeight  float64
	CodeTokens      bool
	MinTermLength   int
	StopWords       map[string]bool
}

// DefaultConfig matches the defaults named in §4.5.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		TopK:           7,
		ExpansionTerms: 8,
		MinTermFreq:    2,
		OriginalWeight: 0.7,
		CodeTokens:     true,
		MinTermLength:  3,
		StopWords:      defaultStopWords(),
	}
}

func defaultStopWords() map[string]bool {
	words := []string{
		"the", "a", "an", "and", "or", "but", "if", "then", "else", "for",
		"while", "do", "this", "that", "these", "those", "is", "are",
		"was", "were", "be", "been", "being", "to", "of", "in", "on",
		"at", "by", "with", "from", "as", "it", "its", "not", "no",
	}
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// Result is an input result to the PRF engine; it needs only the
// content field per §4.5's input contract.
type Result struct {
	Content string
}

// Stats tracks cumulative PRF usage across calls, per §4.5's stats
// contract.
type Stats struct {
	TotalQueries         int
	TotalProcessingTime  time.Duration
	SuccessfulExpansions int
}

// Snapshot reports {total_queries, avg_processing_time, success_rate}.
func (s *Stats) Snapshot() (totalQueries int, avgProcessingTime time.Duration, successRate float64) {
	totalQueries = s.TotalQueries
	if s.TotalQueries > 0 {
		avgProcessingTime = s.TotalProcessingTime / time.Duration(s.TotalQueries)
		successRate = float64(s.SuccessfulExpansions) / float64(s.TotalQueries)
	}
	return
}

// Reset zeroes the stats.
func (s *Stats) Reset() {
	*s = Stats{}
}

var (
	camelBoundary  = regexp.MustCompile(`[a-z][A-Z]`)
	underscoreDash = regexp.MustCompile(`[_-]+`)
	alphaToDigit   = regexp.MustCompile(`([A-Za-z])([0-9])`)
	digitToAlpha   = regexp.MustCompile(`([0-9])([A-Za-z])`)
	nonWord        = regexp.MustCompile(`[^\w\s]+`)
	whitespace     = regexp.MustCompile(`\s+`)

	noiseSingleLetter = regexp.MustCompile(`^[a-z]$`)
	noiseDigitLetter  = regexp.MustCompile(`^\d+[a-z]?$`)
	noiseRepeatedX    = regexp.MustCompile(`^x{2,}$`)
	noiseXYZ          = regexp.MustCompile(`^[xyz]\d*$`)
	startsWithLetter  = regexp.MustCompile(`^[a-zA-Z]`)
	onlyDigits        = regexp.MustCompile(`^\d+$`)
)

// Expand runs the full PRF algorithm. It never returns an error to the
// caller: internal failures are caught and reported via the result's
// Reasoning field, per §4.5 step 9.
func Expand(originalQuery string, results []Result, cfg Config, stats *Stats) (result retrieval.PRFResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result = retrieval.PRFResult{
				OriginalQuery:    originalQuery,
				ExpandedQuery:    originalQuery,
				Reasoning:        fmt.Sprintf("PRF expansion failed: %v", r),
				ProcessingTimeMS: time.Since(start).Milliseconds(),
			}
		}
	}()

	result = expand(originalQuery, results, cfg)
	result.ProcessingTimeMS = time.Since(start).Milliseconds()

	if stats != nil {
		stats.TotalQueries++
		stats.TotalProcessingTime += time.Since(start)
		if result.ExpandedQuery != result.OriginalQuery {
			stats.SuccessfulExpansions++
		}
	}

	return result
}

func expand(originalQuery string, results []Result, cfg Config) retrieval.PRFResult {
	if strings.TrimSpace(originalQuery) == "" {
		return retrieval.PRFResult{
			OriginalQuery: originalQuery,
			ExpandedQuery: originalQuery,
			Reasoning:     "invalid argument: empty original query",
		}
	}

	required := cfg.TopK
	if required > 3 {
		required = 3
	}
	if len(results) < required {
		return retrieval.PRFResult{
			OriginalQuery:     originalQuery,
			ExpandedQuery:     originalQuery,
			DocumentsAnalyzed: 0,
			Reasoning:         fmt.Sprintf("Insufficient documents: %d < %d required", len(results), required),
		}
	}

	topK := results
	if len(topK) > cfg.TopK {
		topK = topK[:cfg.TopK]
	}

	preprocessed := make([]string, len(topK))
	for i, r := range topK {
		preprocessed[i] = preprocess(r.Content, cfg.CodeTokens)
	}

	corpus := tfidf.NewCorpus(preprocessed)

	type candidate struct {
		score         float64
		frequency     int
		documentCount int
	}
	candidates := make(map[string]*candidate)

	for i := 0; i < corpus.Size(); i++ {
		tokens := corpus.Tokens(i)
		seenInDoc := make(map[string]bool)
		for _, tok := range tokens {
			c, ok := candidates[tok]
			if !ok {
				c = &candidate{}
				candidates[tok] = c
			}
			c.frequency++
			if score := corpus.TFIDF(tok, tokens); score > c.score {
				c.score = score
			}
			if !seenInDoc[tok] {
				seenInDoc[tok] = true
				c.documentCount++
			}
		}
	}

	lowerOriginal := strings.ToLower(originalQuery)

	var terms []retrieval.ExpansionTerm
	for term, c := range candidates {
		if c.frequency < cfg.MinTermFreq {
			continue
		}
		if !passesFilter(term, cfg, lowerOriginal) {
			continue
		}
		terms = append(terms, retrieval.ExpansionTerm{
			Term:          term,
			Score:         c.score,
			Frequency:     c.frequency,
			DocumentCount: c.documentCount,
			Source:        retrieval.ExpansionSourceTFIDF,
		})
	}

	sortTermsByScoreDesc(terms)
	if len(terms) > cfg.ExpansionTerms {
		terms = terms[:cfg.ExpansionTerms]
	}

	expandedQuery := buildExpandedQuery(originalQuery, terms, cfg.OriginalWeight)

	return retrieval.PRFResult{
		OriginalQuery:     originalQuery,
		ExpandedQuery:     expandedQuery,
		ExpansionTerms:    terms,
		DocumentsAnalyzed: len(topK),
		Reasoning:         buildReasoning(len(topK), len(candidates), terms, cfg.CodeTokens),
	}
}

// preprocess implements §4.5 step 3: optional code-aware tokenization
// followed by unconditional normalization.
func preprocess(content string, codeTokens bool) string {
	text := content
	if codeTokens {
		text = camelBoundary.ReplaceAllStringFunc(text, func(m string) string {
			return string(m[0]) + " " + string(m[1])
		})
		text = underscoreDash.ReplaceAllString(text, " ")
		text = alphaToDigit.ReplaceAllString(text, "$1 $2")
		text = digitToAlpha.ReplaceAllString(text, "$1 $2")
	}
	text = nonWord.ReplaceAllString(text, " ")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.ToLower(strings.TrimSpace(text))
}

// passesFilter implements §4.5 step 5.
func passesFilter(term string, cfg Config, lowerOriginal string) bool {
	if len(term) < cfg.MinTermLength {
		return false
	}
	if cfg.StopWords[term] {
		return false
	}
	if strings.Contains(lowerOriginal, term) {
		return false
	}
	if onlyDigits.MatchString(term) {
		return false
	}
	if !startsWithLetter.MatchString(term) {
		return false
	}
	if noiseSingleLetter.MatchString(term) || noiseDigitLetter.MatchString(term) ||
		noiseRepeatedX.MatchString(term) || noiseXYZ.MatchString(term) {
		return false
	}
	return true
}

func sortTermsByScoreDesc(terms []retrieval.ExpansionTerm) {
	for i := 1; i < len(terms); i++ {
		j := i
		for j > 0 && terms[j-1].Score < terms[j].Score {
			terms[j-1], terms[j] = terms[j], terms[j-1]
			j--
		}
	}
}

// buildExpandedQuery implements §4.5 step 7: concatenation order depends
// on how much weight the expansion terms carry relative to the original.
func buildExpandedQuery(original string, terms []retrieval.ExpansionTerm, originalWeight float64) string {
	if len(terms) == 0 {
		return original
	}

	words := make([]string, len(terms))
	for i, t := range terms {
		words[i] = t.Term
	}
	expansion := strings.Join(words, " ")

	if 1-originalWeight > 0.5 {
		return expansion + " " + original
	}
	return original + " " + expansion
}

func buildReasoning(docsAnalyzed, candidatesExtracted int, terms []retrieval.ExpansionTerm, codeTokens bool) string {
	var topThree []string
	var total float64
	for i, t := range terms {
		if i < 3 {
			topThree = append(topThree, t.Term)
		}
		total += t.Score
	}
	avg := 0.0
	if len(terms) > 0 {
		avg = total / float64(len(terms))
	}

	reasoning := fmt.Sprintf(
		"Analyzed %d documents, extracted %d candidate terms, top terms: [%s], avg retained score: %.4f",
		docsAnalyzed, candidatesExtracted, strings.Join(topThree, ", "), avg,
	)
	if codeTokens {
		reasoning += "; code-aware tokenization enabled"
	}
	return reasoning
}
