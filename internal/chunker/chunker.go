// Package chunker decomposes source files into syntax-respecting chunks,
// with a character-based fallback for unsupported or unparseable files.
// Tree-sitter traversal follows the teacher's walkTree/treeSitterParser
// idiom (internal/indexer/parsers/treesitter.go), retargeted from symbol
// extraction to chunk emission.
package chunker

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/cortex-search/cortex/internal/retrieval"
)

// Options configures one Chunk call. ChunkSize and ChunkOverlap are
// character counts.
type Options struct {
	ChunkSize    int // default 2000
	ChunkOverlap int // default 0, disabled
}

// DefaultOptions mirrors the sizes the teacher's own chunking config
// ("internal/config".ChunkingConfig) uses for code-sized chunks.
func DefaultOptions() Options {
	return Options{ChunkSize: 2000, ChunkOverlap: 0}
}

// Chunk decomposes content into an ordered list of CodeChunks. It never
// fails: parser errors and unsupported languages degrade to the
// character-based fallback.
func Chunk(content, language, filePath string, opts Options) []retrieval.CodeChunk {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 2000
	}

	var chunks []retrieval.CodeChunk
	if language == "go" {
		chunks = chunkGo(content, filePath)
	} else if g := lookupGrammar(language); g != nil {
		chunks = chunkTreeSitter(content, language, filePath, g)
	}

	if chunks == nil {
		chunks = characterFallback(content, language, filePath, opts.ChunkSize)
	}

	chunks = refine(chunks, opts.ChunkSize)
	chunks = dedup(chunks)
	if opts.ChunkOverlap > 0 {
		chunks = addOverlap(chunks, opts.ChunkOverlap)
	}
	return chunks
}

// chunkTreeSitter runs the five-step algorithm (parse, group imports,
// pre-order traversal, whole-file fallback, emit) over a tree-sitter tree.
func chunkTreeSitter(content, language, filePath string, g *syntaxGrammar) []retrieval.CodeChunk {
	source := []byte(content)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g.language)

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil // parse failed to produce a root: fall back
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		// "parse produced an error root" is the same fallback trigger as
		// "no splittable node found".
		return nil
	}

	lines := strings.Split(content, "\n")
	consumed := make(map[uintptr]bool)

	var chunks []retrieval.CodeChunk

	if importChunk, ok := groupConsecutiveImports(root, source, g, lines, filePath, language, consumed); ok {
		chunks = append(chunks, importChunk)
	}

	walkSplittable(root, source, g, lines, filePath, language, consumed, &chunks)

	if len(chunks) == 0 {
		chunks = append(chunks, retrieval.CodeChunk{
			Content:   content,
			StartLine: 1,
			EndLine:   int(root.EndPosition().Row) + 1,
			Language:  language,
			FilePath:  filePath,
		})
	}

	return chunks
}

// nodeKey gives a stable, comparable identity for a node's byte range so
// we can mark it "consumed" without storing pointers across tree-sitter's
// cursor machinery.
func nodeKey(n *sitter.Node) uintptr {
	return uintptr(n.StartByte())<<32 | uintptr(n.EndByte())
}

// groupConsecutiveImports implements step 2: starting from the first
// top-level child, accumulate sibling import nodes (skipping comments),
// stopping at the first non-import/non-comment sibling. Two or more
// accumulated imports become one grouped chunk; all of them are marked
// consumed so the traversal below does not re-emit them individually.
func groupConsecutiveImports(root *sitter.Node, source []byte, g *syntaxGrammar, lines []string, filePath, language string, consumed map[uintptr]bool) (retrieval.CodeChunk, bool) {
	if g.importKind == "" {
		return retrieval.CodeChunk{}, false
	}

	var group []*sitter.Node
	count := int(root.ChildCount())
	for i := 0; i < count; i++ {
		child := root.Child(uint(i))
		if child == nil {
			continue
		}
		kind := child.Kind()
		if strings.Contains(kind, "comment") {
			continue
		}
		if kind != g.importKind {
			break
		}
		group = append(group, child)
	}

	if len(group) < 2 {
		return retrieval.CodeChunk{}, false
	}

	first, last := group[0], group[len(group)-1]
	startLine := int(first.StartPosition().Row) + 1
	endLine := int(last.EndPosition().Row) + 1
	text := strings.Join(lines[startLine-1:endLine], "\n")

	for _, n := range group {
		consumed[nodeKey(n)] = true
	}

	return retrieval.CodeChunk{
		Content:   text,
		StartLine: startLine,
		EndLine:   endLine,
		Language:  language,
		FilePath:  filePath,
	}, true
}

// walkSplittable implements step 3: pre-order traversal emitting a chunk
// for every splittable, non-empty, non-consumed node, continuing into
// children regardless so nested splittable nodes also emit chunks (this
// is how the duplicate export_statement/function_declaration pairing
// arises, resolved later by dedup).
func walkSplittable(node *sitter.Node, source []byte, g *syntaxGrammar, lines []string, filePath, language string, consumed map[uintptr]bool, out *[]retrieval.CodeChunk) {
	if node == nil {
		return
	}

	if g.splittable[node.Kind()] && !consumed[nodeKey(node)] {
		startLine := int(node.StartPosition().Row) + 1
		endLine := int(node.EndPosition().Row) + 1
		text := string(source[node.StartByte():node.EndByte()])
		if strings.TrimSpace(text) != "" {
			*out = append(*out, retrieval.CodeChunk{
				Content:   text,
				StartLine: startLine,
				EndLine:   endLine,
				Language:  language,
				FilePath:  filePath,
			})
		}
	}

	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		walkSplittable(node.Child(uint(i)), source, g, lines, filePath, language, consumed, out)
	}
}

// refine implements step 5: split any chunk exceeding chunkSize into
// sub-chunks by accumulating lines, closing the current sub-chunk before
// it would exceed chunkSize (unless empty, in which case the line is
// force-included so a single very long line still becomes a chunk).
func refine(chunks []retrieval.CodeChunk, chunkSize int) []retrieval.CodeChunk {
	var out []retrieval.CodeChunk
	for _, c := range chunks {
		if len(c.Content) <= chunkSize {
			out = append(out, c)
			continue
		}
		out = append(out, splitBySize(c, chunkSize)...)
	}
	return out
}

func splitBySize(c retrieval.CodeChunk, chunkSize int) []retrieval.CodeChunk {
	lines := strings.Split(c.Content, "\n")
	var result []retrieval.CodeChunk
	var buf strings.Builder
	subStart := c.StartLine

	flush := func(endLine int) {
		if buf.Len() == 0 {
			return
		}
		result = append(result, retrieval.CodeChunk{
			Content:   strings.TrimRight(buf.String(), "\n"),
			StartLine: subStart,
			EndLine:   endLine,
			Language:  c.Language,
			FilePath:  c.FilePath,
		})
		buf.Reset()
	}

	for i, line := range lines {
		lineNum := c.StartLine + i
		if buf.Len() > 0 && buf.Len()+len(line)+1 > chunkSize {
			flush(lineNum - 1)
			subStart = lineNum
		}
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	flush(c.StartLine + len(lines) - 1)

	if len(result) == 0 {
		return []retrieval.CodeChunk{c}
	}
	return result
}

// dedup implements step 6: remove chunks whose (start_line, end_line)
// pair already appeared earlier; first occurrence wins.
func dedup(chunks []retrieval.CodeChunk) []retrieval.CodeChunk {
	type rng struct{ start, end int }
	seen := make(map[rng]bool, len(chunks))
	out := make([]retrieval.CodeChunk, 0, len(chunks))
	for _, c := range chunks {
		r := rng{c.StartLine, c.EndLine}
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, c)
	}
	return out
}

// addOverlap implements step 7: prepend to each chunk (except the first)
// the last chunkOverlap characters of the previous chunk's content, and
// adjust start_line by the number of lines in the prepended slice
// (clamped to 1). Per the resolved open question, chunkOverlap is a
// character count; the line adjustment is derived from it.
func addOverlap(chunks []retrieval.CodeChunk, chunkOverlap int) []retrieval.CodeChunk {
	if len(chunks) < 2 {
		return chunks
	}
	out := make([]retrieval.CodeChunk, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Content
		tailLen := chunkOverlap
		if tailLen > len(prev) {
			tailLen = len(prev)
		}
		tail := prev[len(prev)-tailLen:]

		cur := chunks[i]
		cur.Content = tail + cur.Content
		lineShift := strings.Count(tail, "\n")
		newStart := cur.StartLine - lineShift
		if newStart < 1 {
			newStart = 1
		}
		cur.StartLine = newStart
		out[i] = cur
	}
	return out
}
