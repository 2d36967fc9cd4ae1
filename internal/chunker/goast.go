package chunker

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/cortex-search/cortex/internal/retrieval"
)

// chunkGo special-cases Go source through go/ast, mirroring the teacher's
// own parseGoFile routing (it special-cases Go rather than sending it
// through tree-sitter) but emitting CodeChunks instead of symbol/type
// extraction.
func chunkGo(content, filePath string) []retrieval.CodeChunk {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filePath, content, parser.ParseComments)
	if err != nil || file == nil {
		return nil // fall back to character splitter
	}

	lines := strings.Split(content, "\n")

	var chunks []retrieval.CodeChunk

	// Consecutive-import grouping: Go groups all of its imports into one
	// GenDecl with Tok == token.IMPORT when written as `import (...)`, or
	// as several adjacent single-import GenDecls otherwise. Either way,
	// accumulate adjacent import declarations at the top of Decls and
	// chunk them together. A single lone import is not "consecutive"; it
	// falls through to the general traversal below and is emitted like
	// any other GenDecl.
	var importDecls []ast.Decl
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.IMPORT {
			break
		}
		importDecls = append(importDecls, gd)
	}
	groupedImports := len(importDecls) >= 2
	if groupedImports {
		first := fset.Position(importDecls[0].Pos()).Line
		last := fset.Position(importDecls[len(importDecls)-1].End()).Line
		chunks = append(chunks, retrieval.CodeChunk{
			Content:   extractLines(lines, first, last),
			StartLine: first,
			EndLine:   last,
			Language:  "go",
			FilePath:  filePath,
		})
	}

	ast.Inspect(file, func(n ast.Node) bool {
		var start, end int
		switch decl := n.(type) {
		case *ast.FuncDecl:
			start = fset.Position(decl.Pos()).Line
			end = fset.Position(decl.End()).Line
		case *ast.GenDecl:
			if decl.Tok == token.IMPORT && groupedImports {
				return true // already emitted as part of the grouped import chunk above
			}
			start = fset.Position(decl.Pos()).Line
			end = fset.Position(decl.End()).Line
		default:
			return true
		}

		text := extractLines(lines, start, end)
		if strings.TrimSpace(text) == "" {
			return true
		}
		chunks = append(chunks, retrieval.CodeChunk{
			Content:   text,
			StartLine: start,
			EndLine:   end,
			Language:  "go",
			FilePath:  filePath,
		})
		return true
	})

	if len(chunks) == 0 {
		chunks = append(chunks, retrieval.CodeChunk{
			Content:   content,
			StartLine: 1,
			EndLine:   len(lines),
			Language:  "go",
			FilePath:  filePath,
		})
	}

	return chunks
}

// extractLines extracts source lines from startLine to endLine (1-indexed,
// inclusive), matching the teacher's parsers.extractLines helper.
func extractLines(lines []string, startLine, endLine int) string {
	if startLine < 1 || endLine < 1 || startLine > len(lines) {
		return ""
	}
	start := startLine - 1
	end := endLine
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start:end], "\n")
}
