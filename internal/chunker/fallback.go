package chunker

import (
	"strings"

	"github.com/cortex-search/cortex/internal/retrieval"
)

// characterFallback splits on paragraph and line boundaries while
// respecting chunkSize. It is a pure string operation and never fails,
// mirroring the teacher's section-then-line splitting idiom but without
// markdown header awareness (the fallback has no syntax to key off of).
func characterFallback(content, language, filePath string, chunkSize int) []retrieval.CodeChunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := strings.Split(content, "\n")

	var chunks []retrieval.CodeChunk
	var buf strings.Builder
	startLine := 1

	flush := func(endLine int) {
		text := buf.String()
		if strings.TrimSpace(text) == "" {
			buf.Reset()
			return
		}
		chunks = append(chunks, retrieval.CodeChunk{
			Content:   strings.TrimRight(text, "\n"),
			StartLine: startLine,
			EndLine:   endLine,
			Language:  language,
			FilePath:  filePath,
		})
		buf.Reset()
	}

	for i, line := range lines {
		lineNum := i + 1
		candidate := buf.Len() + len(line) + 1
		if buf.Len() > 0 && candidate > chunkSize {
			flush(lineNum - 1)
			startLine = lineNum
		}
		buf.WriteString(line)
		buf.WriteString("\n")

		// Paragraph boundary: a blank line closes the current chunk once
		// it has accumulated meaningful content, so large files still get
		// split at natural seams rather than only at the size ceiling.
		if strings.TrimSpace(line) == "" && buf.Len() > chunkSize/4 {
			flush(lineNum)
			startLine = lineNum + 1
		}
	}
	flush(len(lines))

	if len(chunks) == 0 {
		return []retrieval.CodeChunk{{
			Content:   content,
			StartLine: 1,
			EndLine:   len(lines),
			Language:  language,
			FilePath:  filePath,
		}}
	}

	return chunks
}
