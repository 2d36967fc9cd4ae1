package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DocumentID derives the stable identity of a VectorDocument from the
// fields that define it. An unchanged chunk re-indexes to the same id.
func DocumentID(relativePath string, startLine, endLine int, content string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%d\x00%s", relativePath, startLine, endLine, content)
	return hex.EncodeToString(h.Sum(nil))
}
