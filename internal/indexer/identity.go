package indexer

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
)

// CollectionName derives the store collection name for the codebase at
// absolute path p, per spec §4.7: "<prefix>_<first 8 hex chars of
// md5(P)>", prefix being hybrid_code_chunks when hybrid is on, else
// code_chunks.
func CollectionName(absCodebasePath string, hybrid bool) string {
	abs, err := filepath.Abs(absCodebasePath)
	if err != nil {
		abs = absCodebasePath
	}
	sum := md5.Sum([]byte(abs))
	suffix := hex.EncodeToString(sum[:])[:8]

	prefix := "code_chunks"
	if hybrid {
		prefix = "hybrid_code_chunks"
	}
	return prefix + "_" + suffix
}
