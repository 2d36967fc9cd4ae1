package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureStdout redirects os.Stdout for the duration of fn and returns
// what was written to it.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	old := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()

	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func resetFlags() {
	watchFlag = false
	forceFlag = false
	searchTopK = 5
	searchThreshold = 0.0
	searchFilter = ""
	searchPRF = false
	searchJSON = true
}

// TestIndexThenSearch_RoundTrips runs `cortex index` followed by `cortex
// search` against a small temp codebase using the mock embedding
// provider, exercising the CLI the way a user would invoke it.
func TestIndexThenSearch_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greeter.go"), []byte("package greeter\n\nfunc SayHello() string {\n\treturn \"hello\"\n}\n"), 0o644))

	quiet = true
	defer resetFlags()
	resetFlags()

	require.NoError(t, runIndex(dir))

	out := captureStdout(t, func() {
		require.NoError(t, runSearch(dir, "SayHello"))
	})
	assert.Contains(t, out, "greeter.go")
}

// TestRunCacheInfo_ReportsEntriesAfterIndexing checks that `cortex cache
// stats` reflects the embeddings written during indexing.
func TestRunCacheInfo_ReportsEntriesAfterIndexing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\nfunc A() {}\n"), 0o644))

	quiet = true
	defer resetFlags()
	resetFlags()

	require.NoError(t, runIndex(dir))

	out := captureStdout(t, func() {
		require.NoError(t, runCacheInfo(dir))
	})
	assert.Contains(t, out, "Cache Location")

	var buf bytes.Buffer
	buf.WriteString(out)
	assert.NotContains(t, buf.String(), "Entries: 0")
}
