package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynchronizer_InitializeCreatesEmptySnapshotWhenMissing(t *testing.T) {
	dir := t.TempDir()
	s := New("/repo/a", dir)
	require.NoError(t, s.Initialize())
	assert.Empty(t, s.snapshot.Files)
}

func TestSynchronizer_FirstRunReportsAllFilesAdded(t *testing.T) {
	dir := t.TempDir()
	s := New("/repo/a", dir)
	require.NoError(t, s.Initialize())

	changes, err := s.CheckForChanges(func() (map[string]string, error) {
		return map[string]string{"a.go": "hash1", "b.go": "hash2"}, nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.go", "b.go"}, changes.Added)
	assert.Empty(t, changes.Removed)
	assert.Empty(t, changes.Modified)
}

func TestSynchronizer_UnchangedTreeYieldsNoChanges(t *testing.T) {
	dir := t.TempDir()
	s := New("/repo/a", dir)
	require.NoError(t, s.Initialize())

	list := func() (map[string]string, error) {
		return map[string]string{"a.go": "hash1"}, nil
	}
	_, err := s.CheckForChanges(list)
	require.NoError(t, err)
	require.NoError(t, s.Commit())

	s2 := New("/repo/a", dir)
	require.NoError(t, s2.Initialize())
	changes, err := s2.CheckForChanges(list)
	require.NoError(t, err)
	assert.Empty(t, changes.Added)
	assert.Empty(t, changes.Removed)
	assert.Empty(t, changes.Modified)
}

func TestSynchronizer_DetectsAddedRemovedModified(t *testing.T) {
	dir := t.TempDir()
	s := New("/repo/a", dir)
	require.NoError(t, s.Initialize())

	_, err := s.CheckForChanges(func() (map[string]string, error) {
		return map[string]string{"a.go": "h1", "b.go": "h2"}, nil
	})
	require.NoError(t, err)
	require.NoError(t, s.Commit())

	s2 := New("/repo/a", dir)
	require.NoError(t, s2.Initialize())
	changes, err := s2.CheckForChanges(func() (map[string]string, error) {
		return map[string]string{"a.go": "h1-modified", "c.go": "h3"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c.go"}, changes.Added)
	assert.Equal(t, []string{"b.go"}, changes.Removed)
	assert.Equal(t, []string{"a.go"}, changes.Modified)
}

func TestSynchronizer_CommitIsAtomic(t *testing.T) {
	dir := t.TempDir()
	s := New("/repo/a", dir)
	require.NoError(t, s.Initialize())
	_, err := s.CheckForChanges(func() (map[string]string, error) {
		return map[string]string{"a.go": "h1"}, nil
	})
	require.NoError(t, err)
	require.NoError(t, s.Commit())

	assert.NoFileExists(t, filepath.Join(dir, identifier("/repo/a")+".json.tmp"))
	assert.FileExists(t, filepath.Join(dir, identifier("/repo/a")+".json"))
}

func TestIdentifier_IsDeterministicAndStable(t *testing.T) {
	a := identifier("/repo/a")
	b := identifier("/repo/a")
	c := identifier("/repo/b")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
