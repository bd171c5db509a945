package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndRestoreSnapshotConvergesFileContent(t *testing.T) {
	snapDir := t.TempDir()
	targetPath := filepath.Join(t.TempDir(), "x.conf")
	require.NoError(t, os.WriteFile(targetPath, []byte("A"), 0o644))

	store := New(snapDir, nil, nil, nil)

	id, err := store.CreateSnapshot(context.Background(), "before mutation", []string{targetPath}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, os.WriteFile(targetPath, []byte("B"), 0o644))

	require.NoError(t, store.RestoreSnapshot(context.Background(), id))

	content, err := os.ReadFile(targetPath)
	require.NoError(t, err)
	assert.Equal(t, "A", string(content))
}

func TestListSnapshotsSortedNewestFirst(t *testing.T) {
	snapDir := t.TempDir()
	store := New(snapDir, nil, nil, nil)

	id1, err := store.CreateSnapshot(context.Background(), "first", nil, nil)
	require.NoError(t, err)
	id2, err := store.CreateSnapshot(context.Background(), "second", nil, nil)
	require.NoError(t, err)

	summaries, err := store.ListSnapshots()
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	ids := []string{summaries[0].ID, summaries[1].ID}
	assert.Contains(t, ids, id1)
	assert.Contains(t, ids, id2)
	assert.Equal(t, id2, summaries[0].ID)
	assert.Equal(t, id1, summaries[1].ID)
}

func TestDeleteSnapshotRemovesRecord(t *testing.T) {
	snapDir := t.TempDir()
	store := New(snapDir, nil, nil, nil)

	id, err := store.CreateSnapshot(context.Background(), "to delete", nil, nil)
	require.NoError(t, err)

	require.NoError(t, store.DeleteSnapshot(id))

	err = store.RestoreSnapshot(context.Background(), id)
	assert.Error(t, err, "a deleted snapshot cannot be restored")
}

func TestListSnapshotsEmptyDirectoryReturnsEmptySlice(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "does-not-exist-yet"), nil, nil, nil)
	summaries, err := store.ListSnapshots()
	require.NoError(t, err)
	assert.Empty(t, summaries)
}
