package fsutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyphar/blobvault/internal/fsutil"
	"github.com/cyphar/blobvault/metrics"
)

func newTestFS(t *testing.T) (*fsutil.FS, *metrics.Registry) {
	t.Helper()
	reg := metrics.NewRegistry()
	return fsutil.New(reg), reg
}

func TestExists(t *testing.T) {
	fs, reg := newTestFS(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "present")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	exists, err := fs.Exists(file)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = fs.Exists(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, exists)

	assert.EqualValues(t, 2, reg.Get(metrics.OpExists))
}

func TestMkdirAllAndList(t *testing.T) {
	fs, _ := newTestFS(t)
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	require.NoError(t, fs.MkdirAll(dir, 0o755))
	entries, err := fs.List(filepath.Dir(filepath.Dir(dir)))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Name())
}

func TestRenameIsAtomicAcrossSiblingDirs(t *testing.T) {
	fs, reg := newTestFS(t)
	root := t.TempDir()
	src := filepath.Join(root, "incoming", "src")
	dst := filepath.Join(root, "blobs", "dst")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o600))

	require.NoError(t, fs.Rename(src, dst))
	_, err := os.Stat(src)
	assert.True(t, os.IsNotExist(err))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.EqualValues(t, 1, reg.Get(metrics.OpAtomicMove))
}

func TestDeleteIfExistsIsNoopWhenMissing(t *testing.T) {
	fs, _ := newTestFS(t)
	err := fs.DeleteIfExists(filepath.Join(t.TempDir(), "nope"))
	assert.NoError(t, err)
}

func TestRemoveAllDeletesTree(t *testing.T) {
	fs, _ := newTestFS(t)
	root := t.TempDir()
	nested := filepath.Join(root, "x", "y")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "f"), []byte("z"), 0o600))

	require.NoError(t, fs.RemoveAll(root))
	_, err := os.Stat(root)
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveEmptyDirOnlyRemovesWhenEmpty(t *testing.T) {
	fs, _ := newTestFS(t)
	root := t.TempDir()
	empty := filepath.Join(root, "empty")
	nonEmpty := filepath.Join(root, "nonempty")
	require.NoError(t, os.MkdirAll(empty, 0o755))
	require.NoError(t, os.MkdirAll(nonEmpty, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nonEmpty, "f"), []byte("z"), 0o600))

	require.NoError(t, fs.RemoveEmptyDir(empty))
	_, err := os.Stat(empty)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, fs.RemoveEmptyDir(nonEmpty))
	_, err = os.Stat(nonEmpty)
	assert.NoError(t, err, "non-empty directory must survive")
}

func TestSize(t *testing.T) {
	fs, _ := newTestFS(t)
	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, []byte("0123456789"), 0o600))

	size, err := fs.Size(file)
	require.NoError(t, err)
	assert.EqualValues(t, 10, size)
}

func TestJoinStaysWithinRoot(t *testing.T) {
	fs, _ := newTestFS(t)
	root := t.TempDir()

	path, err := fs.Join(root, "ab")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "ab"), path)
}
