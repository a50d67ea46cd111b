package cas

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyphar/blobvault/internal/fsutil"
	"github.com/cyphar/blobvault/metrics"
)

// freshTree returns a brand-new root blobDirectory over path, with nothing
// cached -- every call reads the directory as it stands on disk right now.
// This is used to exercise get/delete against a hand-placed duplicate
// without going through Store (whose root node, unlike this helper, is a
// single long-lived instance and would need its own cache invalidated to
// observe an out-of-band filesystem change).
func freshTree(path string, digestLen, maxPerDir int) *blobDirectory {
	reg := metrics.NewRegistry()
	fs := fsutil.New(reg)
	return newBlobDirectory(fs, reg, path, "", digestLen, maxPerDir)
}

// writeBlob writes raw content directly to dir/name, bypassing any store
// machinery -- used to hand-construct a deeper duplicate the way a
// crash between a promotion's two steps would leave one.
func writeBlob(t *testing.T, dir, name string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), content, 0o600))
}

func TestGetServesDeeperCopyWhenShallowCopyGoneOutOfBand(t *testing.T) {
	root := t.TempDir()
	const digestLen = 2 // tiny digest so a one-byte prefix reaches a terminal child
	const maxPerDir = 1

	ref, err := ReferenceFromBytes([]byte{0xaa, 0xbb}, digestLen)
	require.NoError(t, err)

	// Place the blob at both depth 0 and depth 1, simulating a crash
	// between a promotion's move and its cleanup step.
	writeBlob(t, root, ref.ID()+".blob", []byte("payload"))
	writeBlob(t, filepath.Join(root, "aa"), ref.ID()+".blob", []byte("payload"))

	// Remove the depth-0 copy directly (out-of-band, not through delete,
	// which would also recurse into and heal the depth-1 copy).
	require.NoError(t, os.Remove(filepath.Join(root, ref.ID()+".blob")))

	blob, err := freshTree(root, digestLen, maxPerDir).get(ref)
	require.NoError(t, err)
	require.NotNil(t, blob, "get must fall through to the deeper copy")
	assert.Equal(t, ref.ID(), blob.ID())
}

func TestDeleteRemovesEveryDuplicateCopy(t *testing.T) {
	root := t.TempDir()
	const digestLen = 2
	const maxPerDir = 1

	ref, err := ReferenceFromBytes([]byte{0xaa, 0xbb}, digestLen)
	require.NoError(t, err)

	writeBlob(t, root, ref.ID()+".blob", []byte("payload"))
	writeBlob(t, filepath.Join(root, "aa"), ref.ID()+".blob", []byte("payload"))

	removed, err := freshTree(root, digestLen, maxPerDir).delete(ref)
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = os.Stat(filepath.Join(root, ref.ID()+".blob"))
	assert.True(t, os.IsNotExist(err), "depth-0 copy must be gone")
	_, err = os.Stat(filepath.Join(root, "aa", ref.ID()+".blob"))
	assert.True(t, os.IsNotExist(err), "depth-1 copy must be gone too")

	blob, err := freshTree(root, digestLen, maxPerDir).get(ref)
	require.NoError(t, err)
	assert.Nil(t, blob)
}
