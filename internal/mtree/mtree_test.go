package mtree

import (
	"errors"
	"fmt"
	"testing"

	apperrors "arbor/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLoader serves dirtrees from a map and counts reads.
type mockLoader struct {
	trees map[string]*DirTree
	reads int
	fail  error
}

func newMockLoader() *mockLoader {
	return &mockLoader{trees: make(map[string]*DirTree)}
}

func (m *mockLoader) ReadDirTree(checksum string) (*DirTree, error) {
	m.reads++
	if m.fail != nil {
		return nil, m.fail
	}
	dt, ok := m.trees[checksum]
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("dirtree %s not found", checksum))
	}
	return dt, nil
}

func TestMutableTree_ReplaceFile(t *testing.T) {
	tree := New()

	require.NoError(t, tree.ReplaceFile("README", "sum1"))
	require.NoError(t, tree.ReplaceFile("README", "sum2"))

	file, sub, err := tree.Lookup("README")
	require.NoError(t, err)
	assert.Equal(t, "sum2", file)
	assert.Nil(t, sub)

	_, err = tree.EnsureDir("README")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	for _, name := range []string{"", ".", "..", "a/b"} {
		assert.ErrorIs(t, tree.ReplaceFile(name, "x"), apperrors.ErrValidation, "name %q", name)
	}
}

func TestMutableTree_EnsureDir(t *testing.T) {
	tree := New()

	sub, err := tree.EnsureDir("src")
	require.NoError(t, err)
	again, err := tree.EnsureDir("src")
	require.NoError(t, err)
	assert.Same(t, sub, again)

	assert.ErrorIs(t, tree.ReplaceFile("src", "x"), apperrors.ErrValidation)

	file, found, err := tree.Lookup("src")
	require.NoError(t, err)
	assert.Empty(t, file)
	assert.Same(t, sub, found)
}

func TestMutableTree_Remove(t *testing.T) {
	tree := New()
	require.NoError(t, tree.ReplaceFile("a", "sum"))
	_, err := tree.EnsureDir("d")
	require.NoError(t, err)

	require.NoError(t, tree.Remove("a", false))
	require.NoError(t, tree.Remove("d", false))
	require.NoError(t, tree.Remove("missing", true))
	assert.ErrorIs(t, tree.Remove("missing", false), apperrors.ErrNotFound)

	files, err := tree.Files()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestMutableTree_Listing(t *testing.T) {
	tree := New()
	for _, name := range []string{"b", "a", "c"} {
		require.NoError(t, tree.ReplaceFile(name, "sum-"+name))
	}
	for _, name := range []string{"z", "y"} {
		_, err := tree.EnsureDir(name)
		require.NoError(t, err)
	}

	files, err := tree.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, files)

	dirs, err := tree.Subdirs()
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "z"}, dirs)
}

func TestMutableTree_LazyLoad(t *testing.T) {
	loader := newMockLoader()
	loader.trees["root"] = &DirTree{
		Files: map[string]string{"f": "sum-f"},
		Dirs:  map[string]string{"d": "child"},
	}
	loader.trees["child"] = &DirTree{
		Files: map[string]string{"g": "sum-g"},
	}

	tree := NewFromChecksum(loader, "root")
	assert.Equal(t, "root", tree.ContentsChecksum())
	assert.Equal(t, 0, loader.reads)

	file, _, err := tree.Lookup("f")
	require.NoError(t, err)
	assert.Equal(t, "sum-f", file)
	assert.Equal(t, 1, loader.reads)

	_, sub, err := tree.Lookup("d")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, 1, loader.reads, "child is loaded on first access only")

	file, _, err = sub.Lookup("g")
	require.NoError(t, err)
	assert.Equal(t, "sum-g", file)
	assert.Equal(t, 2, loader.reads)

	assert.Equal(t, "root", tree.ContentsChecksum())
	assert.Equal(t, "child", sub.ContentsChecksum())

	require.NoError(t, sub.ReplaceFile("g", "new"))
	assert.Empty(t, sub.ContentsChecksum())
	assert.Empty(t, tree.ContentsChecksum(), "modifying a subtree dirties its parents")
}

func TestMutableTree_LoadFailure(t *testing.T) {
	loader := newMockLoader()
	loader.fail = errors.New("corrupted object")

	tree := NewFromChecksum(loader, "root")
	_, _, err := tree.Lookup("anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStorage)
	assert.ErrorIs(t, err, loader.fail)

	orphan := NewFromChecksum(nil, "root")
	_, _, err = orphan.Lookup("anything")
	assert.ErrorIs(t, err, apperrors.ErrStorage)
}
