package diff

import (
	"errors"
	"testing"

	apperrors "arbor/internal/errors"
	"arbor/internal/mtree"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// treeOf builds a tree from path -> checksum.
func treeOf(t *testing.T, files map[string]string) *mtree.MutableTree {
	t.Helper()
	root := mtree.New()
	for p, sum := range files {
		segments := mtree.SplitPath(p)
		dir, err := mtree.EnsureDirPath(root, segments[:len(segments)-1])
		require.NoError(t, err)
		require.NoError(t, dir.ReplaceFile(segments[len(segments)-1], sum))
	}
	return root
}

func TestCompare(t *testing.T) {
	oldTree := treeOf(t, map[string]string{
		"README":     "r1",
		"src/main":   "m1",
		"src/util":   "u1",
		"docs/guide": "g1",
		"bin":        "b1",
	})
	newTree := treeOf(t, map[string]string{
		"README":    "r1",
		"src/main":  "m2",
		"src/extra": "e1",
		"bin/tool":  "t1",
	})

	result, err := Compare(oldTree, newTree)
	require.NoError(t, err)

	assert.Equal(t, []Change{
		{Path: "bin", Type: Deleted, OldChecksum: "b1"},
		{Path: "bin/tool", Type: Added, NewChecksum: "t1"},
		{Path: "docs/guide", Type: Deleted, OldChecksum: "g1"},
		{Path: "src/extra", Type: Added, NewChecksum: "e1"},
		{Path: "src/main", Type: Modified, OldChecksum: "m1", NewChecksum: "m2"},
		{Path: "src/util", Type: Deleted, OldChecksum: "u1"},
	}, result.Changes)

	assert.Equal(t, 2, result.Stats.Additions)
	assert.Equal(t, 1, result.Stats.Modifications)
	assert.Equal(t, 3, result.Stats.Deletions)
	assert.Equal(t, "D bin\nA bin/tool\nD docs/guide\nA src/extra\nM src/main\nD src/util\n", result.Format())
}

func TestCompareNilSides(t *testing.T) {
	tree := treeOf(t, map[string]string{"a/b": "x"})

	added, err := Compare(nil, tree)
	require.NoError(t, err)
	assert.Equal(t, []Change{{Path: "a/b", Type: Added, NewChecksum: "x"}}, added.Changes)

	deleted, err := Compare(tree, nil)
	require.NoError(t, err)
	assert.Equal(t, []Change{{Path: "a/b", Type: Deleted, OldChecksum: "x"}}, deleted.Changes)

	same, err := Compare(tree, tree)
	require.NoError(t, err)
	assert.Empty(t, same.Changes)
}

type failingLoader struct{}

func (failingLoader) ReadDirTree(string) (*mtree.DirTree, error) {
	return nil, errors.New("object store unavailable")
}

func TestCompareLoadError(t *testing.T) {
	broken := mtree.NewFromChecksum(failingLoader{}, "root")

	_, err := Compare(broken, mtree.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStorage)
}
