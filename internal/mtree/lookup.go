package mtree

import (
	"strings"

	apperrors "arbor/internal/errors"
)

// LookupPath resolves path below tree. Every segment but the last must name
// an existing subdirectory; the result for the last segment is whatever
// Lookup reports for it.
//
// An empty path fails with EMPTY_PATH without touching tree. A non-final
// segment that is missing, or is a file, fails with SUBDIRECTORY_NOT_FOUND.
// Errors from Lookup itself are returned unchanged.
func LookupPath(tree *MutableTree, path []string) (string, *MutableTree, error) {
	switch len(path) {
	case 0:
		return "", nil, apperrors.EmptyPath()
	case 1:
		return tree.Lookup(path[0])
	}

	_, subtree, err := tree.Lookup(path[0])
	if err != nil {
		return "", nil, err
	}
	if subtree == nil {
		return "", nil, apperrors.SubdirectoryNotFound(path[0])
	}
	return LookupPath(subtree, path[1:])
}

// LookupFile is LookupPath for callers that need a file: it fails with
// FILE_NOT_FOUND when the last segment is a directory or absent.
func LookupFile(tree *MutableTree, path []string) (string, error) {
	checksum, _, err := LookupPath(tree, path)
	if err != nil {
		return "", err
	}
	if checksum == "" {
		return "", apperrors.FileNotFound(path[len(path)-1])
	}
	return checksum, nil
}

// SplitPath turns "a/b/c" into its segments. Empty segments are dropped, so
// "/a//b/" is ["a", "b"] and "/" is empty.
func SplitPath(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
}

// EnsureDirPath walks path below tree, creating missing directories, and
// returns the last one. An empty path returns tree.
func EnsureDirPath(tree *MutableTree, path []string) (*MutableTree, error) {
	cur := tree
	for _, name := range path {
		next, err := cur.EnsureDir(name)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}
