// Package mtree holds the in-memory, mutable form of a directory tree and
// the helpers that resolve paths through it.
package mtree

import (
	"fmt"
	"sort"
	"strings"

	apperrors "arbor/internal/errors"
)

// DirTree is the stored form of one directory level: file names mapped to
// content checksums and subdirectory names mapped to dirtree checksums.
type DirTree struct {
	Files map[string]string `json:"files"`
	Dirs  map[string]string `json:"dirs"`
}

// Loader reads stored dirtree objects.
type Loader interface {
	ReadDirTree(checksum string) (*DirTree, error)
}

// MutableTree is a directory whose entries can be changed before it is
// written back to a repository. A tree created with NewFromChecksum reads
// its entries from the repository the first time they are needed.
type MutableTree struct {
	files   map[string]string
	subdirs map[string]*MutableTree

	parent   *MutableTree
	loader   Loader
	contents string // dirtree checksum; cleared once the tree is modified
	loaded   bool
}

// New returns an empty tree.
func New() *MutableTree {
	return &MutableTree{
		files:   make(map[string]string),
		subdirs: make(map[string]*MutableTree),
		loaded:  true,
	}
}

// NewFromChecksum returns a tree backed by the dirtree object checksum.
// Nothing is read until the tree is first accessed.
func NewFromChecksum(loader Loader, checksum string) *MutableTree {
	return &MutableTree{
		files:    make(map[string]string),
		subdirs:  make(map[string]*MutableTree),
		loader:   loader,
		contents: checksum,
	}
}

// ContentsChecksum returns the checksum of the dirtree this tree was
// loaded from, or "" if it was built in memory or has been modified.
func (t *MutableTree) ContentsChecksum() string {
	return t.contents
}

func (t *MutableTree) ensureLoaded() error {
	if t.loaded {
		return nil
	}
	if t.loader == nil {
		return apperrors.Storage(fmt.Sprintf("loading dirtree %s", t.contents),
			fmt.Errorf("no loader"))
	}

	dt, err := t.loader.ReadDirTree(t.contents)
	if err != nil {
		return apperrors.Storage(fmt.Sprintf("loading dirtree %s", t.contents), err)
	}

	for name, sum := range dt.Files {
		t.files[name] = sum
	}
	for name, sum := range dt.Dirs {
		sub := NewFromChecksum(t.loader, sum)
		sub.parent = t
		t.subdirs[name] = sub
	}
	t.loaded = true
	return nil
}

// Lookup returns the entry called name. A file yields its checksum, a
// directory yields its subtree; an absent entry yields "" and nil.
func (t *MutableTree) Lookup(name string) (string, *MutableTree, error) {
	if err := t.ensureLoaded(); err != nil {
		return "", nil, err
	}
	return t.files[name], t.subdirs[name], nil
}

// ReplaceFile sets name to the file with the given checksum.
func (t *MutableTree) ReplaceFile(name, checksum string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := t.ensureLoaded(); err != nil {
		return err
	}
	if _, ok := t.subdirs[name]; ok {
		return apperrors.ValidationError("can't replace directory with file", name)
	}

	t.files[name] = checksum
	t.invalidate()
	return nil
}

// EnsureDir returns the subdirectory name, creating it if needed.
func (t *MutableTree) EnsureDir(name string) (*MutableTree, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := t.ensureLoaded(); err != nil {
		return nil, err
	}
	if _, ok := t.files[name]; ok {
		return nil, apperrors.ValidationError("can't replace file with directory", name)
	}

	if sub, ok := t.subdirs[name]; ok {
		return sub, nil
	}
	sub := New()
	sub.parent = t
	t.subdirs[name] = sub
	t.invalidate()
	return sub, nil
}

// Remove deletes the entry called name. Removing an absent entry fails
// unless allowNoent is set.
func (t *MutableTree) Remove(name string, allowNoent bool) error {
	if err := t.ensureLoaded(); err != nil {
		return err
	}

	_, isFile := t.files[name]
	_, isDir := t.subdirs[name]
	if !isFile && !isDir {
		if allowNoent {
			return nil
		}
		return apperrors.NotFound(fmt.Sprintf("no such entry: %s", name))
	}

	if sub, ok := t.subdirs[name]; ok {
		sub.parent = nil
	}
	delete(t.files, name)
	delete(t.subdirs, name)
	t.invalidate()
	return nil
}

// invalidate clears the stored checksum of t and every ancestor.
func (t *MutableTree) invalidate() {
	for cur := t; cur != nil && cur.contents != ""; cur = cur.parent {
		cur.contents = ""
	}
}

// Files returns the sorted names of the file entries.
func (t *MutableTree) Files() ([]string, error) {
	if err := t.ensureLoaded(); err != nil {
		return nil, err
	}
	return sortedKeys(t.files), nil
}

// Subdirs returns the sorted names of the subdirectory entries.
func (t *MutableTree) Subdirs() ([]string, error) {
	if err := t.ensureLoaded(); err != nil {
		return nil, err
	}
	return sortedKeys(t.subdirs), nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return apperrors.ValidationError("invalid entry name", name)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
