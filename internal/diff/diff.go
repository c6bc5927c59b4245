// internal/diff/diff.go
package diff

import (
	"bytes"
	"fmt"
	"path"
	"sort"

	"arbor/internal/mtree"
)

// ChangeType says what happened to a file between two trees.
type ChangeType string

const (
	Added    ChangeType = "add"
	Modified ChangeType = "modify"
	Deleted  ChangeType = "delete"
)

// Change is one file that differs between two trees.
type Change struct {
	Path        string     `json:"path"`
	Type        ChangeType `json:"type"`
	OldChecksum string     `json:"old_checksum,omitempty"`
	NewChecksum string     `json:"new_checksum,omitempty"`
}

// Result contains the complete comparison
type Result struct {
	Changes []Change
	Stats   struct {
		Additions     int
		Modifications int
		Deletions     int
	}
}

// Compare lists the files that differ between oldTree and newTree, sorted
// by path. Either tree may be nil, meaning empty. Directories whose stored
// checksums match are not descended into.
func Compare(oldTree, newTree *mtree.MutableTree) (*Result, error) {
	result := &Result{}
	if err := compareDir("", oldTree, newTree, result); err != nil {
		return nil, err
	}

	sort.Slice(result.Changes, func(i, j int) bool {
		return result.Changes[i].Path < result.Changes[j].Path
	})
	for _, c := range result.Changes {
		switch c.Type {
		case Added:
			result.Stats.Additions++
		case Modified:
			result.Stats.Modifications++
		case Deleted:
			result.Stats.Deletions++
		}
	}
	return result, nil
}

func compareDir(prefix string, oldTree, newTree *mtree.MutableTree, result *Result) error {
	if oldTree != nil && newTree != nil {
		sum := oldTree.ContentsChecksum()
		if sum != "" && sum == newTree.ContentsChecksum() {
			return nil
		}
	}

	names, err := entryNames(oldTree, newTree)
	if err != nil {
		return err
	}

	for _, name := range names {
		p := path.Join(prefix, name)

		oldFile, oldDir, err := lookup(oldTree, name)
		if err != nil {
			return fmt.Errorf("reading %s: %w", p, err)
		}
		newFile, newDir, err := lookup(newTree, name)
		if err != nil {
			return fmt.Errorf("reading %s: %w", p, err)
		}

		switch {
		case oldFile != "" && newFile != "":
			if oldFile != newFile {
				result.Changes = append(result.Changes, Change{Path: p, Type: Modified, OldChecksum: oldFile, NewChecksum: newFile})
			}
		case oldFile != "":
			result.Changes = append(result.Changes, Change{Path: p, Type: Deleted, OldChecksum: oldFile})
		case newFile != "":
			result.Changes = append(result.Changes, Change{Path: p, Type: Added, NewChecksum: newFile})
		}

		if oldDir != nil || newDir != nil {
			if err := compareDir(p, oldDir, newDir, result); err != nil {
				return err
			}
		}
	}
	return nil
}

func lookup(tree *mtree.MutableTree, name string) (string, *mtree.MutableTree, error) {
	if tree == nil {
		return "", nil, nil
	}
	return tree.Lookup(name)
}

// entryNames returns the sorted union of entry names in both trees.
func entryNames(trees ...*mtree.MutableTree) ([]string, error) {
	seen := make(map[string]bool)
	for _, tree := range trees {
		if tree == nil {
			continue
		}
		files, err := tree.Files()
		if err != nil {
			return nil, err
		}
		dirs, err := tree.Subdirs()
		if err != nil {
			return nil, err
		}
		for _, name := range append(files, dirs...) {
			seen[name] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Format returns a string representation of the diff
func (r *Result) Format() string {
	var buf bytes.Buffer

	for _, c := range r.Changes {
		switch c.Type {
		case Added:
			buf.WriteString("A ")
		case Modified:
			buf.WriteString("M ")
		case Deleted:
			buf.WriteString("D ")
		}
		buf.WriteString(c.Path)
		buf.WriteString("\n")
	}

	return buf.String()
}
