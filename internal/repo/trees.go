package repo

import (
	"encoding/json"
	"fmt"

	apperrors "arbor/internal/errors"
	"arbor/internal/mtree"
	"arbor/internal/safe"

	"github.com/dgraph-io/badger/v4"
)

// ReadDirTree reads the dirtree object sum. It makes *Repo an mtree.Loader.
func (r *Repo) ReadDirTree(sum string) (*mtree.DirTree, error) {
	var dt mtree.DirTree
	err := r.view(func(txn *badger.Txn, pending bool) error {
		data, err := r.getObject(txn, pending, safe.DirTreeObject, sum)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &dt); err != nil {
			return apperrors.Storage(fmt.Sprintf("decoding dirtree %s", sum), err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dt, nil
}

// WriteMtree stores tree and every directory below it as dirtree objects
// and returns the checksum of the top one. Subtrees that were loaded from
// the repository and not modified are not rewritten.
func (r *Repo) WriteMtree(tree *mtree.MutableTree) (string, error) {
	var sum string
	err := r.update(func(txn *badger.Txn) error {
		var err error
		sum, err = r.writeTree(txn, tree)
		return err
	})
	return sum, err
}

func (r *Repo) writeTree(txn *badger.Txn, tree *mtree.MutableTree) (string, error) {
	if sum := tree.ContentsChecksum(); sum != "" {
		ok, err := r.objects.Has(txn, safe.DirTreeObject, sum)
		if err != nil {
			return "", err
		}
		if ok {
			return sum, nil
		}
	}

	files, err := tree.Files()
	if err != nil {
		return "", err
	}
	dirs, err := tree.Subdirs()
	if err != nil {
		return "", err
	}

	dt := mtree.DirTree{
		Files: make(map[string]string, len(files)),
		Dirs:  make(map[string]string, len(dirs)),
	}
	for _, name := range files {
		sum, _, err := tree.Lookup(name)
		if err != nil {
			return "", err
		}
		dt.Files[name] = sum
	}
	for _, name := range dirs {
		_, sub, err := tree.Lookup(name)
		if err != nil {
			return "", err
		}
		sum, err := r.writeTree(txn, sub)
		if err != nil {
			return "", fmt.Errorf("writing %s: %w", name, err)
		}
		dt.Dirs[name] = sum
	}

	// encoding/json sorts map keys, so equal trees serialize identically.
	data, err := json.Marshal(dt)
	if err != nil {
		return "", fmt.Errorf("marshaling dirtree: %w", err)
	}
	return r.objects.Put(txn, safe.DirTreeObject, data)
}

// ReadCommitTree resolves rev to a commit and returns its root tree, which
// loads lazily from the repository, along with the commit checksum.
func (r *Repo) ReadCommitTree(rev string) (*mtree.MutableTree, string, error) {
	sum, err := r.ResolveRev(rev, false)
	if err != nil {
		return nil, "", err
	}
	commit, err := r.ReadCommit(sum)
	if err != nil {
		return nil, "", err
	}
	return mtree.NewFromChecksum(r, commit.RootTree), sum, nil
}
