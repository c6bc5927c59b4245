package repo

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "arbor/internal/errors"
	"arbor/internal/mtree"
	"arbor/internal/safe"
	"arbor/internal/txn"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// Commit records a root tree together with its history and message.
type Commit struct {
	Parent    string    `json:"parent,omitempty"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RootTree  string    `json:"root_tree"`
}

// WriteCommit stores a commit of the dirtree root. parent may be empty for
// the first commit of a branch; otherwise it must exist, as must root.
func (r *Repo) WriteCommit(parent, subject, body, root string) (string, error) {
	var sum string
	err := r.update(func(btx *badger.Txn) error {
		ok, err := r.objects.Has(btx, safe.DirTreeObject, root)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NotFound(fmt.Sprintf("dirtree %s not found", root))
		}
		if parent != "" {
			if _, err := r.readCommit(btx, true, parent); err != nil {
				return fmt.Errorf("reading parent commit: %w", err)
			}
		}

		data, err := json.Marshal(Commit{
			Parent:    parent,
			Subject:   subject,
			Body:      body,
			Timestamp: now(),
			RootTree:  root,
		})
		if err != nil {
			return fmt.Errorf("marshaling commit: %w", err)
		}
		sum, err = r.objects.Put(btx, safe.CommitObject, data)
		return err
	})
	return sum, err
}

// ReadCommit reads the commit object sum.
func (r *Repo) ReadCommit(sum string) (*Commit, error) {
	var commit *Commit
	err := r.view(func(btx *badger.Txn, pending bool) error {
		var err error
		commit, err = r.readCommit(btx, pending, sum)
		return err
	})
	return commit, err
}

func (r *Repo) readCommit(btx *badger.Txn, pending bool, sum string) (*Commit, error) {
	data, err := r.getObject(btx, pending, safe.CommitObject, sum)
	if err != nil {
		return nil, err
	}
	var commit Commit
	if err := json.Unmarshal(data, &commit); err != nil {
		return nil, apperrors.Storage(fmt.Sprintf("decoding commit %s", sum), err)
	}
	return &commit, nil
}

// CommitDirectory snapshots the files below dir as a new commit on branch
// and moves branch to it. Entries whose name starts with a dot and
// anything that is neither a regular file nor a directory are skipped.
// Either all of it lands in the repository or none of it does.
func (r *Repo) CommitDirectory(branch, dir, subject string) (string, error) {
	var commitSum string

	err := txn.Do(r, func() error {
		parent, err := r.ResolveRev(branch, true)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", branch, err)
		}

		root := mtree.New()
		if err := r.importDirectory(dir, root); err != nil {
			return fmt.Errorf("importing %s: %w", dir, err)
		}

		rootSum, err := r.WriteMtree(root)
		if err != nil {
			return fmt.Errorf("writing tree: %w", err)
		}

		commitSum, err = r.WriteCommit(parent, subject, "", rootSum)
		if err != nil {
			return fmt.Errorf("writing commit: %w", err)
		}
		return r.SetRef(branch, commitSum)
	}, txn.WithLogger(r.logger))
	if err != nil {
		return "", err
	}

	r.logger.Info("committed directory",
		zap.String("branch", branch),
		zap.String("dir", dir),
		zap.String("commit", commitSum))
	return commitSum, nil
}

func (r *Repo) importDirectory(dir string, root *mtree.MutableTree) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return apperrors.ValidationError("not a directory", dir)
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		segments := mtree.SplitPath(filepath.ToSlash(rel))

		switch {
		case d.IsDir():
			_, err := mtree.EnsureDirPath(root, segments)
			return err
		case d.Type().IsRegular():
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			sum, err := r.WriteContent(content)
			if err != nil {
				return err
			}
			parent, err := mtree.EnsureDirPath(root, segments[:len(segments)-1])
			if err != nil {
				return err
			}
			return parent.ReplaceFile(segments[len(segments)-1], sum)
		default:
			r.logger.Debug("skipping non-regular file", zap.String("path", rel))
			return nil
		}
	})
}
