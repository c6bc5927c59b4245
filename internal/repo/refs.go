package repo

import (
	"strings"
	"time"

	apperrors "arbor/internal/errors"
	"arbor/shared/utils"

	"github.com/dgraph-io/badger/v4"
)

// Ref is a named pointer to a commit.
type Ref struct {
	Name      string    `json:"name"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Ref) GetID() string {
	return r.Name
}

func validateRefName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return apperrors.ValidationError("invalid ref name", name)
	}
	if utils.ValidChecksum(name) {
		return apperrors.ValidationError("ref name cannot be a checksum", name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, " \t\n:") {
			return apperrors.ValidationError("invalid ref name", name)
		}
	}
	return nil
}

// SetRef points name at the commit sum, which must exist.
func (r *Repo) SetRef(name, sum string) error {
	if err := validateRefName(name); err != nil {
		return err
	}
	return r.update(func(txn *badger.Txn) error {
		if _, err := r.readCommit(txn, true, sum); err != nil {
			return err
		}
		return r.refs.Put(txn, &Ref{
			Name:      name,
			Checksum:  sum,
			UpdatedAt: now(),
		})
	})
}

// CreateRef points the new ref name at the commit sum. It fails if name
// already exists.
func (r *Repo) CreateRef(name, sum string) error {
	if err := validateRefName(name); err != nil {
		return err
	}
	return r.update(func(txn *badger.Txn) error {
		if _, err := r.readCommit(txn, true, sum); err != nil {
			return err
		}
		return r.refs.Create(txn, &Ref{
			Name:      name,
			Checksum:  sum,
			UpdatedAt: now(),
		})
	})
}

// DeleteRef removes name.
func (r *Repo) DeleteRef(name string) error {
	return r.update(func(txn *badger.Txn) error {
		return r.refs.Delete(txn, name)
	})
}

// ResolveRev turns a ref name or a commit checksum into a commit checksum.
// A missing ref resolves to "" when allowNoent is set.
func (r *Repo) ResolveRev(rev string, allowNoent bool) (string, error) {
	if utils.ValidChecksum(rev) {
		return rev, nil
	}
	if err := validateRefName(rev); err != nil {
		return "", err
	}

	var ref Ref
	err := r.view(func(txn *badger.Txn, _ bool) error {
		return r.refs.Get(txn, rev, &ref)
	})
	if isNotFound(err) && allowNoent {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return ref.Checksum, nil
}

// ListRefs returns the refs whose names start with prefix, sorted by name.
func (r *Repo) ListRefs(prefix string) ([]Ref, error) {
	var refs []Ref
	err := r.view(func(txn *badger.Txn, _ bool) error {
		return r.refs.List(txn, prefix, &refs)
	})
	return refs, err
}
