// Package repo is a content-addressed tree repository stored in badger.
//
// Writes happen only inside a transaction opened with PrepareTransaction
// and are visible to reads on the same Repo until CommitTransaction makes
// them durable or AbortTransaction drops them. Use package txn to scope a
// transaction rather than calling the primitives directly.
package repo

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	apperrors "arbor/internal/errors"
	"arbor/internal/safe"
	"arbor/internal/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const valueThreshold = 1 << 10

// Options configures a repository.
type Options struct {
	Path        string // ignored when InMemory is set
	InMemory    bool
	CacheSize   int
	Compression safe.CompressionOptions
	Logger      *zap.Logger
}

// Repo is a handle on an open repository. It holds at most one open
// transaction at a time.
type Repo struct {
	db      *badger.DB
	objects *safe.Safe
	refs    *storage.BadgerStore
	logger  *zap.Logger

	mu    sync.Mutex
	txn   *badger.Txn
	txnID string
}

// Open opens (creating if needed) the repository described by opts.
func Open(opts Options) (*Repo, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var dbOpts badger.Options
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, apperrors.ValidationError("repository path is required", nil)
		}
		if err := os.MkdirAll(opts.Path, 0755); err != nil {
			return nil, fmt.Errorf("creating repository directory: %w", err)
		}
		// File objects above the threshold live in the value log, so only
		// their pointers count against the size limit of a transaction.
		dbOpts = badger.DefaultOptions(opts.Path).WithValueThreshold(valueThreshold)
	}
	dbOpts.Logger = nil // Disable logging noise

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, apperrors.Storage("opening database", err)
	}

	objects, err := safe.New(safe.Options{
		CacheSize:   opts.CacheSize,
		Compression: opts.Compression,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing object store: %w", err)
	}

	return &Repo{
		db:      db,
		objects: objects,
		refs:    storage.NewBadgerStore("ref"),
		logger:  logger,
	}, nil
}

// Close discards any open transaction and closes the database.
func (r *Repo) Close() error {
	r.mu.Lock()
	if r.txn != nil {
		r.logger.Warn("closing repository with open transaction; discarding",
			zap.String("txn", r.txnID))
		r.txn.Discard()
		r.txn = nil
	}
	r.mu.Unlock()

	r.objects.Purge()
	return r.db.Close()
}

// PrepareTransaction opens a transaction. It fails if one is already open.
func (r *Repo) PrepareTransaction() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.txn != nil {
		return apperrors.Transaction("transaction already in progress", nil)
	}
	r.txn = r.db.NewTransaction(true)
	r.txnID = uuid.New().String()

	r.logger.Debug("transaction prepared", zap.String("txn", r.txnID))
	return nil
}

// CommitTransaction makes the open transaction durable. If the commit
// fails the transaction stays open and must still be aborted.
func (r *Repo) CommitTransaction() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.txn == nil {
		return apperrors.Transaction("no transaction in progress", nil)
	}

	if err := r.txn.Commit(); err != nil {
		r.logger.Warn("transaction commit failed",
			zap.String("txn", r.txnID),
			zap.Error(err))
		return apperrors.Storage("committing transaction", err)
	}

	r.logger.Debug("transaction committed", zap.String("txn", r.txnID))
	r.txn = nil
	r.txnID = ""
	return nil
}

// AbortTransaction drops every write made in the open transaction.
func (r *Repo) AbortTransaction() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.txn == nil {
		return apperrors.Transaction("no transaction in progress", nil)
	}
	r.txn.Discard()

	r.logger.Debug("transaction aborted", zap.String("txn", r.txnID))
	r.txn = nil
	r.txnID = ""
	return nil
}

// InTransaction reports whether a transaction is open.
func (r *Repo) InTransaction() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.txn != nil
}

func (r *Repo) current() *badger.Txn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.txn
}

// update runs fn in the open transaction.
func (r *Repo) update(fn func(txn *badger.Txn) error) error {
	txn := r.current()
	if txn == nil {
		return apperrors.Transaction("write outside of a transaction", nil)
	}
	return fn(txn)
}

// view runs fn in the open transaction, if any, so that its pending writes
// are visible; otherwise in a read-only snapshot. pending tells fn which.
func (r *Repo) view(fn func(txn *badger.Txn, pending bool) error) error {
	if txn := r.current(); txn != nil {
		return fn(txn, true)
	}
	return r.db.View(func(txn *badger.Txn) error {
		return fn(txn, false)
	})
}

func (r *Repo) getObject(txn *badger.Txn, pending bool, kind safe.ObjectType, sum string) ([]byte, error) {
	if pending {
		return r.objects.GetUncached(txn, kind, sum)
	}
	return r.objects.Get(txn, kind, sum)
}

// WriteContent stores a file's content and returns its checksum.
func (r *Repo) WriteContent(data []byte) (string, error) {
	var sum string
	err := r.update(func(txn *badger.Txn) error {
		var err error
		sum, err = r.objects.Put(txn, safe.FileObject, data)
		return err
	})
	return sum, err
}

// ReadContent returns the content of the file object sum.
func (r *Repo) ReadContent(sum string) ([]byte, error) {
	var data []byte
	err := r.view(func(txn *badger.Txn, pending bool) error {
		var err error
		data, err = r.getObject(txn, pending, safe.FileObject, sum)
		return err
	})
	return data, err
}

// HasContent reports whether the file object sum exists.
func (r *Repo) HasContent(sum string) (bool, error) {
	var ok bool
	err := r.view(func(txn *badger.Txn, _ bool) error {
		var err error
		ok, err = r.objects.Has(txn, safe.FileObject, sum)
		return err
	})
	return ok, err
}

func isNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound)
}

func now() time.Time {
	return time.Now().UTC()
}
