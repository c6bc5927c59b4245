// Package txn ties a repository transaction to a lexical scope.
//
//	tx, err := txn.Begin(repo)
//	if err != nil {
//		return err
//	}
//	defer tx.Release()
//	... writes ...
//	return tx.Commit()
//
// Whatever path leaves the scope, exactly one of commit or abort reaches
// the repository.
package txn

import (
	"fmt"

	apperrors "arbor/internal/errors"

	"go.uber.org/zap"
)

// Repository is the transaction surface of a repository.
type Repository interface {
	PrepareTransaction() error
	CommitTransaction() error
	AbortTransaction() error
}

type Option func(*Transaction)

// WithLogger sets the logger used for lifecycle events.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Transaction) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Transaction guards one open repository transaction.
type Transaction struct {
	repo   Repository
	logger *zap.Logger

	// finished is set once the transaction reached the repository's commit
	// or abort successfully; Release is a no-op afterwards.
	finished bool
	// consumed is set by the first Commit, successful or not.
	consumed bool
}

// Begin prepares a transaction on repo. On failure no guard is returned and
// nothing needs releasing.
func Begin(repo Repository, opts ...Option) (*Transaction, error) {
	t := &Transaction{
		repo:   repo,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}

	if err := repo.PrepareTransaction(); err != nil {
		return nil, fmt.Errorf("preparing transaction: %w", err)
	}
	t.logger.Debug("transaction prepared")
	return t, nil
}

// Commit commits the transaction. A guard can be committed only once; if
// the commit fails the transaction is still open and Release aborts it.
func (t *Transaction) Commit() error {
	if t.consumed || t.finished {
		return apperrors.Transaction("transaction already finished", nil)
	}
	t.consumed = true

	if err := t.repo.CommitTransaction(); err != nil {
		t.logger.Warn("transaction commit failed", zap.Error(err))
		return fmt.Errorf("committing transaction: %w", err)
	}
	t.finished = true
	t.logger.Debug("transaction committed")
	return nil
}

// Release aborts the transaction unless it was committed. It is meant to be
// deferred right after Begin and may be called more than once.
//
// A failed abort leaves the repository in an unknown state, so Release
// panics rather than returning.
func (t *Transaction) Release() {
	if t.finished {
		return
	}
	t.finished = true
	t.consumed = true

	if err := t.repo.AbortTransaction(); err != nil {
		t.logger.Error("transaction abort failed", zap.Error(err))
		panic(fmt.Sprintf("aborting the transaction should not fail: %v", err))
	}
	t.logger.Debug("transaction aborted")
}

// Finished reports whether the transaction has been committed or aborted.
func (t *Transaction) Finished() bool {
	return t.finished
}

// Do runs fn inside a transaction on repo and commits if fn succeeds.
// Any error from fn aborts the transaction.
func Do(repo Repository, fn func() error, opts ...Option) error {
	t, err := Begin(repo, opts...)
	if err != nil {
		return err
	}
	defer t.Release()

	if err := fn(); err != nil {
		return err
	}
	return t.Commit()
}
