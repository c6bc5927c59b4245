package storage

import (
	"testing"

	apperrors "arbor/internal/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEntity struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

func (e *testEntity) GetID() string { return e.ID }

func setupTestDB(t *testing.T) *badger.DB {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil // Disable logging for tests

	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBadgerStore(t *testing.T) {
	db := setupTestDB(t)
	store := NewBadgerStore("ref")

	t.Run("Create", func(t *testing.T) {
		err := db.Update(func(txn *badger.Txn) error {
			return store.Create(txn, &testEntity{ID: "main", Value: "one"})
		})
		require.NoError(t, err)

		err = db.Update(func(txn *badger.Txn) error {
			return store.Create(txn, &testEntity{ID: "main", Value: "two"})
		})
		assert.ErrorIs(t, err, apperrors.ErrValidation)

		err = db.Update(func(txn *badger.Txn) error {
			return store.Create(txn, &testEntity{})
		})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("Get", func(t *testing.T) {
		var got testEntity
		err := db.View(func(txn *badger.Txn) error {
			return store.Get(txn, "main", &got)
		})
		require.NoError(t, err)
		assert.Equal(t, "one", got.Value)

		err = db.View(func(txn *badger.Txn) error {
			return store.Get(txn, "does-not-exist", &got)
		})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("Put", func(t *testing.T) {
		err := db.Update(func(txn *badger.Txn) error {
			return store.Put(txn, &testEntity{ID: "main", Value: "replaced"})
		})
		require.NoError(t, err)

		var got testEntity
		require.NoError(t, db.View(func(txn *badger.Txn) error {
			return store.Get(txn, "main", &got)
		}))
		assert.Equal(t, "replaced", got.Value)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, db.Update(func(txn *badger.Txn) error {
			for _, id := range []string{"app/b", "app/a", "runtime/x"} {
				if err := store.Put(txn, &testEntity{ID: id, Value: id}); err != nil {
					return err
				}
			}
			return nil
		}))

		var list []testEntity
		require.NoError(t, db.View(func(txn *badger.Txn) error {
			return store.List(txn, "app/", &list)
		}))
		require.Len(t, list, 2)
		assert.Equal(t, "app/a", list[0].ID)
		assert.Equal(t, "app/b", list[1].ID)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, db.Update(func(txn *badger.Txn) error {
			return store.Delete(txn, "main")
		}))

		err := db.Update(func(txn *badger.Txn) error {
			return store.Delete(txn, "main")
		})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("discarded transaction leaves no trace", func(t *testing.T) {
		txn := db.NewTransaction(true)
		require.NoError(t, store.Put(txn, &testEntity{ID: "scratch"}))
		txn.Discard()

		var got testEntity
		err := db.View(func(txn *badger.Txn) error {
			return store.Get(txn, "scratch", &got)
		})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}
