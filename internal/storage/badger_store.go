// internal/storage/badger_store.go
package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	apperrors "arbor/internal/errors"

	"github.com/dgraph-io/badger/v4"
)

// Entity represents any storable entity with an ID
type Entity interface {
	GetID() string
}

// BadgerStore stores JSON entities under "<prefix>:<id>". Every method
// runs inside the caller's badger transaction so that entity writes commit
// or abort together with everything else in it.
type BadgerStore struct {
	prefix string
}

func NewBadgerStore(prefix string) *BadgerStore {
	return &BadgerStore{
		prefix: prefix,
	}
}

func (s *BadgerStore) makeKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", s.prefix, id))
}

// Create stores entity, failing if its ID is already taken.
func (s *BadgerStore) Create(txn *badger.Txn, entity Entity) error {
	key, data, err := s.encode(entity)
	if err != nil {
		return err
	}

	_, err = txn.Get(key)
	if err == nil {
		return apperrors.ValidationError("entity already exists", entity.GetID())
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return apperrors.Storage("checking entity", err)
	}

	if err := txn.Set(key, data); err != nil {
		return apperrors.Storage("storing entity", err)
	}
	return nil
}

// Put stores entity, replacing any previous value.
func (s *BadgerStore) Put(txn *badger.Txn, entity Entity) error {
	key, data, err := s.encode(entity)
	if err != nil {
		return err
	}
	if err := txn.Set(key, data); err != nil {
		return apperrors.Storage("storing entity", err)
	}
	return nil
}

func (s *BadgerStore) Get(txn *badger.Txn, id string, entity Entity) error {
	item, err := txn.Get(s.makeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return apperrors.NotFound(fmt.Sprintf("%s not found: %s", s.prefix, id))
	}
	if err != nil {
		return apperrors.Storage("reading entity", err)
	}

	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, entity)
	})
}

func (s *BadgerStore) Delete(txn *badger.Txn, id string) error {
	key := s.makeKey(id)

	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return apperrors.NotFound(fmt.Sprintf("%s not found: %s", s.prefix, id))
	} else if err != nil {
		return apperrors.Storage("reading entity", err)
	}

	if err := txn.Delete(key); err != nil {
		return apperrors.Storage("deleting entity", err)
	}
	return nil
}

// List decodes every entity whose ID starts with idPrefix into results,
// which must be a pointer to a slice. Entities come back ordered by ID.
func (s *BadgerStore) List(txn *badger.Txn, idPrefix string, results interface{}) error {
	opts := badger.DefaultIteratorOptions
	prefix := s.makeKey(idPrefix)
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	values := []json.RawMessage{}
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		val, err := it.Item().ValueCopy(nil)
		if err != nil {
			return apperrors.Storage("listing entities", err)
		}
		values = append(values, val)
	}

	// Marshal collected values into final result
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("listing entities: %w", err)
	}
	if err := json.Unmarshal(data, results); err != nil {
		return fmt.Errorf("listing entities: %w", err)
	}
	return nil
}

func (s *BadgerStore) encode(entity Entity) ([]byte, []byte, error) {
	if entity.GetID() == "" {
		return nil, nil, apperrors.ValidationError("entity ID cannot be empty", nil)
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling entity: %w", err)
	}
	return s.makeKey(entity.GetID()), data, nil
}
