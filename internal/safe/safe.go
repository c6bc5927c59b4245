// internal/safe/safe.go
package safe

import (
	"errors"
	"fmt"

	apperrors "arbor/internal/errors"
	"arbor/shared/utils"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ObjectType is the kind of a stored object.
type ObjectType string

const (
	FileObject    ObjectType = "file"
	DirTreeObject ObjectType = "dirtree"
	CommitObject  ObjectType = "commit"
)

// Options configures Safe behavior
type Options struct {
	CacheSize   int // Number of objects to cache
	Compression CompressionOptions
}

// Safe is the content-addressed object store. Objects live in badger under
// "obj:<type>:<checksum>" and are addressed by the SHA-256 of their
// uncompressed bytes.
type Safe struct {
	cache *lru.Cache[string, []byte]
	cm    *compressionManager
}

// New creates a new Safe instance
func New(opts Options) (*Safe, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1000
	}

	cache, err := lru.New[string, []byte](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	cm, err := newCompressionManager(opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("creating compression manager: %w", err)
	}

	return &Safe{
		cache: cache,
		cm:    cm,
	}, nil
}

// Put stores data as an object of the given type and returns its checksum.
// Storing an object that already exists is a no-op.
func (s *Safe) Put(txn *badger.Txn, kind ObjectType, data []byte) (string, error) {
	hash := utils.HashContent(data)
	key := objectKey(kind, hash)

	_, err := txn.Get(key)
	if err == nil {
		return hash, nil
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return "", apperrors.Storage("checking object", err)
	}

	if err := txn.Set(key, s.cm.encode(data)); err != nil {
		return "", apperrors.Storage(fmt.Sprintf("writing %s object", kind), err)
	}
	return hash, nil
}

// Get reads an object and remembers it in the cache. Only use it with
// transactions whose reads are committed state; see GetUncached.
func (s *Safe) Get(txn *badger.Txn, kind ObjectType, hash string) ([]byte, error) {
	if content, ok := s.cache.Get(cacheKey(kind, hash)); ok {
		return content, nil
	}

	content, err := s.GetUncached(txn, kind, hash)
	if err != nil {
		return nil, err
	}
	s.cache.Add(cacheKey(kind, hash), content)
	return content, nil
}

// GetUncached reads an object without populating the cache, for reads that
// may see writes of a transaction that is not committed yet.
func (s *Safe) GetUncached(txn *badger.Txn, kind ObjectType, hash string) ([]byte, error) {
	if !utils.ValidChecksum(hash) {
		return nil, apperrors.ValidationError("invalid checksum", hash)
	}
	if content, ok := s.cache.Get(cacheKey(kind, hash)); ok {
		return content, nil
	}

	item, err := txn.Get(objectKey(kind, hash))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, apperrors.NotFound(fmt.Sprintf("%s object %s not found", kind, hash))
	}
	if err != nil {
		return nil, apperrors.Storage(fmt.Sprintf("reading %s object", kind), err)
	}

	stored, err := item.ValueCopy(nil)
	if err != nil {
		return nil, apperrors.Storage(fmt.Sprintf("reading %s object", kind), err)
	}

	content, err := s.cm.decode(stored)
	if err != nil {
		return nil, apperrors.Storage(fmt.Sprintf("decoding %s object %s", kind, hash), err)
	}

	// Verify hash
	if utils.HashContent(content) != hash {
		return nil, apperrors.Storage(fmt.Sprintf("%s object %s", kind, hash),
			fmt.Errorf("content hash mismatch"))
	}
	return content, nil
}

// Has reports whether the object exists.
func (s *Safe) Has(txn *badger.Txn, kind ObjectType, hash string) (bool, error) {
	if !utils.ValidChecksum(hash) {
		return false, apperrors.ValidationError("invalid checksum", hash)
	}
	if s.cache.Contains(cacheKey(kind, hash)) {
		return true, nil
	}

	_, err := txn.Get(objectKey(kind, hash))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Storage("checking object", err)
	}
	return true, nil
}

// Purge drops every cached object.
func (s *Safe) Purge() {
	s.cache.Purge()
}

func objectKey(kind ObjectType, hash string) []byte {
	return []byte(fmt.Sprintf("obj:%s:%s", kind, hash))
}

func cacheKey(kind ObjectType, hash string) string {
	return string(kind) + ":" + hash
}
