// Package kv is the record store: a flat key/value space of raw JSON values,
// one value per collection key, with a change feed fired on every write.
package kv

import (
	"errors"
	"time"
)

// ErrQuotaExceeded is returned by Set when the write would push the store past
// its configured size.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Change is published after every successful Set or Delete.
type Change struct {
	Key     string
	Deleted bool
	At      time.Time
}

type Store interface {
	// Get returns the stored value; ok is false when the key is absent.
	Get(key string) (value []byte, ok bool, err error)
	// Set overwrites the whole value under key.
	Set(key string, value []byte) error
	Delete(key string) error
	Keys() ([]string, error)

	Subscribe() <-chan Change
	Unsubscribe(ch <-chan Change)

	Close() error
}

// Open builds the backend named by kind ("memory", "file" or "sqlite").
func Open(kind, dir string) (Store, error) {
	switch kind {
	case "", "file":
		return NewFileStore(dir)
	case "sqlite":
		return NewSQLiteStore(dir)
	case "memory":
		return NewMemoryStore(), nil
	}
	return nil, errors.New("unknown store backend " + kind)
}
