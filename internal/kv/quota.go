package kv

import (
	"fmt"
	"sync"
)

// Quota wraps a store and refuses writes that would take the total stored
// size above Limit bytes.
type Quota struct {
	Store
	Limit int64

	mu sync.Mutex
}

func WithQuota(s Store, limit int64) Store {
	if limit <= 0 {
		return s
	}
	return &Quota{Store: s, Limit: limit}
}

func (q *Quota) Set(key string, value []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	used, err := q.usedExcept(key)
	if err != nil {
		return err
	}
	if used+int64(len(value)) > q.Limit {
		return fmt.Errorf("set %s (%d bytes, %d in use, limit %d): %w",
			key, len(value), used, q.Limit, ErrQuotaExceeded)
	}
	return q.Store.Set(key, value)
}

func (q *Quota) usedExcept(key string) (int64, error) {
	keys, err := q.Store.Keys()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, k := range keys {
		if k == key {
			continue
		}
		v, _, err := q.Store.Get(k)
		if err != nil {
			return 0, err
		}
		n += int64(len(v))
	}
	return n, nil
}
