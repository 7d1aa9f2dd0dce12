// Package collection implements the whole-array read-modify-write accessor
// every feature uses on top of the record store.
package collection

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dtorres47/request-portal/internal/kv"
)

// Collection is one JSON array of T stored under a single key. There is no
// partial write: every mutation loads the full array and saves it back.
type Collection[T any] struct {
	store kv.Store
	key   string
}

func New[T any](store kv.Store, key string) *Collection[T] {
	return &Collection[T]{store: store, key: key}
}

func (c *Collection[T]) Key() string { return c.key }

// Load returns the stored records in stored order. Missing, unreadable or
// corrupt data yields an empty slice; corrupt values are logged and cleared.
func (c *Collection[T]) Load() []T {
	raw, ok, err := c.store.Get(c.key)
	if err != nil {
		log.Printf("collection %s: read error: %v", c.key, err)
		return []T{}
	}
	if !ok {
		return []T{}
	}
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsArray() {
		c.discard(fmt.Errorf("not a JSON array"))
		return []T{}
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		c.discard(err)
		return []T{}
	}
	if out == nil {
		out = []T{}
	}
	return out
}

func (c *Collection[T]) discard(cause error) {
	log.Printf("collection %s: corrupt data discarded: %v", c.key, cause)
	if err := c.store.Delete(c.key); err != nil {
		log.Printf("collection %s: clear error: %v", c.key, err)
	}
}

// Save overwrites the entire collection. Write failures (quota) are returned
// to the caller unchanged in kind and are not retried.
func (c *Collection[T]) Save(records []T) error {
	if records == nil {
		records = []T{}
	}
	b, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.key, err)
	}
	if err := c.store.Set(c.key, b); err != nil {
		return fmt.Errorf("save %s: %w", c.key, err)
	}
	return nil
}

// Append is load-full, push, save-full.
func (c *Collection[T]) Append(rec T) error {
	return c.Save(append(c.Load(), rec))
}

// Update loads the collection, hands it to fn and saves whatever fn returns.
func (c *Collection[T]) Update(fn func([]T) []T) error {
	return c.Save(fn(c.Load()))
}

// Clear removes the key; a later Load returns an empty collection.
func (c *Collection[T]) Clear() error {
	return c.store.Delete(c.key)
}

// Object is a single JSON object stored under a key, e.g. currentUser.
type Object[T any] struct {
	store kv.Store
	key   string
}

func NewObject[T any](store kv.Store, key string) *Object[T] {
	return &Object[T]{store: store, key: key}
}

// Get returns the stored object. A corrupt value is cleared and reported as
// absent.
func (o *Object[T]) Get() (T, bool) {
	var v T
	raw, ok, err := o.store.Get(o.key)
	if err != nil {
		log.Printf("object %s: read error: %v", o.key, err)
		return v, false
	}
	if !ok {
		return v, false
	}
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		log.Printf("object %s: corrupt data discarded", o.key)
		o.Clear()
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Printf("object %s: corrupt data discarded: %v", o.key, err)
		o.Clear()
		return v, false
	}
	return v, true
}

func (o *Object[T]) Set(v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", o.key, err)
	}
	if err := o.store.Set(o.key, b); err != nil {
		return fmt.Errorf("save %s: %w", o.key, err)
	}
	return nil
}

func (o *Object[T]) Clear() error {
	return o.store.Delete(o.key)
}

// SortNewestFirst orders a copy of records by descending timestamp. The sort
// is stable so equal timestamps keep their stored order.
func SortNewestFirst[T any](records []T, ts func(T) time.Time) []T {
	out := make([]T, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool { return ts(out[i]).After(ts(out[j])) })
	return out
}

// SortOldestFirst orders a copy of records by ascending timestamp.
func SortOldestFirst[T any](records []T, ts func(T) time.Time) []T {
	out := make([]T, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool { return ts(out[i]).Before(ts(out[j])) })
	return out
}
