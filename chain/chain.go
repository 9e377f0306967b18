package chain

import (
	"iter"
	"sort"
	"sync"

	dispatch "github.com/goliatone/go-dispatch"
)

// Entry is a ranked item held by a Chain.
type Entry[T comparable] struct {
	Rank int
	Item T
}

// Chain keeps (rank, item) pairs sorted by rank. Items sharing a rank keep
// their insertion order.
type Chain[T comparable] struct {
	mu      sync.RWMutex
	entries []Entry[T]
	sealed  bool
}

// New returns an empty chain.
func New[T comparable]() *Chain[T] {
	return &Chain[T]{}
}

// Add inserts item at rank. The exact (rank, item) pair may only be present once.
func (c *Chain[T]) Add(item T, rank int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sealed {
		return sealedError()
	}
	if c.indexOf(item, rank) >= 0 {
		return dispatch.NewError(dispatch.ErrDuplicate, "entry already registered at rank", map[string]any{
			"rank": rank,
		})
	}

	// first index whose rank is strictly greater keeps ties in insertion order
	pos := sort.Search(len(c.entries), func(i int) bool {
		return c.entries[i].Rank > rank
	})
	c.entries = append(c.entries, Entry[T]{})
	copy(c.entries[pos+1:], c.entries[pos:])
	c.entries[pos] = Entry[T]{Rank: rank, Item: item}
	return nil
}

// Remove deletes the (rank, item) pair.
func (c *Chain[T]) Remove(item T, rank int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sealed {
		return sealedError()
	}
	idx := c.indexOf(item, rank)
	if idx < 0 {
		return dispatch.NewError(dispatch.ErrNotFound, "entry not registered at rank", map[string]any{
			"rank": rank,
		})
	}
	c.entries = append(c.entries[:idx], c.entries[idx+1:]...)
	return nil
}

// Clear drops every entry.
func (c *Chain[T]) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sealed {
		return sealedError()
	}
	c.entries = nil
	return nil
}

// Contains reports whether the (rank, item) pair is present.
func (c *Chain[T]) Contains(item T, rank int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexOf(item, rank) >= 0
}

// Len returns the number of entries.
func (c *Chain[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Entries returns a snapshot in iteration order.
func (c *Chain[T]) Entries() []Entry[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry[T], len(c.entries))
	copy(out, c.entries)
	return out
}

// All iterates a snapshot as (rank, item), ascending by rank.
func (c *Chain[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for _, e := range c.Entries() {
			if !yield(e.Rank, e.Item) {
				return
			}
		}
	}
}

// Backward iterates a snapshot from the highest rank down to the lowest.
func (c *Chain[T]) Backward() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		entries := c.Entries()
		for i := len(entries) - 1; i >= 0; i-- {
			if !yield(entries[i].Rank, entries[i].Item) {
				return
			}
		}
	}
}

// Seal makes the chain read-only. Later mutations fail with ErrSealed.
func (c *Chain[T]) Seal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true
}

// Sealed reports whether Seal was called.
func (c *Chain[T]) Sealed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sealed
}

func (c *Chain[T]) indexOf(item T, rank int) int {
	for i, e := range c.entries {
		if e.Rank == rank && e.Item == item {
			return i
		}
	}
	return -1
}

func sealedError() error {
	return dispatch.NewError(dispatch.ErrSealed, "chain is sealed", nil)
}
