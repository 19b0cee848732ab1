// Package chunkstore implements reference-counted chunk ownership for the
// local (in-process) transport. Remote-stream chunks never pass through
// here: they arrive already exclusively owned by the worker that read
// them off the wire (spec.md §3, "Design notes: cyclic or shared chunk
// ownership").
package chunkstore

import (
	"sync"

	"github.com/codeaudit/reverb-1/internal/reverbpb"
)

// Chunk is a ref-counted handle to an immutable ChunkData payload shared
// between the table and every sampler worker that has a pending item
// referencing it.
type Chunk struct {
	key  uint64
	data *reverbpb.ChunkData

	mu       sync.Mutex
	refCount int
	onZero   func(uint64)
}

// Key returns the chunk's 64-bit key.
func (c *Chunk) Key() uint64 { return c.key }

// Data returns the immutable payload. Callers must not mutate it.
func (c *Chunk) Data() *reverbpb.ChunkData { return c.data }

// Ref increments the reference count and returns c, so callers can write
// chunks[key] = chunk.Ref().
func (c *Chunk) Ref() *Chunk {
	c.mu.Lock()
	c.refCount++
	c.mu.Unlock()
	return c
}

// Unref decrements the reference count, invoking the store's eviction
// callback once it reaches zero.
func (c *Chunk) Unref() {
	c.mu.Lock()
	c.refCount--
	zero := c.refCount == 0
	c.mu.Unlock()
	if zero && c.onZero != nil {
		c.onZero(c.key)
	}
}

// Store owns a pool of ref-counted chunks keyed by their 64-bit key.
type Store struct {
	mu     sync.Mutex
	chunks map[uint64]*Chunk
}

// NewStore builds an empty chunk store.
func NewStore() *Store {
	return &Store{chunks: make(map[uint64]*Chunk)}
}

// Put inserts (or returns the existing) chunk for data.ChunkKey, with one
// reference held on behalf of the caller.
func (s *Store) Put(data *reverbpb.ChunkData) *Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.chunks[data.ChunkKey]; ok {
		return existing.Ref()
	}
	c := &Chunk{key: data.ChunkKey, data: data, refCount: 1, onZero: s.evict}
	s.chunks[data.ChunkKey] = c
	return c
}

// Get returns the chunk for key with an additional reference held, or nil
// if it is not present.
func (s *Store) Get(key uint64) *Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[key]
	if !ok {
		return nil
	}
	return c.Ref()
}

// Len reports the number of distinct chunks currently stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

func (s *Store) evict(key uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chunks[key]; ok && c.refCount == 0 {
		delete(s.chunks, key)
	}
}
