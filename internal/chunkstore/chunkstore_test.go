package chunkstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeaudit/reverb-1/internal/reverbpb"
)

func TestPutReturnsSameChunkForSameKey(t *testing.T) {
	s := NewStore()
	c1 := s.Put(&reverbpb.ChunkData{ChunkKey: 1})
	c2 := s.Put(&reverbpb.ChunkData{ChunkKey: 1})
	assert.Same(t, c1, c2)
	assert.Equal(t, 1, s.Len())
}

func TestUnrefEvictsAtZero(t *testing.T) {
	s := NewStore()
	c := s.Put(&reverbpb.ChunkData{ChunkKey: 7})
	require.Equal(t, 1, s.Len())

	c.Unref()
	assert.Equal(t, 0, s.Len())
}

func TestRefKeepsChunkAliveUntilAllUnref(t *testing.T) {
	s := NewStore()
	c := s.Put(&reverbpb.ChunkData{ChunkKey: 3})
	c.Ref()
	require.Equal(t, 1, s.Len())

	c.Unref()
	assert.Equal(t, 1, s.Len(), "chunk should survive one unref while a second ref is outstanding")

	c.Unref()
	assert.Equal(t, 0, s.Len())
}

func TestGetAddsReference(t *testing.T) {
	s := NewStore()
	s.Put(&reverbpb.ChunkData{ChunkKey: 5})

	got := s.Get(5)
	require.NotNil(t, got)
	assert.Equal(t, uint64(5), got.Key())

	assert.Nil(t, s.Get(99))
}
