package squeue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPopOrder(t *testing.T) {
	q := New[int](4)
	for i := 0; i < 4; i++ {
		require.True(t, q.Push(i))
	}
	for i := 0; i < 4; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := New[int](1)
	done := make(chan int, 1)
	go func() {
		v, ok := q.Pop()
		require.True(t, ok)
		done <- v
	}()

	time.Sleep(10 * time.Millisecond)
	require.True(t, q.Push(42))

	select {
	case v := <-done:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("Pop never returned")
	}
}

func TestCloseDrainsResidualThenFails(t *testing.T) {
	q := New[int](4)
	require.True(t, q.Push(1))
	require.True(t, q.Push(2))
	q.Close()

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestCloseUnblocksPush(t *testing.T) {
	q := New[int](1)
	require.True(t, q.Push(1)) // fill the buffer

	pushed := make(chan bool, 1)
	go func() {
		pushed <- q.Push(2)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-pushed:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Push never returned after Close")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	q := New[int](1)
	q.Close()
	assert.NotPanics(t, q.Close)
}

func TestConcurrentPushNeverPanicsAfterClose(t *testing.T) {
	q := New[int](1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			q.Push(i)
		}
	}()
	time.Sleep(time.Millisecond)
	q.Close()
	<-done
}
