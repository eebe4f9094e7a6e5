package trace

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ByID(t *testing.T) {
	s := NewStore("order", 10)
	s.Record("t1", "first")
	s.Record("t2", "other trace")
	s.Record("t1", "second")

	events := s.ByID("t1")
	require.Len(t, events, 2)
	assert.Equal(t, "first", events[0].Message)
	assert.Equal(t, "second", events[1].Message)
	assert.Equal(t, "order", events[0].Service)
	assert.False(t, events[1].Timestamp.Before(events[0].Timestamp))
}

func TestStore_ByID_Unknown(t *testing.T) {
	s := NewStore("order", 10)
	assert.Empty(t, s.ByID("nope"))
}

func TestStore_Recent(t *testing.T) {
	s := NewStore("order", 10)
	for i := 0; i < 5; i++ {
		s.Record("", fmt.Sprintf("msg-%d", i))
	}

	recent := s.Recent(3)
	require.Len(t, recent, 3)
	assert.Equal(t, "msg-2", recent[0].Message)
	assert.Equal(t, "msg-4", recent[2].Message)

	assert.Len(t, s.Recent(100), 5)
}

func TestStore_Eviction(t *testing.T) {
	s := NewStore("order", 3)
	for i := 0; i < 10; i++ {
		s.Record("t", fmt.Sprintf("msg-%d", i))
	}

	recent := s.Recent(100)
	require.Len(t, recent, 3)
	assert.Equal(t, "msg-7", recent[0].Message)
	assert.Equal(t, "msg-9", recent[2].Message)

	// The per-id view is bounded by the same eviction.
	byID := s.ByID("t")
	require.Len(t, byID, 3)
	assert.Equal(t, "msg-7", byID[0].Message)
}

func TestStore_EvictionDropsDeadIDs(t *testing.T) {
	s := NewStore("order", 2)
	s.Record("old", "gone soon")
	s.Record("new", "a")
	s.Record("new", "b")

	assert.Empty(t, s.ByID("old"))
	assert.Len(t, s.ByID("new"), 2)
}

func TestStore_ConcurrentRecord(t *testing.T) {
	s := NewStore("order", 100)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Record(fmt.Sprintf("trace-%d", g), "event")
			}
		}(g)
	}
	wg.Wait()

	assert.Len(t, s.Recent(0), 100)
	for g := 0; g < 8; g++ {
		for _, evt := range s.ByID(fmt.Sprintf("trace-%d", g)) {
			assert.Equal(t, "event", evt.Message)
		}
	}
}
