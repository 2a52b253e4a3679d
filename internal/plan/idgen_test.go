package plan

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDGenerator_StrictlyIncreasing(t *testing.T) {
	g := NewIDGenerator()

	prev := int64(0)
	for i := 0; i < 100; i++ {
		id := g.Next("s1")
		assert.Greater(t, id, prev, "ids must strictly increase within a scope")
		prev = id
	}
}

func TestIDGenerator_ScopesIndependent(t *testing.T) {
	g := NewIDGenerator()

	assert.Equal(t, int64(1), g.Next("a"))
	assert.Equal(t, int64(2), g.Next("a"))
	assert.Equal(t, int64(1), g.Next("b"), "a fresh scope starts over")
	assert.Equal(t, int64(3), g.Next("a"), "allocation in b must not advance a")
}

func TestIDGenerator_NeverReused(t *testing.T) {
	g := NewIDGenerator()

	seen := make(map[int64]bool)
	for i := 0; i < 1000; i++ {
		id := g.Next("s")
		assert.False(t, seen[id], "id %d allocated twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, 1000)
}

func TestIDGenerator_NewIDGeneratorAt(t *testing.T) {
	g := NewIDGeneratorAt("s", 50)
	assert.Equal(t, int64(50), g.Next("s"))
	assert.Equal(t, int64(51), g.Next("s"))
}

func TestIDGenerator_NextKey(t *testing.T) {
	g := NewIDGenerator()
	k := g.NextKey("session-1")
	assert.Equal(t, OperatorKey{Scope: "session-1", ID: 1}, k)
	assert.Equal(t, "session-1-1", k.String())
}

func TestIDGenerator_ThreadSafe(t *testing.T) {
	g := NewIDGenerator()
	const goroutines = 50
	const perGoroutine = 100

	var wg sync.WaitGroup
	ids := make(chan int64, goroutines*perGoroutine)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				ids <- g.Next("shared")
			}
		}()
	}

	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "id %d allocated twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, goroutines*perGoroutine)
}
