package threadsafe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	m := NewMap[string, int]()

	m.Set("a", 1)
	m.Set("b", 2)

	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = m.Get("c")
	assert.False(t, ok)

	seen := map[string]int{}
	m.Range(func(k string, v int) bool {
		seen[k] = v
		return true
	})
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, seen)
}

func TestMapConcurrent(t *testing.T) {
	m := NewMap[int, int]()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Set(base*100+j, j)
			}
		}(i)
	}
	wg.Wait()

	n := 0
	m.Range(func(int, int) bool {
		n++
		return true
	})
	assert.Equal(t, 800, n)
}
