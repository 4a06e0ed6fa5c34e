package snowflake

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsOutOfRangeNode(t *testing.T) {
	_, err := New(-1)
	require.Error(t, err)

	_, err = New(1024)
	require.Error(t, err)
}

func TestNextIsUniqueAndOrdered(t *testing.T) {
	req := require.New(t)
	gen, err := New(1)
	req.NoError(err)

	prev := int64(0)
	for i := 0; i < 10000; i++ {
		id := gen.Next()
		req.Greater(id, prev)
		prev = id
	}
}

func TestNextConcurrentUniqueness(t *testing.T) {
	gen, err := New(2)
	require.NoError(t, err)

	const workers = 8
	const perWorker = 1000

	var mu sync.Mutex
	seen := make(map[int64]bool, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]int64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				ids = append(ids, gen.Next())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range ids {
				seen[id] = true
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker)
}
