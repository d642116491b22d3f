package memory_test

import (
	"sync"
	"testing"

	"github.com/boristopalov/paperrl/pkg/memory"
	"github.com/m-mizutani/gt"
)

func TestBuffer(t *testing.T) {
	t.Run("evicts oldest", func(t *testing.T) {
		b := memory.NewBuffer[int](3)
		for i := 1; i <= 5; i++ {
			b.Store(i)
		}
		gt.Equal(t, b.All(), []int{3, 4, 5})
		gt.Equal(t, b.Len(), 3)
	})

	t.Run("copy is detached", func(t *testing.T) {
		b := memory.NewBuffer[string](2)
		b.Store("a")
		items := b.All()
		items[0] = "changed"
		gt.Equal(t, b.All(), []string{"a"})
	})

	t.Run("non-positive capacity", func(t *testing.T) {
		b := memory.NewBuffer[int](0)
		b.Store(1)
		b.Store(2)
		gt.Equal(t, b.All(), []int{2})
		gt.Equal(t, b.Capacity(), 1)
	})

	t.Run("concurrent stores", func(t *testing.T) {
		b := memory.NewBuffer[int](50)
		var wg sync.WaitGroup
		for i := range 100 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				b.Store(i)
			}(i)
		}
		wg.Wait()
		gt.Equal(t, b.Len(), 50)
	})
}
