package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassFor(t *testing.T) {
	assert.Equal(t, 0, classFor(0))
	assert.Equal(t, 0, classFor(4096))
	assert.Equal(t, 1, classFor(4097))
	assert.Equal(t, 1, classFor(8192))
	assert.Equal(t, numClasses-1, classFor(1<<maxClassShift))
	assert.Equal(t, -1, classFor(1<<maxClassShift+1))
}

func TestBufferPool_GetRelease(t *testing.T) {
	p := NewBufferPool()

	b := p.Get(100)
	assert.Equal(t, 100, b.Len())
	assert.GreaterOrEqual(t, cap(b.B), 4096)

	_, _, outstanding := p.Stats()
	assert.Equal(t, int64(1), outstanding)

	b.Release()
	b.Release() // second release is a no-op

	gets, _, outstanding := p.Stats()
	assert.Equal(t, int64(1), gets)
	assert.Equal(t, int64(0), outstanding)
}

func TestBufferPool_Oversized(t *testing.T) {
	p := NewBufferPool()
	b := p.Get(1<<maxClassShift + 1)
	assert.Equal(t, 1<<maxClassShift+1, b.Len())
	b.Release()

	_, allocs, outstanding := p.Stats()
	assert.Equal(t, int64(1), allocs)
	assert.Equal(t, int64(0), outstanding)
}

func TestBufferPool_NilSafe(t *testing.T) {
	var b *Buffer
	assert.Nil(t, b.Bytes())
	assert.Equal(t, 0, b.Len())
	b.Release()
}

func TestBufferPool_Concurrent(t *testing.T) {
	p := NewBufferPool()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b := p.Get((i + 1) * 1000)
				b.B[0] = byte(j)
				b.Release()
			}
		}(i)
	}
	wg.Wait()

	_, _, outstanding := p.Stats()
	assert.Equal(t, int64(0), outstanding)
}
