package pool_test

import (
	"bytes"
	"sync"
	"testing"

	"github.com/jroosing/pdnsadmin/internal/pool"
	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Pool Tests
// =============================================================================

func TestPool_ConstructorCalled(t *testing.T) {
	callCount := 0
	p := pool.New(func() int {
		callCount++
		return callCount
	})

	assert.Equal(t, 1, p.Get())
	assert.Equal(t, 2, p.Get())
	assert.Equal(t, 2, callCount)
}

func TestPool_ConcurrentAccess(t *testing.T) {
	p := pool.New(func() []byte {
		return make([]byte, 256)
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				buf := p.Get()
				buf[0] = 1
				p.Put(buf)
			}
		}()
	}
	wg.Wait()
}

// =============================================================================
// Buffers Tests
// =============================================================================

func TestBuffers_GetIsEmpty(t *testing.T) {
	b := pool.NewBuffers()

	buf := b.Get()
	buf.WriteString(`{"error":"boom"}`)
	b.Put(buf)

	again := b.Get()
	assert.Zero(t, again.Len())
}

func TestBuffers_PutDropsOversized(t *testing.T) {
	b := pool.NewBuffers()
	big := bytes.NewBuffer(make([]byte, 0, 1<<20))
	b.Put(big)
	b.Put(nil)

	assert.NotNil(t, b.Get())
}

func BenchmarkBuffers_GetPut(b *testing.B) {
	p := pool.NewBuffers()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf := p.Get()
			buf.WriteString("payload")
			p.Put(buf)
		}
	})
}
