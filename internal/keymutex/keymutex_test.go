package keymutex_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/TuSKan/go-zarr/internal/keymutex"
)

func TestWithLockSerializesSameKey(t *testing.T) {
	km := keymutex.New(4)
	var active int32
	var maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = km.WithLock("c/0/0", func() error {
				n := atomic.AddInt32(&active, 1)
				for {
					cur := atomic.LoadInt32(&maxActive)
					if n <= cur || atomic.CompareAndSwapInt32(&maxActive, cur, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
}

func TestWithLockDistinctKeysBothRun(t *testing.T) {
	km := keymutex.New(256)
	var wg sync.WaitGroup
	start := make(chan struct{})
	done := make(chan struct{}, 2)

	for i := 0; i < 2; i++ {
		key := "c/0/0"
		if i == 1 {
			key = "c/1/1"
		}
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			<-start
			_ = km.WithLock(key, func() error {
				done <- struct{}{}
				return nil
			})
		}(key)
	}
	close(start)
	wg.Wait()
	close(done)

	count := 0
	for range done {
		count++
	}
	assert.Equal(t, 2, count)
}

func TestLockUnlock(t *testing.T) {
	km := keymutex.New(1)
	km.Lock("a")
	unlocked := make(chan struct{})
	go func() {
		km.Lock("b")
		close(unlocked)
		km.Unlock("b")
	}()
	km.Unlock("a")
	<-unlocked
}
