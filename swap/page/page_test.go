package page

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPage(t *testing.T) {
	p := NewPage(4096)
	assert.Equal(t, 4096, len(p.Data()))
	assert.Equal(t, 1, p.Pages())
	assert.False(t, p.IsCompound())
	assert.False(t, p.Dirty())
	assert.False(t, p.Uptodate())
	assert.False(t, p.Locked())
}

func TestCompoundPage(t *testing.T) {
	p := NewCompoundPage(4096, 8)
	assert.Equal(t, 8*4096, len(p.Data()))
	assert.Equal(t, 8, p.Pages())
	assert.True(t, p.IsCompound())
}

func TestFlagTransitions(t *testing.T) {
	p := NewPage(512)

	p.SetDirty()
	p.SetUptodate()
	p.SetWriteback()
	p.SetReclaim()
	p.SetSwapCache()
	p.SetError()

	assert.True(t, p.Dirty())
	assert.True(t, p.Uptodate())
	assert.True(t, p.Writeback())
	assert.True(t, p.Reclaim())
	assert.True(t, p.SwapCache())
	assert.True(t, p.HasError())

	p.ClearDirty()
	p.EndWriteback()
	p.ClearReclaim()
	p.ClearError()

	assert.False(t, p.Dirty())
	assert.False(t, p.Writeback())
	assert.False(t, p.Reclaim())
	assert.False(t, p.HasError())
	// untouched flags survive neighbours being cleared
	assert.True(t, p.Uptodate())
	assert.True(t, p.SwapCache())
}

func TestLockHandoff(t *testing.T) {
	p := NewPage(512)
	p.Lock()
	assert.True(t, p.Locked())
	assert.False(t, p.TryLock())

	// another goroutine releases the lock, the way a completion handler does
	done := make(chan struct{})
	go func() {
		p.Unlock()
		close(done)
	}()
	<-done

	assert.True(t, p.TryLock())
	p.Unlock()
}

func TestLockBlocks(t *testing.T) {
	p := NewPage(512)
	p.Lock()

	acquired := make(chan struct{})
	go func() {
		p.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired while held")
	case <-time.After(20 * time.Millisecond):
	}

	p.Unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock never handed over")
	}
	p.Unlock()
}

func TestConcurrentFlagUpdates(t *testing.T) {
	p := NewPage(512)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				p.SetDirty()
				p.SetUptodate()
				p.ClearDirty()
			}
		}()
	}
	wg.Wait()
	assert.True(t, p.Uptodate())
	assert.False(t, p.Dirty())
}

func TestReset(t *testing.T) {
	p := NewPage(512)
	p.SetSlot(Slot{Store: 3, Offset: 99})
	copy(p.Data(), []byte("payload"))
	p.SetDirty()
	p.SetUptodate()

	p.Reset()

	assert.Equal(t, Slot{}, p.Slot())
	assert.False(t, p.Dirty())
	assert.False(t, p.Uptodate())
	assert.Equal(t, byte(0), p.Data()[0])
}

func TestSlotString(t *testing.T) {
	s := Slot{Store: 2, Offset: 4077}
	assert.Equal(t, "2:4077", s.String())
}
