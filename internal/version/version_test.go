package version

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShort(t *testing.T) {
	assert.Equal(t, uint8(0), Short(0))
	assert.Equal(t, uint8(31), Short(31))
	assert.Equal(t, uint8(0), Short(32))
	assert.Equal(t, uint8(5), Short(1<<40+5))
}

func TestExpand(t *testing.T) {
	for ref := uint64(0); ref < 300; ref++ {
		for back := uint64(0); back < 32 && back <= ref; back++ {
			full := ref - back
			assert.Equal(t, full, Expand(Short(full), ref), "ref=%d back=%d", ref, back)
		}
	}
	// No full version <= 3 has short form 30.
	assert.Equal(t, uint64(30), Expand(30, 3))
	assert.Equal(t, uint64(3), Expand(3, 3))
}

func TestAfter(t *testing.T) {
	tests := []struct {
		short    uint8
		boundary uint64
		want     bool
	}{
		{short: 4, boundary: 3, want: true},
		{short: 3, boundary: 3, want: false},
		{short: 2, boundary: 3, want: false},
		{short: 0, boundary: 31, want: true},
		{short: 31, boundary: 32, want: false},
		{short: Short(33 + 15), boundary: 33, want: true},
		{short: Short(33 + 16), boundary: 33, want: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, After(tt.short, tt.boundary), "short=%d boundary=%d", tt.short, tt.boundary)
	}
}

func TestCounter(t *testing.T) {
	c := NewCounter(30)
	assert.Equal(t, uint64(30), c.Current())
	assert.Equal(t, uint64(31), c.Advance())
	assert.Equal(t, uint64(32), c.Advance())
	assert.Equal(t, uint8(0), c.CurrentShort())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				c.Advance()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(832), c.Current())

	c.Set(7)
	assert.Equal(t, uint64(7), c.Current())
}
