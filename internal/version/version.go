// Package version encodes checkpoint versions.
//
// The engine keeps a full 64-bit version counter, but every record header
// only has room for the low 5 bits. Comparisons between a stored short
// version and a full version are valid as long as the two are less than half
// a wrap (16 versions) apart.
package version

import "sync/atomic"

const (
	// Bits is the number of version bits stored in a record header.
	Bits = 5
	// Mask selects the stored bits of a full version.
	Mask = 1<<Bits - 1
	// Window is the largest distance After can order unambiguously.
	Window = 1 << (Bits - 1)
)

// Short truncates a full version to its stored form.
func Short(full uint64) uint8 { return uint8(full & Mask) }

// Expand returns the largest full version <= reference whose short form is
// short. It returns reference itself when the forms already agree. When no
// such version exists (reference < short), it returns short.
func Expand(short uint8, reference uint64) uint64 {
	back := uint64((Short(reference) - short) & Mask)
	if back > reference {
		return uint64(short & Mask)
	}
	return reference - back
}

// After reports whether a record tagged short was written by a version later
// than boundary, assuming the record is within half a wrap of boundary.
func After(short uint8, boundary uint64) bool {
	d := (short - Short(boundary)) & Mask
	return d != 0 && d < Window
}

// Counter is the current checkpoint version of a store.
type Counter struct {
	v atomic.Uint64
}

// NewCounter starts a counter at start.
func NewCounter(start uint64) *Counter {
	c := &Counter{}
	c.v.Store(start)
	return c
}

// Current returns the full current version.
func (c *Counter) Current() uint64 { return c.v.Load() }

// CurrentShort returns the stored form of the current version.
func (c *Counter) CurrentShort() uint8 { return Short(c.v.Load()) }

// Advance moves to the next version and returns it.
func (c *Counter) Advance() uint64 { return c.v.Add(1) }

// Set overwrites the version, used when recovering from a checkpoint.
func (c *Counter) Set(v uint64) { c.v.Store(v) }
