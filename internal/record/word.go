package record

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

// Word is an atomic view of a header that lives inline in log memory.
//
// All mutations go through CAS or atomic bit operations so that concurrent
// lock holders and flag setters never lose each other's updates.
type Word struct {
	p *atomic.Uint64
}

// WordAt returns the header word at the start of b. b must be 8-byte aligned
// and at least Size bytes long.
func WordAt(b []byte) Word {
	_ = b[Size-1]
	return Word{p: (*atomic.Uint64)(unsafe.Pointer(&b[0]))}
}

// NewWord allocates a detached word, mostly useful in tests.
func NewWord(h Header) Word {
	w := Word{p: new(atomic.Uint64)}
	w.p.Store(uint64(h))
	return w
}

// Load returns a snapshot of the header.
func (w Word) Load() Header { return Header(w.p.Load()) }

// Publish makes a header built by WriteInfo visible with a single store.
func (w Word) Publish(h Header) { w.p.Store(uint64(h)) }

func (w Word) CompareAndSwap(old, new Header) bool {
	return w.p.CompareAndSwap(uint64(old), uint64(new))
}

func (w Word) SetTombstone(v bool) { w.setBit(tombstoneBit, v) }

func (w Word) SetValid(v bool) { w.setBit(validBit, v) }

func (w Word) SetInvalid(v bool) { w.setBit(validBit, !v) }

func (w Word) SetStub(v bool) { w.setBit(stubBit, v) }

func (w Word) SetSealed(v bool) { w.setBit(sealedBit, v) }

func (w Word) SetDirty(v bool) { w.setBit(dirtyBit, v) }

// SetVersion stores full mod 32. Callers hold the exclusive lock.
func (w Word) SetVersion(full uint64) {
	for {
		old := w.Load()
		if w.CompareAndSwap(old, old.WithVersion(full)) {
			return
		}
	}
}

// SetPreviousAddress relinks the record. Only used when rewriting chains.
func (w Word) SetPreviousAddress(addr uint64) {
	for {
		old := w.Load()
		if w.CompareAndSwap(old, old.WithPreviousAddress(addr)) {
			return
		}
	}
}

func (w Word) setBit(bit uint64, v bool) {
	if v {
		w.p.Or(bit)
		return
	}
	w.p.And(^bit)
}

// Encode writes h in little-endian order, the in-memory layout of a Word on
// the platforms this package supports.
func Encode(b []byte, h Header) { binary.LittleEndian.PutUint64(b, uint64(h)) }

// Decode reads a header written by Encode or copied from log memory.
func Decode(b []byte) Header { return Header(binary.LittleEndian.Uint64(b)) }

// Abandon invalidates a published record that never made it into the index.
func (w Word) Abandon() {
	for {
		old := w.Load()
		if w.CompareAndSwap(old, Abandoned(old)) {
			return
		}
	}
}
