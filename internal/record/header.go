package record

import (
	"fmt"

	"github.com/hupe1980/latchkv/internal/version"
)

// Header is the 64-bit metadata word stored in front of every record.
//
// Bit layout, least significant bit first:
//
//	 0-47  previous address (backward link of the hash chain)
//	48-52  shared lock count
//	53     exclusive lock
//	54     tombstone
//	55     valid
//	56     stub
//	57     sealed
//	58     dirty
//	59-63  version (mod 32)
type Header uint64

const (
	// Size is the encoded length of a Header in bytes.
	Size = 8

	// AddressBits is the width of the previous address field.
	AddressBits = 48
	// AddressMask selects the previous address field.
	AddressMask uint64 = 1<<AddressBits - 1

	sharedShift        = 48
	sharedMask  uint64 = 0x1f << sharedShift
	sharedOne   uint64 = 1 << sharedShift

	// MaxSharedLocks is the largest number of concurrent shared holders.
	MaxSharedLocks = 31

	exclusiveBit uint64 = 1 << 53
	tombstoneBit uint64 = 1 << 54
	validBit     uint64 = 1 << 55
	stubBit      uint64 = 1 << 56
	sealedBit    uint64 = 1 << 57
	dirtyBit     uint64 = 1 << 58

	versionShift        = 59
	versionMask  uint64 = 0x1f << versionShift

	lockBits = sharedMask | exclusiveBit
)

// GetLength returns the encoded size of a header in bytes.
func GetLength() int { return Size }

// GetShortVersion truncates a full checkpoint version to the 5 bits kept in a header.
func GetShortVersion(full uint64) uint8 { return version.Short(full) }

// WriteInfo builds the header of a freshly created record. The result is
// private until it is published with Word.Publish.
func WriteInfo(ver uint64, tombstone, invalid bool, previousAddress uint64) Header {
	var h Header
	h = h.WithTombstone(tombstone)
	h = h.WithValid(!invalid)
	h = h.WithPreviousAddress(previousAddress)
	return h.WithVersion(ver)
}

func (h Header) IsNull() bool { return h == 0 }

func (h Header) PreviousAddress() uint64 { return uint64(h) & AddressMask }

func (h Header) SharedLockCount() int { return int((uint64(h) & sharedMask) >> sharedShift) }

func (h Header) ExclusiveLocked() bool { return uint64(h)&exclusiveBit != 0 }

func (h Header) Tombstone() bool { return uint64(h)&tombstoneBit != 0 }

func (h Header) Valid() bool { return uint64(h)&validBit != 0 }

func (h Header) Invalid() bool { return uint64(h)&validBit == 0 }

func (h Header) Stub() bool { return uint64(h)&stubBit != 0 }

func (h Header) Sealed() bool { return uint64(h)&sealedBit != 0 }

func (h Header) Dirty() bool { return uint64(h)&dirtyBit != 0 }

// Version returns the truncated checkpoint version.
func (h Header) Version() uint8 { return uint8((uint64(h) & versionMask) >> versionShift) }

// WithPreviousAddress stores addr mod 2^48.
func (h Header) WithPreviousAddress(addr uint64) Header {
	return Header(uint64(h)&^AddressMask | addr&AddressMask)
}

// WithVersion stores full mod 32.
func (h Header) WithVersion(full uint64) Header {
	return Header(uint64(h)&^versionMask | uint64(version.Short(full))<<versionShift)
}

func (h Header) WithTombstone(v bool) Header { return h.with(tombstoneBit, v) }

func (h Header) WithValid(v bool) Header { return h.with(validBit, v) }

func (h Header) WithInvalid(v bool) Header { return h.with(validBit, !v) }

func (h Header) WithStub(v bool) Header { return h.with(stubBit, v) }

func (h Header) WithSealed(v bool) Header { return h.with(sealedBit, v) }

func (h Header) WithDirty(v bool) Header { return h.with(dirtyBit, v) }

// Sanitized drops the transient bits (locks, dirty) that must not reach a device.
func (h Header) Sanitized() Header {
	return Header(uint64(h) &^ (lockBits | dirtyBit))
}

func (h Header) with(bit uint64, v bool) Header {
	if v {
		return Header(uint64(h) | bit)
	}
	return Header(uint64(h) &^ bit)
}

func (h Header) String() string {
	return fmt.Sprintf("header{prev=%d v=%d shared=%d x=%t tomb=%t valid=%t stub=%t sealed=%t dirty=%t}",
		h.PreviousAddress(), h.Version(), h.SharedLockCount(), h.ExclusiveLocked(),
		h.Tombstone(), h.Valid(), h.Stub(), h.Sealed(), h.Dirty())
}

// Abandoned marks a record that lost its index race. The sealed bit keeps the
// word non-null even for a version 0 record without a predecessor.
func Abandoned(h Header) Header { return h.WithValid(false).WithSealed(true) }

// Filler returns the stub header that pads the unused end of a page. Its
// address field holds the number of padding bytes, header included.
func Filler(size int) Header {
	return Header(0).WithStub(true).WithSealed(true).WithPreviousAddress(uint64(size))
}

// IsFiller reports whether h pads the end of a page.
func (h Header) IsFiller() bool { return h.Stub() && h.Invalid() }
