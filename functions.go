package latchkv

import "encoding/binary"

// Output receives the result of a Read. Value is reused across calls when it
// has enough capacity.
type Output struct {
	Value  []byte
	Status Status
}

// Functions define how values are read and updated. All callbacks run while
// the record is protected against concurrent in-place writers and must not
// call back into the store.
type Functions interface {
	// Reader copies what the caller needs from value into out.
	Reader(key, input, value []byte, out *Output)

	// InitialValueSize is the value length RMW allocates for an absent key.
	InitialValueSize(key, input []byte) int
	// InitialUpdater fills the value of a key that had none.
	InitialUpdater(key, input, value []byte)

	// InPlaceUpdater applies input to a mutable value. Returning false makes
	// the store fall back to a copy update.
	InPlaceUpdater(key, input, value []byte) bool

	// CopyValueSize is the value length of a copy update.
	CopyValueSize(key, input, oldValue []byte) int
	// CopyUpdater writes the updated value into newValue.
	CopyUpdater(key, input, oldValue, newValue []byte)
}

// CompletionHandler is implemented by Functions that want to be told about
// operations finishing in CompletePending.
type CompletionHandler interface {
	OnCompletion(c Completion)
}

// Completion describes a pending operation that reached a final status.
type Completion struct {
	Kind    OpKind
	Key     []byte
	Status  Status
	Err     error
	Context any
	// Output is the caller's Output of a Read, nil for other kinds.
	Output *Output
}

// ReplaceFunctions makes RMW overwrite the value with its input.
type ReplaceFunctions struct{}

func (ReplaceFunctions) Reader(_, _, value []byte, out *Output) {
	out.Value = append(out.Value[:0], value...)
}

func (ReplaceFunctions) InitialValueSize(_, input []byte) int { return len(input) }

func (ReplaceFunctions) InitialUpdater(_, input, value []byte) { copy(value, input) }

func (ReplaceFunctions) InPlaceUpdater(_, input, value []byte) bool {
	if len(input) != len(value) {
		return false
	}
	copy(value, input)
	return true
}

func (ReplaceFunctions) CopyValueSize(_, input, _ []byte) int { return len(input) }

func (ReplaceFunctions) CopyUpdater(_, input, _, newValue []byte) { copy(newValue, input) }

// AddFunctions treats values as little-endian uint64 counters and RMW
// inputs as increments.
type AddFunctions struct{}

// Uint64 decodes a counter value or increment. Shorter inputs are zero
// extended.
func Uint64(b []byte) uint64 {
	var buf [8]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint64(buf[:])
}

// PutUint64 encodes v as an 8-byte value.
func PutUint64(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}

func (AddFunctions) Reader(_, _, value []byte, out *Output) {
	out.Value = append(out.Value[:0], value...)
}

func (AddFunctions) InitialValueSize([]byte, []byte) int { return 8 }

func (AddFunctions) InitialUpdater(_, input, value []byte) {
	binary.LittleEndian.PutUint64(value, Uint64(input))
}

func (AddFunctions) InPlaceUpdater(_, input, value []byte) bool {
	if len(value) != 8 {
		return false
	}
	binary.LittleEndian.PutUint64(value, binary.LittleEndian.Uint64(value)+Uint64(input))
	return true
}

func (AddFunctions) CopyValueSize([]byte, []byte, []byte) int { return 8 }

func (AddFunctions) CopyUpdater(_, input, oldValue, newValue []byte) {
	binary.LittleEndian.PutUint64(newValue, Uint64(oldValue)+Uint64(input))
}
