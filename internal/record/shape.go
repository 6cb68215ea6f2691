package record

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShape is returned when a key or value does not fit the record shape.
var ErrShape = errors.New("record: key or value does not fit shape")

// ShapeKind tags the record layout.
type ShapeKind uint8

const (
	KindFixed ShapeKind = iota + 1
	KindVariable
)

func (k ShapeKind) String() string {
	switch k {
	case KindFixed:
		return "fixed"
	case KindVariable:
		return "variable"
	default:
		return fmt.Sprintf("ShapeKind(%d)", uint8(k))
	}
}

// Shape describes how key and value bytes are laid out after the header.
// Record sizes are always multiples of 8 so that every header stays aligned.
type Shape interface {
	Kind() ShapeKind
	// RecordSize returns the aligned size of a record holding the given key
	// and value lengths.
	RecordSize(keyLen, valueLen int) int
	// PrefixSize is the number of leading record bytes SizeOf needs.
	PrefixSize() int
	// SizeOf returns the aligned size of the record starting at rec.
	SizeOf(rec []byte) (int, error)
	// Fits reports whether the lengths are representable.
	Fits(keyLen, valueLen int) bool
	// Init writes the key and sizes the value area of a new record.
	Init(rec []byte, key []byte, valueLen int)
	Key(rec []byte) []byte
	Value(rec []byte) []byte
}

// Align rounds n up to a multiple of 8.
func Align(n int) int { return (n + 7) &^ 7 }

// Fixed lays out records as header || key || value with constant sizes.
type Fixed struct {
	KeySize   int
	ValueSize int
}

func (Fixed) Kind() ShapeKind { return KindFixed }

func (f Fixed) RecordSize(int, int) int { return Align(Size + f.KeySize + f.ValueSize) }

func (Fixed) PrefixSize() int { return Size }

func (f Fixed) SizeOf([]byte) (int, error) { return f.RecordSize(0, 0), nil }

func (f Fixed) Fits(keyLen, valueLen int) bool {
	return keyLen == f.KeySize && valueLen == f.ValueSize
}

func (f Fixed) Init(rec []byte, key []byte, _ int) {
	copy(rec[Size:Size+f.KeySize], key)
}

func (f Fixed) Key(rec []byte) []byte { return rec[Size : Size+f.KeySize] }

func (f Fixed) Value(rec []byte) []byte {
	off := Size + f.KeySize
	return rec[off : off+f.ValueSize]
}

// Variable lays out records as header || keyLen u32 || valueLen u32 || key || value.
type Variable struct{}

const (
	varPrefix = Size + 8

	// MaxVariableLength bounds keys and values of the variable shape.
	MaxVariableLength = 1<<31 - 1
)

func (Variable) Kind() ShapeKind { return KindVariable }

func (Variable) RecordSize(keyLen, valueLen int) int { return Align(varPrefix + keyLen + valueLen) }

func (Variable) PrefixSize() int { return varPrefix }

func (v Variable) SizeOf(rec []byte) (int, error) {
	if len(rec) < varPrefix {
		return 0, fmt.Errorf("%w: short record prefix (%d bytes)", ErrShape, len(rec))
	}
	k := binary.LittleEndian.Uint32(rec[Size:])
	n := binary.LittleEndian.Uint32(rec[Size+4:])
	if k > MaxVariableLength || n > MaxVariableLength {
		return 0, fmt.Errorf("%w: lengths %d/%d", ErrShape, k, n)
	}
	return v.RecordSize(int(k), int(n)), nil
}

func (Variable) Fits(keyLen, valueLen int) bool {
	return keyLen <= MaxVariableLength && valueLen <= MaxVariableLength
}

func (Variable) Init(rec []byte, key []byte, valueLen int) {
	binary.LittleEndian.PutUint32(rec[Size:], uint32(len(key)))
	binary.LittleEndian.PutUint32(rec[Size+4:], uint32(valueLen))
	copy(rec[varPrefix:], key)
}

func (Variable) Key(rec []byte) []byte {
	k := binary.LittleEndian.Uint32(rec[Size:])
	return rec[varPrefix : varPrefix+int(k)]
}

func (Variable) Value(rec []byte) []byte {
	k := int(binary.LittleEndian.Uint32(rec[Size:]))
	n := int(binary.LittleEndian.Uint32(rec[Size+4:]))
	off := varPrefix + k
	return rec[off : off+n]
}

// ParseShape rebuilds a shape from its persisted description.
func ParseShape(kind ShapeKind, keySize, valueSize int) (Shape, error) {
	switch kind {
	case KindFixed:
		if keySize <= 0 || valueSize < 0 {
			return nil, fmt.Errorf("%w: fixed %d/%d", ErrShape, keySize, valueSize)
		}
		return Fixed{KeySize: keySize, ValueSize: valueSize}, nil
	case KindVariable:
		return Variable{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrShape, kind)
	}
}

// SizeAt returns the size of the record or filler at the start of rec.
func SizeAt(s Shape, rec []byte) (int, error) {
	h := Decode(rec)
	if h.IsFiller() {
		n := int(h.PreviousAddress())
		if n < Size || n%8 != 0 {
			return 0, fmt.Errorf("%w: filler size %d", ErrShape, n)
		}
		return n, nil
	}
	return s.SizeOf(rec)
}
