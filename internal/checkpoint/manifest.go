package checkpoint

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/latchkv/internal/record"
)

// FormatVersion is the version of the manifest document.
const FormatVersion = 1

// Manifest describes a committed fold-over checkpoint.
//
// Every record below FinalAddress is on the device. Records in
// [StartAddress, FinalAddress) written after Version (a version later than
// Version) are not part of the checkpoint.
type Manifest struct {
	FormatVersion int       `json:"format_version"`
	ID            uuid.UUID `json:"id"`
	Seq           uint64    `json:"seq"`
	Version       uint64    `json:"version"`
	BeginAddress  uint64    `json:"begin_address"`
	StartAddress  uint64    `json:"start_address"`
	FinalAddress  uint64    `json:"final_address"`
	PageSizeBits  uint      `json:"page_size_bits"`
	IndexBits     uint      `json:"index_bits"`
	Shape         ShapeInfo `json:"shape"`
	CreatedAt     time.Time `json:"created_at"`
}

// ShapeInfo persists the record shape of the log.
type ShapeInfo struct {
	Kind      record.ShapeKind `json:"kind"`
	KeySize   int              `json:"key_size,omitempty"`
	ValueSize int              `json:"value_size,omitempty"`
}

// DescribeShape returns the persisted form of s.
func DescribeShape(s record.Shape) ShapeInfo {
	info := ShapeInfo{Kind: s.Kind()}
	if f, ok := s.(record.Fixed); ok {
		info.KeySize, info.ValueSize = f.KeySize, f.ValueSize
	}
	return info
}

// Shape rebuilds the record shape.
func (i ShapeInfo) Shape() (record.Shape, error) {
	return record.ParseShape(i.Kind, i.KeySize, i.ValueSize)
}

func (m *Manifest) validate() error {
	if m.FormatVersion != FormatVersion {
		return fmt.Errorf("%w: format version %d", ErrIncompatibleFormat, m.FormatVersion)
	}
	if m.BeginAddress > m.StartAddress || m.StartAddress > m.FinalAddress {
		return fmt.Errorf("%w: addresses begin=%d start=%d final=%d", ErrCorrupt, m.BeginAddress, m.StartAddress, m.FinalAddress)
	}
	if _, err := m.Shape.Shape(); err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return nil
}
