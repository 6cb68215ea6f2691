package latchkv

import (
	"context"
	"errors"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hupe1980/latchkv/internal/checkpoint"
	"github.com/hupe1980/latchkv/internal/hash"
	"github.com/hupe1980/latchkv/internal/hlog"
	"github.com/hupe1980/latchkv/internal/record"
	"github.com/hupe1980/latchkv/internal/version"
)

// recover rebuilds the index from the log prefix of the latest checkpoint.
//
// Records in [StartAddress, FinalAddress) stamped with a later version than
// the checkpoint are excluded and marked invalid on the device, so a later
// checkpoint cannot bring them back. The log resumes at the page boundary
// after FinalAddress; the gap is padded so scans skip whatever the device
// still holds there.
func (s *Store) recover(ctx context.Context) error {
	m, err := s.checkpoints.Load(ctx)
	if errors.Is(err, checkpoint.ErrNotFound) {
		s.logger.InfoContext(ctx, "no checkpoint to recover, starting empty")
		return nil
	}
	if err != nil {
		return translateError(err)
	}
	if err := s.compatible(m); err != nil {
		s.logger.LogRecovery(ctx, m.ID, 0, 0, err)
		return err
	}

	pageSize := uint64(1) << s.opts.pageSizeBits
	tail := (m.FinalAddress + pageSize - 1) &^ (pageSize - 1)

	excluded := roaring64.New()
	recovered := 0
	err = hlog.ScanDevice(ctx, s.dev, s.shape, s.opts.pageSizeBits, m.BeginAddress, m.FinalAddress, func(addr uint64, rec []byte) error {
		h := record.Decode(rec)
		if h.Invalid() {
			return nil
		}
		if addr >= m.StartAddress && version.After(h.Version(), m.Version) {
			excluded.Add(addr)
			return nil
		}
		// Address order: the last record of a bucket is its chain head.
		s.index.Store(hash.Key(s.shape.Key(rec)), addr)
		recovered++
		return nil
	})
	if err == nil {
		err = s.abandon(ctx, excluded)
	}
	if err == nil && tail > m.FinalAddress {
		var pad [record.Size]byte
		record.Encode(pad[:], record.Filler(int(tail-m.FinalAddress)))
		err = s.dev.WriteAt(ctx, pad[:], m.FinalAddress)
	}
	if err == nil {
		err = s.log.RecoverAt(m.BeginAddress, tail)
	}
	if err != nil {
		err = translateError(err)
		s.logger.LogRecovery(ctx, m.ID, recovered, int(excluded.GetCardinality()), err)
		return err
	}

	s.version.Set(m.Version + 1)
	s.logger.LogRecovery(ctx, m.ID, recovered, int(excluded.GetCardinality()), nil)
	return nil
}

// abandon invalidates the headers of the excluded records on the device.
func (s *Store) abandon(ctx context.Context, excluded *roaring64.Bitmap) error {
	var buf [record.Size]byte
	it := excluded.Iterator()
	for it.HasNext() {
		addr := it.Next()
		if err := s.dev.ReadAt(ctx, buf[:], addr); err != nil {
			return err
		}
		record.Encode(buf[:], record.Abandoned(record.Decode(buf[:])))
		if err := s.dev.WriteAt(ctx, buf[:], addr); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) compatible(m *checkpoint.Manifest) error {
	if m.PageSizeBits != s.opts.pageSizeBits {
		return &ErrIncompatibleCheckpoint{
			Field: "page_size_bits",
			Want:  s.opts.pageSizeBits,
			Got:   m.PageSizeBits,
			cause: checkpoint.ErrIncompatibleFormat,
		}
	}
	if want := checkpoint.DescribeShape(s.shape); m.Shape != want {
		return &ErrIncompatibleCheckpoint{
			Field: "shape",
			Want:  want,
			Got:   m.Shape,
			cause: checkpoint.ErrIncompatibleFormat,
		}
	}
	return nil
}
