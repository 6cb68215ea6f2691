package latchkv

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/latchkv/internal/checkpoint"
)

// CheckpointInfo describes a committed checkpoint.
type CheckpointInfo struct {
	ID      uuid.UUID
	Seq     uint64
	Version uint64
	// BeginAddress is the lowest address the checkpoint needs.
	BeginAddress uint64
	// StartAddress is the tail when the checkpoint began; records above it
	// written by a later version are left out.
	StartAddress uint64
	// FinalAddress is the end of the checkpointed log.
	FinalAddress uint64
	CreatedAt    time.Time
}

func infoOf(m *checkpoint.Manifest) CheckpointInfo {
	return CheckpointInfo{
		ID:           m.ID,
		Seq:          m.Seq,
		Version:      m.Version,
		BeginAddress: m.BeginAddress,
		StartAddress: m.StartAddress,
		FinalAddress: m.FinalAddress,
		CreatedAt:    m.CreatedAt,
	}
}

// Checkpoint takes a fold-over checkpoint: it moves the store to the next
// version, makes the whole log read-only, flushes it and commits a manifest
// to the object store. Operations keep running meanwhile.
//
// A key's state in the checkpoint is that of some operation on the key;
// operations on different keys around the checkpoint are not ordered.
func (s *Store) Checkpoint(ctx context.Context) (CheckpointInfo, error) {
	if s.closed.Load() {
		return CheckpointInfo{}, ErrClosed
	}
	s.ckptMu.Lock()
	defer s.ckptMu.Unlock()

	begin := time.Now()
	start, v := s.beginCheckpoint()
	info, err := s.commitCheckpoint(ctx, start, v)

	s.metrics.RecordCheckpoint(time.Since(begin), err)
	s.logger.LogCheckpoint(ctx, info.ID, v, info.FinalAddress, time.Since(begin), err)
	return info, err
}

// beginCheckpoint reads the tail and then advances the version, so every
// record of the new version lies at or above the returned start address.
func (s *Store) beginCheckpoint() (start, v uint64) {
	start = s.log.TailAddress()
	v = s.version.Current()
	s.version.Advance()
	return start, v
}

func (s *Store) commitCheckpoint(ctx context.Context, start, v uint64) (CheckpointInfo, error) {
	final := s.log.TailAddress()
	s.log.ShiftReadOnly(final)
	if err := s.log.WaitFlushed(ctx, final); err != nil {
		return CheckpointInfo{}, translateError(err)
	}
	if err := s.dev.Sync(ctx); err != nil {
		return CheckpointInfo{}, err
	}

	m := &checkpoint.Manifest{
		Version:      v,
		BeginAddress: s.log.BeginAddress(),
		StartAddress: start,
		FinalAddress: final,
		PageSizeBits: s.opts.pageSizeBits,
		IndexBits:    s.opts.indexBits,
		Shape:        checkpoint.DescribeShape(s.shape),
	}
	if err := s.checkpoints.Save(ctx, m); err != nil {
		return CheckpointInfo{}, translateError(err)
	}
	return infoOf(m), nil
}

// Checkpoints lists the committed checkpoints, oldest first.
func (s *Store) Checkpoints(ctx context.Context) ([]CheckpointInfo, error) {
	ms, err := s.checkpoints.List(ctx)
	if err != nil {
		return nil, translateError(err)
	}
	infos := make([]CheckpointInfo, 0, len(ms))
	for _, m := range ms {
		infos = append(infos, infoOf(m))
	}
	return infos, nil
}

// PruneCheckpoints deletes all but the newest keep manifests. The current
// checkpoint is always kept.
func (s *Store) PruneCheckpoints(ctx context.Context, keep int) (int, error) {
	n, err := s.checkpoints.Prune(ctx, keep)
	return n, translateError(err)
}

// LatestCheckpoint returns the checkpoint Open(WithRecover()) would restore,
// or ErrNoCheckpoint.
func (s *Store) LatestCheckpoint(ctx context.Context) (CheckpointInfo, error) {
	m, err := s.checkpoints.Load(ctx)
	if err != nil {
		return CheckpointInfo{}, translateError(err)
	}
	return infoOf(m), nil
}
