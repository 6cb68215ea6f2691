package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/latchkv/blobstore"
)

const (
	// CurrentName is the blob naming the latest committed manifest.
	CurrentName = "CURRENT"
	// Dir holds the manifest documents.
	Dir = "checkpoints/"
)

var (
	// ErrNotFound is returned when no checkpoint was committed yet.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrCorrupt is returned for manifests that fail validation.
	ErrCorrupt = errors.New("corrupt checkpoint manifest")

	// ErrIncompatibleFormat is returned for manifests of another format version.
	ErrIncompatibleFormat = errors.New("incompatible checkpoint format")
)

// Store commits manifests to a blob store. A manifest is written first and
// then published by replacing CURRENT, so a crash in between leaves the
// previous checkpoint in effect.
type Store struct {
	store blobstore.BlobStore
	mu    sync.Mutex
	seq   uint64
}

// NewStore creates a manifest store on top of store.
func NewStore(store blobstore.BlobStore) *Store {
	return &Store{store: store}
}

func manifestName(id uuid.UUID) string {
	return Dir + id.String() + ".json"
}

// Save commits m. ID, Seq, FormatVersion and CreatedAt are assigned.
func (s *Store) Save(ctx context.Context, m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seq == 0 {
		if cur, err := s.load(ctx); err == nil {
			s.seq = cur.Seq
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
	}

	m.FormatVersion = FormatVersion
	m.ID = uuid.New()
	m.Seq = s.seq + 1
	m.CreatedAt = time.Now().UTC()
	if err := m.validate(); err != nil {
		return err
	}

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	name := manifestName(m.ID)
	if err := s.store.Put(ctx, name, data); err != nil {
		return fmt.Errorf("write manifest %s: %w", name, err)
	}
	if err := s.store.Put(ctx, CurrentName, []byte(name)); err != nil {
		return fmt.Errorf("publish manifest %s: %w", name, err)
	}
	s.seq = m.Seq
	return nil
}

// Load returns the latest committed manifest.
func (s *Store) Load(ctx context.Context) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) (*Manifest, error) {
	name, err := blobstore.ReadAll(ctx, s.store, CurrentName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.read(ctx, strings.TrimSpace(string(name)))
}

// LoadID returns the manifest with the given ID.
func (s *Store) LoadID(ctx context.Context, id uuid.UUID) (*Manifest, error) {
	m, err := s.read(ctx, manifestName(id))
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m, err
}

func (s *Store) read(ctx context.Context, name string) (*Manifest, error) {
	data, err := blobstore.ReadAll(ctx, s.store, name)
	if err != nil {
		return nil, fmt.Errorf("open manifest %s: %w", name, err)
	}
	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, path.Base(name), err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// List returns all readable manifests, oldest first. Unreadable manifests
// are skipped.
func (s *Store) List(ctx context.Context) ([]*Manifest, error) {
	names, err := s.store.List(ctx, Dir)
	if err != nil {
		return nil, err
	}
	var out []*Manifest
	for _, name := range names {
		if path.Ext(name) != ".json" {
			continue
		}
		m, err := s.read(ctx, name)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// Prune deletes all but the newest keep manifests. The current manifest is
// never deleted.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	cur, err := s.load(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return 0, err
	}

	deleted := 0
	for i := 0; i < len(all)-max(keep, 1); i++ {
		if cur != nil && all[i].ID == cur.ID {
			continue
		}
		if err := s.store.Delete(ctx, manifestName(all[i].ID)); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
