package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/hupe1980/latchkv/internal/fs"
	"golang.org/x/sync/errgroup"
)

// FileOptions configures a FileDevice. Zero values select defaults.
type FileOptions struct {
	// SegmentBits is the log2 of the segment file size. Default: 30 (1 GiB).
	SegmentBits uint
	// Prefix names the segment files <Prefix>.<n>. Default: "log".
	Prefix string
	// FS is the file system. Default: the local file system.
	FS fs.FileSystem
}

// FileDevice stores the log in fixed-size segment files.
type FileDevice struct {
	dir  string
	opts FileOptions

	mu     sync.Mutex
	files  map[uint64]fs.File
	begin  uint64 // first segment not truncated
	closed bool
}

var (
	_ Device    = (*FileDevice)(nil)
	_ Segmented = (*FileDevice)(nil)
)

// NewFileDevice opens (or creates) a file device in dir.
func NewFileDevice(dir string, opts FileOptions) (*FileDevice, error) {
	if opts.SegmentBits == 0 {
		opts.SegmentBits = 30
	}
	if opts.SegmentBits < 12 || opts.SegmentBits > 40 {
		return nil, fmt.Errorf("segment bits %d out of range [12, 40]", opts.SegmentBits)
	}
	if opts.Prefix == "" {
		opts.Prefix = "log"
	}
	if opts.FS == nil {
		opts.FS = fs.Default
	}
	if err := opts.FS.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileDevice{
		dir:   dir,
		opts:  opts,
		files: make(map[uint64]fs.File),
	}, nil
}

func (d *FileDevice) SegmentBits() uint { return d.opts.SegmentBits }

func (d *FileDevice) path(seg uint64) string {
	return filepath.Join(d.dir, d.opts.Prefix+"."+strconv.FormatUint(seg, 10))
}

// file returns the open segment file. With create unset a missing file
// yields nil.
func (d *FileDevice) file(seg uint64, create bool) (fs.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}
	if f, ok := d.files[seg]; ok {
		return f, nil
	}
	if seg < d.begin {
		return nil, nil
	}

	flag := os.O_RDWR
	if create {
		flag |= os.O_CREATE
	}
	f, err := d.opts.FS.OpenFile(d.path(seg), flag, 0o644)
	if err != nil {
		if !create && errors.Is(err, iofs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	d.files[seg] = f
	return f, nil
}

func (d *FileDevice) WriteAt(ctx context.Context, p []byte, off uint64) error {
	err := span(d.opts.SegmentBits, off, len(p), func(seg uint64, segOff, lo, hi int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := d.file(seg, true)
		if err != nil {
			return err
		}
		if f == nil {
			return fmt.Errorf("segment %d is truncated", seg)
		}
		_, err = f.WriteAt(p[lo:hi], int64(segOff))
		return err
	})
	return wrap("write", off, err)
}

func (d *FileDevice) ReadAt(ctx context.Context, p []byte, off uint64) error {
	err := span(d.opts.SegmentBits, off, len(p), func(seg uint64, segOff, lo, hi int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := d.file(seg, false)
		if err != nil {
			return err
		}
		if f == nil {
			clear(p[lo:hi])
			return nil
		}
		n, err := f.ReadAt(p[lo:hi], int64(segOff))
		if errors.Is(err, io.EOF) {
			clear(p[lo+n : hi])
			return nil
		}
		return err
	})
	return wrap("read", off, err)
}

// Truncate removes every segment file that lies entirely below until.
func (d *FileDevice) Truncate(_ context.Context, until uint64) error {
	cut := until >> d.opts.SegmentBits

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if cut <= d.begin {
		return nil
	}
	d.begin = cut

	entries, err := d.opts.FS.ReadDir(d.dir)
	if err != nil {
		return wrap("truncate", until, err)
	}
	for _, e := range entries {
		seg, ok := d.parse(e.Name())
		if !ok || seg >= cut {
			continue
		}
		if f, ok := d.files[seg]; ok {
			_ = f.Close()
			delete(d.files, seg)
		}
		if err := d.opts.FS.Remove(d.path(seg)); err != nil && !errors.Is(err, iofs.ErrNotExist) {
			return wrap("truncate", until, err)
		}
	}
	return nil
}

func (d *FileDevice) parse(name string) (uint64, bool) {
	rest, ok := strings.CutPrefix(name, d.opts.Prefix+".")
	if !ok {
		return 0, false
	}
	seg, err := strconv.ParseUint(rest, 10, 64)
	return seg, err == nil
}

// Sync flushes all open segment files in parallel.
func (d *FileDevice) Sync(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	files := make([]fs.File, 0, len(d.files))
	for _, f := range d.files {
		files = append(files, f)
	}
	d.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, f := range files {
		g.Go(f.Sync)
	}
	return wrap("sync", 0, g.Wait())
}

func (d *FileDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	for seg, f := range d.files {
		errs = append(errs, f.Close())
		delete(d.files, seg)
	}
	return errors.Join(errs...)
}
