// Package pmpool is the persistent-memory pool adapter MVTree is built on.
// It plays the role libpmemobj plays for pmemkv: a single memory-mapped
// file, a typed allocator, and transactions with undo-on-abort. Go has no
// binding to PMDK, so this adapter substitutes golang.org/x/sys/unix.Mmap
// over a regular file; see DESIGN.md for why that substitution is safe for
// the properties MVTree actually depends on (a stable byte-addressable
// arena plus all-or-nothing mutation), and where it diverges (no hardware
// persistence barrier, so Sync relies on msync + the OS page cache instead
// of CPU cache-line flushes).
package pmpool

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/huynhanx03/mvtreekv/pkg/mvtreelog"
)

// Pool is an open memory-mapped pool file.
type Pool struct {
	file   *os.File
	mapped []byte
	sb     superblock
	alloc  *allocator
	log    *zap.Logger
}

// Open opens the pool file at cfg.Path, creating and sizing it at cfg.Size
// if it does not yet exist. Reopening an existing pool always honors the
// size recorded in its own superblock; cfg.Size is only consulted at
// creation time.
func Open(cfg Config) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := mvtreelog.New(cfg.Logger)

	created := false
	f, err := os.OpenFile(cfg.Path, os.O_RDWR, 0o644)
	if errors.Is(err, os.ErrNotExist) {
		f, err = os.OpenFile(cfg.Path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			return nil, wrapConstructionError(KindPathUnusable, err, "create pool file")
		}
		if err := f.Truncate(int64(cfg.Size)); err != nil {
			f.Close()
			os.Remove(cfg.Path)
			return nil, wrapConstructionError(KindPathUnusable, err, "size pool file")
		}
		created = true
	} else if err != nil {
		return nil, wrapConstructionError(KindPathUnusable, err, "open pool file")
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, wrapConstructionError(KindPathUnusable, err, "stat pool file")
	}
	size := info.Size()
	if size < MinPoolSize {
		f.Close()
		return nil, newConstructionError(KindSizeTooSmall, "pool file %d bytes below minimum %d", size, MinPoolSize)
	}

	mapped, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, wrapConstructionError(KindPathUnusable, err, "mmap pool file")
	}

	sb := newSuperblock(mapped)
	if created {
		sb.init(uint64(size))
		log.Info("pool created", zap.String("path", cfg.Path), zap.Uint64("size", uint64(size)))
	} else {
		if err := sb.checkMagicAndVersion(); err != nil {
			unix.Munmap(mapped)
			f.Close()
			return nil, err
		}
		if sb.fileSize() != uint64(size) {
			unix.Munmap(mapped)
			f.Close()
			return nil, newConstructionError(KindLayoutMismatch, "superblock size %d does not match file size %d", sb.fileSize(), size)
		}
		log.Info("pool opened", zap.String("path", cfg.Path), zap.Uint64("size", uint64(size)))
	}

	p := &Pool{
		file:   f,
		mapped: mapped,
		sb:     sb,
		alloc:  newAllocator(sb, mapped),
		log:    log,
	}
	return p, nil
}

// Tag returns the pool's folded identity tag, used to stamp every ObjectID
// this pool hands out.
func (p *Pool) Tag() uint64 {
	return p.sb.poolTag()
}

// Root returns the oid of the pool-global root object (NullOID if none has
// been set yet).
func (p *Pool) Root() ObjectID {
	off := p.sb.rootOffset()
	if off == 0 {
		return NullOID
	}
	return ObjectID{Pool: p.Tag(), Offset: off}
}

// SetRoot records oid as the pool-global root object. It is not transactional
// on its own; callers set it from inside a committed Tx so a crash never
// observes a root pointing at a not-yet-durable object.
func (p *Pool) SetRoot(oid ObjectID) error {
	if !oid.IsNull() && oid.Pool != p.Tag() {
		return newConstructionError(KindLayoutMismatch, "oid belongs to a different pool")
	}
	p.sb.setRootOffset(oid.Offset)
	return nil
}

// Deref returns the live slice backing oid, which must be size bytes long.
func (p *Pool) Deref(oid ObjectID, size int) []byte {
	return p.alloc.deref(oid.Offset, size)
}

// Sync flushes the mapping to the backing file, the closest analogue this
// adapter has to PMDK's persistence barrier.
func (p *Pool) Sync() error {
	return unix.Msync(p.mapped, unix.MS_SYNC)
}

// Close unmaps and closes the pool file. It syncs first so no committed
// transaction is lost.
func (p *Pool) Close() error {
	if err := p.Sync(); err != nil {
		return errors.Wrap(err, "pmpool: sync on close")
	}
	if err := unix.Munmap(p.mapped); err != nil {
		return errors.Wrap(err, "pmpool: munmap")
	}
	return p.file.Close()
}

// Logger returns the pool's structured logger, shared with mvtree so both
// layers log through the same sink.
func (p *Pool) Logger() *zap.Logger {
	return p.log
}
