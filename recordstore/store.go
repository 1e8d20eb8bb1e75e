package recordstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// Snapshot is one decoded generation of the store document.
type Snapshot[R, M any] struct {
	Records   map[string]R
	Meta      M
	Revision  uint64
	UpdatedAt time.Time
}

// Mutator computes the next value for one key. exists reports whether cur was present.
type Mutator[R any] func(cur R, exists bool) (R, error)

// Existing adapts fn into a [Mutator] that fails with [ErrNotFound] when the key is absent.
func Existing[R any](fn func(cur R) (R, error)) Mutator[R] {
	return func(cur R, exists bool) (R, error) {
		if !exists {
			var zero R
			return zero, ErrNotFound
		}
		return fn(cur)
	}
}

// Options tunes a [Store].
type Options struct {
	// Perm is applied to the document on every write. Defaults to 0600.
	Perm fs.FileMode
	// Now stamps UpdatedAt. Defaults to time.Now.
	Now func() time.Time
	// DisableFileLock skips the cross-process advisory lock.
	DisableFileLock bool
}

// Option mutates [Options].
type Option func(*Options)

// WithPerm sets the file mode used for the document.
func WithPerm(perm fs.FileMode) Option {
	return func(o *Options) { o.Perm = perm }
}

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Now = now }
}

// WithoutFileLock disables the `<file>.lock` advisory lock.
func WithoutFileLock() Option {
	return func(o *Options) { o.DisableFileLock = true }
}

// Store is a durable key/record document backed by a single file.
type Store[R, M any] struct {
	path  string
	codec Codec[R, M]
	opts  Options

	mu    sync.Mutex
	flock *flock.Flock

	// beforeRename runs after the temp file is complete and before it replaces the
	// document. A non-nil error aborts the write.
	beforeRename func(tmp string) error
}

func newStore[R, M any](path string, codec Codec[R, M], opts []Option) *Store[R, M] {
	o := Options{Perm: 0o600, Now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Perm == 0 {
		o.Perm = 0o600
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if codec == nil {
		codec = JSONCodec[R, M]{}
	}
	s := &Store[R, M]{path: path, codec: codec, opts: o}
	if !o.DisableFileLock {
		s.flock = flock.New(path + ".lock")
	}
	return s
}

// Open attaches to an existing document. It fails with [ErrNotInitialized] if the file is
// missing and [ErrCorrupt] if it cannot be decoded. Temp files abandoned by an interrupted
// write are removed.
func Open[R, M any](path string, codec Codec[R, M], opts ...Option) (*Store[R, M], error) {
	s := newStore(path, codec, opts)

	s.mu.Lock()
	unlock, err := s.lockFile()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.removeStaleTemps()
	unlock()
	s.mu.Unlock()

	if _, err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Create writes snap as a new document. If the file already exists it fails with
// [ErrAlreadyExists] unless overwrite is set, in which case the revision continues from the
// previous document when that document is readable.
func Create[R, M any](path string, codec Codec[R, M], snap *Snapshot[R, M], overwrite bool, opts ...Option) (*Store[R, M], error) {
	if snap == nil {
		return nil, errors.New("recordstore: nil snapshot")
	}
	s := newStore(path, codec, opts)
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("recordstore: create dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.lockFile()
	if err != nil {
		return nil, err
	}
	defer unlock()

	s.removeStaleTemps()

	next := *snap
	next.Revision = 1
	prev, err := s.Load()
	switch {
	case err == nil:
		if !overwrite {
			return nil, ErrAlreadyExists
		}
		next.Revision = prev.Revision + 1
	case errors.Is(err, ErrCorrupt):
		if !overwrite {
			return nil, ErrAlreadyExists
		}
	case errors.Is(err, ErrNotInitialized):
	default:
		return nil, err
	}

	if next.Records == nil {
		next.Records = map[string]R{}
	}
	next.UpdatedAt = s.opts.Now().UTC()
	if err := s.write(&next); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the document path.
func (s *Store[R, M]) Path() string {
	return s.path
}

// Load decodes the current document. Each call returns an independent snapshot.
func (s *Store[R, M]) Load() (*Snapshot[R, M], error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("recordstore: read: %w", err)
	}
	snap, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if snap.Records == nil {
		snap.Records = map[string]R{}
	}
	return snap, nil
}

// Get returns the record stored under key.
func (s *Store[R, M]) Get(key string) (R, error) {
	var zero R
	snap, err := s.Load()
	if err != nil {
		return zero, err
	}
	rec, ok := snap.Records[key]
	if !ok {
		return zero, ErrNotFound
	}
	return rec, nil
}

// Insert stores rec under a new key. It fails with [ErrAlreadyExists] if key is taken.
func (s *Store[R, M]) Insert(key string, rec R) error {
	_, err := s.Mutate(func(snap *Snapshot[R, M]) error {
		if _, ok := snap.Records[key]; ok {
			return ErrAlreadyExists
		}
		snap.Records[key] = rec
		return nil
	})
	return err
}

// Update applies fn to the current record for key and persists the result atomically.
// A failing fn leaves the document untouched.
func (s *Store[R, M]) Update(key string, fn Mutator[R]) (R, error) {
	var out R
	_, err := s.Mutate(func(snap *Snapshot[R, M]) error {
		cur, ok := snap.Records[key]
		next, err := fn(cur, ok)
		if err != nil {
			return err
		}
		snap.Records[key] = next
		out = next
		return nil
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return out, nil
}

// Delete removes key. guard, when non-nil, sees the snapshot with the record already
// removed and may veto the deletion by returning an error.
func (s *Store[R, M]) Delete(key string, guard func(*Snapshot[R, M]) error) error {
	_, err := s.Mutate(func(snap *Snapshot[R, M]) error {
		if _, ok := snap.Records[key]; !ok {
			return ErrNotFound
		}
		delete(snap.Records, key)
		if guard != nil {
			return guard(snap)
		}
		return nil
	})
	return err
}

// Mutate is the general read-modify-write primitive. fn runs on a freshly loaded snapshot
// while the write lock is held; if it returns nil the snapshot is persisted with the next
// revision and returned.
func (s *Store[R, M]) Mutate(fn func(snap *Snapshot[R, M]) error) (*Snapshot[R, M], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lockFile()
	if err != nil {
		return nil, err
	}
	defer unlock()

	snap, err := s.Load()
	if err != nil {
		return nil, err
	}
	if err := fn(snap); err != nil {
		return nil, err
	}
	snap.Revision++
	snap.UpdatedAt = s.opts.Now().UTC()
	if err := s.write(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Store[R, M]) lockFile() (func(), error) {
	if s.flock == nil {
		return func() {}, nil
	}
	if err := s.flock.Lock(); err != nil {
		return nil, fmt.Errorf("recordstore: lock: %w", err)
	}
	return func() { _ = s.flock.Unlock() }, nil
}

func (s *Store[R, M]) tempPattern() string {
	return "." + filepath.Base(s.path) + ".tmp-*"
}

func (s *Store[R, M]) removeStaleTemps() {
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(s.path), s.tempPattern()))
	if err != nil {
		return
	}
	for _, m := range matches {
		_ = os.Remove(m)
	}
}

func (s *Store[R, M]) write(snap *Snapshot[R, M]) error {
	data, err := s.codec.Encode(snap)
	if err != nil {
		return fmt.Errorf("recordstore: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, s.tempPattern())
	if err != nil {
		return fmt.Errorf("recordstore: temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(s.opts.Perm); err != nil && runtime.GOOS != "windows" {
		return fmt.Errorf("recordstore: chmod: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("recordstore: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("recordstore: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("recordstore: close: %w", err)
	}
	if s.beforeRename != nil {
		if err := s.beforeRename(tmpName); err != nil {
			return err
		}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("recordstore: rename: %w", err)
	}
	committed = true
	return syncDir(dir)
}

func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("recordstore: open dir: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("recordstore: sync dir: %w", err)
	}
	return nil
}
