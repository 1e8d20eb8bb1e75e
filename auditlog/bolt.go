package auditlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/internal/logging"
	clog "github.com/charmbracelet/log"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var bucketEvents = []byte("events")

// Timestamps keep nanosecond precision; the default CBOR time mode truncates to seconds.
var encMode = mustEncMode(cbor.EncOptions{Time: cbor.TimeRFC3339Nano})

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	em, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

// ErrClosed is returned by operations on a closed [BoltSink].
var ErrClosed = errors.New("auditlog: closed")

// Options tunes [Open].
type Options struct {
	// Timeout bounds how long Open waits for the database file lock. Defaults to 1s.
	Timeout time.Duration
	// ReadOnly opens the database for reading. Emit and Prune fail.
	ReadOnly bool
	Logger   *clog.Logger
}

// BoltSink is an [adminauth.AuditSink] that appends every event to a bbolt bucket.
type BoltSink struct {
	db     *bbolt.DB
	logger *clog.Logger
	failed atomic.Uint64
	closed atomic.Bool
}

var _ adminauth.AuditSink = (*BoltSink)(nil)

// Open opens or creates the audit database at path.
func Open(path string, opts Options) (*BoltSink, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if !opts.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create audit directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: opts.Timeout, ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if !opts.ReadOnly {
		err = db.Update(func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucketEvents)
			return err
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create buckets: %w", err)
		}
	}
	return &BoltSink{db: db, logger: opts.Logger}, nil
}

// Emit implements [adminauth.AuditSink]. Write failures are logged and counted.
func (s *BoltSink) Emit(_ context.Context, event adminauth.AuditEvent) {
	if err := s.Append(event); err != nil {
		s.failed.Add(1)
		s.logger.Warn("audit event not persisted", "event", event.EventType, "err", err)
	}
}

// Append stores one event. Events whose ID is not a UUIDv7 are stored under a fresh one.
func (s *BoltSink) Append(event adminauth.AuditEvent) error {
	if s.closed.Load() {
		return ErrClosed
	}
	key, err := eventKey(event.ID)
	if err != nil {
		return err
	}
	if event.ID == "" {
		event.ID = key.String()
	}
	data, err := encMode.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEvents).Put(key[:], data)
	})
}

func eventKey(id string) (uuid.UUID, error) {
	if parsed, err := uuid.Parse(id); err == nil && parsed.Version() == 7 {
		return parsed, nil
	}
	return uuid.NewV7()
}

// Failed returns how many events Emit could not persist.
func (s *BoltSink) Failed() uint64 {
	return s.failed.Load()
}

// Query selects events for [BoltSink.List]. Zero values match everything.
type Query struct {
	Username  string
	EventType string
	Since     time.Time
	Until     time.Time
	// Limit caps the result size. Zero means no limit.
	Limit int
	// Newest lists the most recent events first.
	Newest bool
}

func (q Query) match(ev adminauth.AuditEvent) bool {
	switch {
	case q.Username != "" && ev.Username != q.Username:
		return false
	case q.EventType != "" && ev.EventType != q.EventType:
		return false
	case !q.Since.IsZero() && ev.Timestamp.Before(q.Since):
		return false
	case !q.Until.IsZero() && !ev.Timestamp.Before(q.Until):
		return false
	}
	return true
}

// List returns the events matching q in storage order, or newest first when q.Newest is set.
// Entries that fail to decode are skipped.
func (s *BoltSink) List(q Query) ([]adminauth.AuditEvent, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var out []adminauth.AuditEvent
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		first, next := c.First, c.Next
		if q.Newest {
			first, next = c.Last, c.Prev
		}
		for k, v := first(); k != nil; k, v = next() {
			var ev adminauth.AuditEvent
			if err := cbor.Unmarshal(v, &ev); err != nil {
				continue
			}
			if !q.match(ev) {
				continue
			}
			out = append(out, ev)
			if q.Limit > 0 && len(out) >= q.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of stored events.
func (s *BoltSink) Count() (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketEvents); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n, err
}

// Prune deletes events with a timestamp before cutoff and reports how many were removed.
func (s *BoltSink) Prune(cutoff time.Time) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var ev adminauth.AuditEvent
			if err := cbor.Unmarshal(v, &ev); err == nil && !ev.Timestamp.Before(cutoff) {
				return nil
			}
			stale = append(stale, append([]byte(nil), k...))
			return nil
		})
		if err != nil {
			return err
		}
		// Keys are deleted after the walk; deleting under a live cursor skips entries.
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Close closes the database. It is safe to call more than once.
func (s *BoltSink) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}
