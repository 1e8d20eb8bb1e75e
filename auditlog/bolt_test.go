package auditlog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/internal/logging"
	"github.com/google/uuid"
)

func openTestSink(t *testing.T) (*BoltSink, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit", "audit.db")
	s, err := Open(path, Options{Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func event(eventType, username string, ts time.Time) adminauth.AuditEvent {
	return adminauth.AuditEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Timestamp: ts,
		EventType: eventType,
		Username:  username,
		Success:   eventType == "login_success",
		Metadata:  map[string]string{"k": "v"},
	}
}

func TestBoltSink_AppendAndList(t *testing.T) {
	s, _ := openTestSink(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)

	s.Emit(context.Background(), event("login_failure", "alice", base))
	s.Emit(context.Background(), event("login_success", "alice", base.Add(time.Second)))
	s.Emit(context.Background(), event("admin_created", "bob", base.Add(2*time.Second)))

	all, err := s.List(Query{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 || all[0].EventType != "login_failure" || all[2].EventType != "admin_created" {
		t.Fatalf("unexpected order: %+v", all)
	}
	if !all[0].Timestamp.Equal(base) {
		t.Fatalf("timestamp precision lost: %v", all[0].Timestamp)
	}
	if all[0].Metadata["k"] != "v" {
		t.Fatalf("metadata lost: %+v", all[0])
	}

	newest, err := s.List(Query{Newest: true, Limit: 1})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(newest) != 1 || newest[0].EventType != "admin_created" {
		t.Fatalf("unexpected newest: %+v", newest)
	}

	alice, _ := s.List(Query{Username: "alice"})
	if len(alice) != 2 {
		t.Fatalf("expected 2 events for alice, got %d", len(alice))
	}
	window, _ := s.List(Query{Since: base.Add(time.Second), Until: base.Add(2 * time.Second)})
	if len(window) != 1 || window[0].EventType != "login_success" {
		t.Fatalf("unexpected window: %+v", window)
	}

	if n, err := s.Count(); err != nil || n != 3 {
		t.Fatalf("Count = %d, %v", n, err)
	}
	if s.Failed() != 0 {
		t.Fatalf("unexpected failures: %d", s.Failed())
	}
}

func TestBoltSink_NonV7IDGetsKey(t *testing.T) {
	s, _ := openTestSink(t)

	if err := s.Append(adminauth.AuditEvent{EventType: "x", Timestamp: time.Now()}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := s.Append(adminauth.AuditEvent{ID: uuid.NewString(), EventType: "y", Timestamp: time.Now()}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	evs, _ := s.List(Query{})
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[0].ID == "" {
		t.Fatal("empty ID should be filled in")
	}
}

func TestBoltSink_Prune(t *testing.T) {
	s, _ := openTestSink(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := s.Append(event("login_failure", "alice", base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	removed, err := s.Prune(base.Add(3 * time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	rest, _ := s.List(Query{})
	if len(rest) != 2 || !rest[0].Timestamp.Equal(base.Add(3*time.Hour)) {
		t.Fatalf("unexpected remainder: %+v", rest)
	}
}

func TestBoltSink_ReopenReadOnly(t *testing.T) {
	s, path := openTestSink(t)
	if err := s.Append(event("account_locked", "alice", time.Now().UTC())); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Append(event("x", "y", time.Now())); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}

	ro, err := Open(path, Options{ReadOnly: true, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("read-only Open failed: %v", err)
	}
	defer ro.Close()
	evs, err := ro.List(Query{})
	if err != nil || len(evs) != 1 || evs[0].EventType != "account_locked" {
		t.Fatalf("unexpected events %+v (%v)", evs, err)
	}
}

func TestBoltSink_WithEngine(t *testing.T) {
	dir := t.TempDir()
	cfg := adminauth.DefaultConfig()
	cfg.StorePath = filepath.Join(dir, "admin-config.json")
	cfg.InitDefaults.BcryptRounds = 4
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	if err := adminauth.Initialize(cfg, adminauth.InitOptions{Username: "root", Password: "root-password"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	sink, _ := openTestSink(t)
	engine, err := adminauth.New().WithConfig(cfg).WithLogger(logging.Discard()).WithAuditSink(sink).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	ctx := adminauth.WithClientIP(context.Background(), "192.0.2.1")
	_, _ = engine.Login(ctx, "root", "wrong-password")
	if _, err := engine.Login(ctx, "root", "root-password"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	engine.Close()

	evs, err := sink.List(Query{Username: "root"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(evs) != 2 || evs[0].EventType != "login_failure" || evs[1].EventType != "login_success" {
		t.Fatalf("unexpected trail: %+v", evs)
	}
	if evs[0].IP != "192.0.2.1" {
		t.Fatalf("client IP not persisted: %+v", evs[0])
	}
}
