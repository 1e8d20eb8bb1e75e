package credentials

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/MrEthical07/adminauth/recordstore"
)

// Repository is the credential store. All methods are safe for concurrent use.
type Repository struct {
	store *recordstore.Store[AdminRecord, Meta]
}

// Open attaches to an existing credential document.
func Open(path string, opts ...recordstore.Option) (*Repository, error) {
	s, err := recordstore.Open[AdminRecord, Meta](path, Codec{}, opts...)
	if err != nil {
		return nil, err
	}
	return &Repository{store: s}, nil
}

// Bootstrap describes the first document written by [Initialize].
type Bootstrap struct {
	Admin     AdminRecord
	Security  SecurityPolicy
	Version   string
	Now       time.Time
	Overwrite bool
}

// Initialize writes a new document holding a single super_admin. It fails with
// [recordstore.ErrAlreadyExists] if a document exists and Overwrite is false.
func Initialize(path string, b Bootstrap, opts ...recordstore.Option) (*Repository, error) {
	admin := b.Admin
	admin.Role = RoleSuperAdmin
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = b.Now.UTC()
	}
	admin.ClearLockout()
	if err := admin.Validate(); err != nil {
		return nil, err
	}
	if err := b.Security.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	snap := &Snapshot{
		Records: map[string]AdminRecord{admin.Username: admin},
		Meta: Meta{
			Security: b.Security,
			System:   SystemInfo{Version: b.Version, CreatedAt: b.Now.UTC()},
		},
	}
	s, err := recordstore.Create[AdminRecord, Meta](path, Codec{}, snap, b.Overwrite, opts...)
	if err != nil {
		return nil, err
	}
	return &Repository{store: s}, nil
}

// Path returns the document path.
func (r *Repository) Path() string {
	return r.store.Path()
}

// Snapshot loads the whole document.
func (r *Repository) Snapshot() (*Snapshot, error) {
	return r.store.Load()
}

// FindByUsername returns the record for username. Usernames are exact, case-sensitive keys.
func (r *Repository) FindByUsername(username string) (AdminRecord, error) {
	return r.store.Get(username)
}

// List returns all records ordered by username.
func (r *Repository) List() ([]AdminRecord, error) {
	snap, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	return sortedRecords(snap.Records), nil
}

// Policy returns the stored security policy.
func (r *Repository) Policy() (SecurityPolicy, error) {
	snap, err := r.store.Load()
	if err != nil {
		return SecurityPolicy{}, err
	}
	return snap.Meta.Security, nil
}

// CountSuperAdmins returns the number of super_admin records.
func (r *Repository) CountSuperAdmins() (int, error) {
	snap, err := r.store.Load()
	if err != nil {
		return 0, err
	}
	return countSuperAdmins(snap.Records), nil
}

// Create adds a new record. A second record moves a legacy document to the keyed shape.
func (r *Repository) Create(rec AdminRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	_, err := r.mutate(func(snap *Snapshot) error {
		if _, ok := snap.Records[rec.Username]; ok {
			return recordstore.ErrAlreadyExists
		}
		snap.Records[rec.Username] = rec
		if len(snap.Records) > 1 {
			snap.Meta.Legacy = false
		}
		return nil
	})
	return err
}

// Put creates or replaces rec, provided the document still holds a super_admin afterwards.
func (r *Repository) Put(rec AdminRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	_, err := r.mutate(func(snap *Snapshot) error {
		if cur, ok := snap.Records[rec.Username]; ok && !cur.CreatedAt.IsZero() {
			rec.CreatedAt = cur.CreatedAt
		}
		snap.Records[rec.Username] = rec
		if len(snap.Records) > 1 {
			snap.Meta.Legacy = false
		}
		return nil
	})
	return err
}

// Update applies fn to the record for username inside one atomic write. fn must not change
// the username. The policy in effect for this write is passed alongside the record.
func (r *Repository) Update(username string, fn func(rec AdminRecord, policy SecurityPolicy) (AdminRecord, error)) (AdminRecord, error) {
	var out AdminRecord
	_, err := r.mutate(func(snap *Snapshot) error {
		cur, ok := snap.Records[username]
		if !ok {
			return recordstore.ErrNotFound
		}
		next, err := fn(cur, snap.Meta.Security)
		if err != nil {
			return err
		}
		if next.Username != username {
			return fmt.Errorf("%w: username is immutable", ErrInvalidRecord)
		}
		next.CreatedAt = cur.CreatedAt
		if err := next.Validate(); err != nil {
			return err
		}
		snap.Records[username] = next
		out = next
		return nil
	})
	if err != nil {
		return AdminRecord{}, err
	}
	return out, nil
}

// Remove deletes the record for username. Removing the last super_admin fails with
// [ErrInvariantViolation].
func (r *Repository) Remove(username string) error {
	return r.store.Delete(username, func(snap *Snapshot) error {
		if len(snap.Records) == 0 {
			return fmt.Errorf("%w: cannot remove the only administrator", ErrInvariantViolation)
		}
		if countSuperAdmins(snap.Records) == 0 {
			return fmt.Errorf("%w: cannot remove the last super_admin", ErrInvariantViolation)
		}
		return nil
	})
}

// SetRole changes the role of username. Demoting the last super_admin fails with
// [ErrInvariantViolation].
func (r *Repository) SetRole(username string, role Role) (AdminRecord, error) {
	if !role.Valid() {
		return AdminRecord{}, fmt.Errorf("%w: unknown role %q", ErrInvalidRecord, role)
	}
	return r.Update(username, func(rec AdminRecord, _ SecurityPolicy) (AdminRecord, error) {
		rec.Role = role
		return rec, nil
	})
}

// RotateSecret replaces the signing secret and returns the new policy.
func (r *Repository) RotateSecret(secret string) (SecurityPolicy, error) {
	if secret == "" {
		return SecurityPolicy{}, fmt.Errorf("%w: empty secret", ErrInvalidRecord)
	}
	snap, err := r.mutate(func(snap *Snapshot) error {
		snap.Meta.Security = snap.Meta.Security.WithSecret(secret)
		return nil
	})
	if err != nil {
		return SecurityPolicy{}, err
	}
	return snap.Meta.Security, nil
}

// Migrate rewrites a legacy single-admin document in the keyed shape. It reports whether a
// rewrite happened.
func (r *Repository) Migrate() (bool, error) {
	snap, err := r.store.Load()
	if err != nil {
		return false, err
	}
	if !snap.Meta.Legacy {
		return false, nil
	}
	migrated := false
	_, err = r.mutate(func(snap *Snapshot) error {
		migrated = snap.Meta.Legacy
		if !migrated {
			return errNoChange
		}
		snap.Meta.Legacy = false
		return nil
	})
	if errors.Is(err, errNoChange) {
		return false, nil
	}
	return migrated, err
}

var errNoChange = errors.New("no change")

// mutate runs fn and re-checks document invariants before anything is written.
func (r *Repository) mutate(fn func(snap *Snapshot) error) (*Snapshot, error) {
	return r.store.Mutate(func(snap *Snapshot) error {
		if err := fn(snap); err != nil {
			return err
		}
		return checkRecords(snap.Records)
	})
}

func sortedRecords(records map[string]AdminRecord) []AdminRecord {
	out := make([]AdminRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}
