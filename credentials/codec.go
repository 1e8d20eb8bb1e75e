package credentials

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrEthical07/adminauth/recordstore"
)

// Snapshot is one decoded generation of the credential document.
type Snapshot = recordstore.Snapshot[AdminRecord, Meta]

// Codec reads both document shapes and writes the shape recorded in [Meta.Legacy].
type Codec struct{}

var _ recordstore.Codec[AdminRecord, Meta] = Codec{}

type document struct {
	Admins   json.RawMessage `json:"admins,omitempty"`
	Admin    json.RawMessage `json:"admin,omitempty"`
	Security json.RawMessage `json:"security"`
	System   SystemInfo      `json:"system"`
}

type multiDocument struct {
	Admins   map[string]AdminRecord `json:"admins"`
	Security SecurityPolicy         `json:"security"`
	System   SystemInfo             `json:"system"`
}

type legacyDocument struct {
	Admin    AdminRecord    `json:"admin"`
	Security SecurityPolicy `json:"security"`
	System   SystemInfo     `json:"system"`
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Decode implements [recordstore.Codec]. Legacy documents are normalized to the keyed form.
func (Codec) Decode(data []byte) (*Snapshot, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	hasMulti, hasLegacy := present(doc.Admins), present(doc.Admin)
	if hasMulti == hasLegacy {
		return nil, errors.New(`exactly one of "admins" or "admin" must be present`)
	}
	if !present(doc.Security) {
		return nil, errors.New(`missing "security" section`)
	}

	snap := &Snapshot{Records: map[string]AdminRecord{}}
	if err := json.Unmarshal(doc.Security, &snap.Meta.Security); err != nil {
		return nil, fmt.Errorf("security: %w", err)
	}
	if err := snap.Meta.Security.Validate(); err != nil {
		return nil, err
	}

	if hasMulti {
		if err := json.Unmarshal(doc.Admins, &snap.Records); err != nil {
			return nil, fmt.Errorf("admins: %w", err)
		}
	} else {
		var rec AdminRecord
		if err := json.Unmarshal(doc.Admin, &rec); err != nil {
			return nil, fmt.Errorf("admin: %w", err)
		}
		rec.Role = RoleSuperAdmin
		snap.Records[rec.Username] = rec
		snap.Meta.Legacy = true
	}
	if err := checkRecords(snap.Records); err != nil {
		return nil, err
	}

	snap.Meta.System = doc.System
	snap.Revision = doc.System.Revision
	snap.UpdatedAt = doc.System.UpdatedAt
	return snap, nil
}

// Encode implements [recordstore.Codec]. It refuses to write a document that Decode would
// reject.
func (Codec) Encode(snap *Snapshot) ([]byte, error) {
	if err := checkRecords(snap.Records); err != nil {
		return nil, err
	}
	if err := snap.Meta.Security.Validate(); err != nil {
		return nil, err
	}

	sys := snap.Meta.System
	sys.Revision = snap.Revision
	sys.UpdatedAt = snap.UpdatedAt

	if snap.Meta.Legacy && len(snap.Records) == 1 {
		var only AdminRecord
		for _, rec := range snap.Records {
			only = rec
		}
		return json.MarshalIndent(legacyDocument{Admin: only, Security: snap.Meta.Security, System: sys}, "", "  ")
	}
	return json.MarshalIndent(multiDocument{Admins: snap.Records, Security: snap.Meta.Security, System: sys}, "", "  ")
}
