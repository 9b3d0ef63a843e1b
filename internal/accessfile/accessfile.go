// Package accessfile loads workbasket access entries from a TOML manifest
// and can watch the manifest for changes. The manifest is the operator's
// source of truth for permission grants; the CLI seeds the store from it.
package accessfile

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/taskbasket/taskbasket/internal/access"
)

// manifest mirrors the TOML layout:
//
//	[[entry]]
//	workbasket  = "WB-000001"
//	access_id   = "group-clerks"
//	permissions = ["READ", "READTASKS", "EDITTASKS"]
type manifest struct {
	Entries []manifestEntry `toml:"entry"`
}

type manifestEntry struct {
	Workbasket  string   `toml:"workbasket"`
	AccessID    string   `toml:"access_id"`
	Permissions []string `toml:"permissions"`
}

// Load reads and validates the manifest at path.
func Load(path string) ([]access.AccessEntry, error) {
	data, err := os.ReadFile(path) // #nosec G304 - controlled path from caller
	if err != nil {
		return nil, fmt.Errorf("read access manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes a manifest from raw TOML.
func Parse(data []byte) ([]access.AccessEntry, error) {
	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse access manifest: %w", err)
	}

	entries := make([]access.AccessEntry, 0, len(m.Entries))
	for i, e := range m.Entries {
		if e.Workbasket == "" {
			return nil, fmt.Errorf("access manifest entry %d: workbasket is required", i+1)
		}
		if e.AccessID == "" {
			return nil, fmt.Errorf("access manifest entry %d: access_id is required", i+1)
		}
		perms := access.NewPermissionSet()
		for _, p := range e.Permissions {
			perm := access.Permission(p)
			if !perm.IsValid() {
				return nil, fmt.Errorf("access manifest entry %d: unknown permission %q", i+1, p)
			}
			perms[perm] = true
		}
		entries = append(entries, access.AccessEntry{
			WorkbasketID: e.Workbasket,
			AccessID:     e.AccessID,
			Permissions:  perms,
		})
	}
	return entries, nil
}
