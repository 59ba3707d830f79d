package permission

import (
	"fmt"
	"sort"
	"strings"
)

// Module identifiers as stored by the records backend.
const (
	ModuleRealEstate = 1
	ModuleHR         = 2
)

// Feature identifiers are scoped per module.
const (
	FeatureLeads   = 1
	FeatureActions = 2

	FeatureEmployees = 1
	FeatureSalaries  = 2
)

type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionRead, ActionWrite, ActionEdit, ActionDelete:
		return a, nil
	default:
		return "", fmt.Errorf("unknown permission action %q", s)
	}
}

// Permission is one granted capability record for a (module, feature) pair.
type Permission struct {
	ModuleID  int  `json:"module_id" bson:"module_id"`
	FeatureID int  `json:"feature_id" bson:"feature_id"`
	CanRead   bool `json:"d_read" bson:"d_read"`
	CanWrite  bool `json:"d_write" bson:"d_write"`
	CanEdit   bool `json:"d_edit" bson:"d_edit"`
	CanDelete bool `json:"d_delete" bson:"d_delete"`
}

func (p Permission) allows(action Action) bool {
	switch action {
	case ActionRead:
		return p.CanRead
	case ActionWrite:
		return p.CanWrite
	case ActionEdit:
		return p.CanEdit
	case ActionDelete:
		return p.CanDelete
	default:
		return false
	}
}

// merge combines grants from several roles; the most permissive flag wins.
func (p Permission) merge(o Permission) Permission {
	p.CanRead = p.CanRead || o.CanRead
	p.CanWrite = p.CanWrite || o.CanWrite
	p.CanEdit = p.CanEdit || o.CanEdit
	p.CanDelete = p.CanDelete || o.CanDelete
	return p
}

type key struct {
	module  int
	feature int
}

// Matrix is the immutable set of permissions loaded for a session.
// A nil *Matrix behaves as an empty matrix.
type Matrix struct {
	entries map[key]Permission
}

// NewMatrix builds a snapshot holding at most one record per (module, feature).
// Duplicate records are merged.
func NewMatrix(records []Permission) *Matrix {
	m := &Matrix{entries: make(map[key]Permission, len(records))}
	for _, rec := range records {
		k := key{module: rec.ModuleID, feature: rec.FeatureID}
		if existing, ok := m.entries[k]; ok {
			m.entries[k] = existing.merge(rec)
			continue
		}
		m.entries[k] = rec
	}
	return m
}

func (m *Matrix) Lookup(moduleID, featureID int) (Permission, bool) {
	if m == nil {
		return Permission{}, false
	}
	p, ok := m.entries[key{module: moduleID, feature: featureID}]
	return p, ok
}

func (m *Matrix) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Records returns a copy of the matrix ordered by module then feature.
func (m *Matrix) Records() []Permission {
	if m == nil {
		return []Permission{}
	}
	out := make([]Permission, 0, len(m.entries))
	for _, p := range m.entries {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ModuleID != out[j].ModuleID {
			return out[i].ModuleID < out[j].ModuleID
		}
		return out[i].FeatureID < out[j].FeatureID
	})
	return out
}
