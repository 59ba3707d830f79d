package permission

import (
	"testing"

	"records-console/internal/common/apperrors"
)

func TestEvaluate(t *testing.T) {
	m := NewMatrix([]Permission{
		{ModuleID: ModuleRealEstate, FeatureID: FeatureLeads, CanRead: true, CanWrite: true, CanEdit: true},
		{ModuleID: ModuleRealEstate, FeatureID: FeatureActions, CanRead: true},
	})

	tests := []struct {
		name    string
		module  int
		feature int
		action  Action
		want    bool
	}{
		{"leads write", ModuleRealEstate, FeatureLeads, ActionWrite, true},
		{"leads edit", ModuleRealEstate, FeatureLeads, ActionEdit, true},
		{"leads delete not granted", ModuleRealEstate, FeatureLeads, ActionDelete, false},
		{"actions read", ModuleRealEstate, FeatureActions, ActionRead, true},
		{"actions write not granted", ModuleRealEstate, FeatureActions, ActionWrite, false},
		{"missing record denies", ModuleHR, FeatureEmployees, ActionRead, false},
		{"unknown action denies", ModuleRealEstate, FeatureLeads, Action("approve"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(m, tt.module, tt.feature, tt.action); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestEvaluate_FlagsAreIndependent(t *testing.T) {
	// Edit without write must not allow creating records, and the reverse.
	editOnly := NewMatrix([]Permission{{ModuleID: ModuleRealEstate, FeatureID: FeatureLeads, CanEdit: true}})
	if Evaluate(editOnly, ModuleRealEstate, FeatureLeads, ActionWrite) {
		t.Error("edit must not imply write")
	}
	writeOnly := NewMatrix([]Permission{{ModuleID: ModuleRealEstate, FeatureID: FeatureLeads, CanWrite: true}})
	if Evaluate(writeOnly, ModuleRealEstate, FeatureLeads, ActionEdit) {
		t.Error("write must not imply edit")
	}
	if Evaluate(writeOnly, ModuleRealEstate, FeatureLeads, ActionRead) {
		t.Error("write must not imply read")
	}
}

func TestNewMatrix_MergesDuplicates(t *testing.T) {
	m := NewMatrix([]Permission{
		{ModuleID: ModuleHR, FeatureID: FeatureSalaries, CanRead: true},
		{ModuleID: ModuleHR, FeatureID: FeatureSalaries, CanEdit: true},
	})

	if m.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", m.Len())
	}
	p, _ := m.Lookup(ModuleHR, FeatureSalaries)
	if !p.CanRead || !p.CanEdit || p.CanWrite || p.CanDelete {
		t.Errorf("unexpected merged record %+v", p)
	}
}

func TestNilMatrix(t *testing.T) {
	var m *Matrix
	if Evaluate(m, ModuleRealEstate, FeatureLeads, ActionRead) {
		t.Error("nil matrix must deny")
	}
	if len(m.Records()) != 0 || m.Len() != 0 {
		t.Error("nil matrix must be empty")
	}
}

func TestRecordsOrdered(t *testing.T) {
	m := NewMatrix([]Permission{
		{ModuleID: ModuleHR, FeatureID: FeatureEmployees},
		{ModuleID: ModuleRealEstate, FeatureID: FeatureActions},
		{ModuleID: ModuleRealEstate, FeatureID: FeatureLeads},
	})
	recs := m.Records()
	if recs[0].FeatureID != FeatureLeads || recs[1].FeatureID != FeatureActions || recs[2].ModuleID != ModuleHR {
		t.Errorf("unexpected order %+v", recs)
	}
}

func TestEvaluator(t *testing.T) {
	e := NewEvaluator(NewMatrix([]Permission{
		{ModuleID: ModuleRealEstate, FeatureID: FeatureLeads, CanRead: true},
	}))

	if err := e.Require(ModuleRealEstate, FeatureLeads, ActionRead); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := e.Require(ModuleRealEstate, FeatureLeads, ActionWrite); !apperrors.IsPermissionDenied(err) {
		t.Errorf("expected permission denied, got %v", err)
	}

	tests := []struct {
		feature int
		action  Action
		allowed bool
		reason  string
	}{
		{FeatureLeads, ActionRead, true, "granted"},
		{FeatureLeads, ActionDelete, false, "not granted"},
		{FeatureActions, ActionRead, false, "no permission record"},
	}
	for _, tt := range tests {
		d := e.Decide(ModuleRealEstate, tt.feature, tt.action)
		if d.Allowed != tt.allowed || d.Reason != tt.reason {
			t.Errorf("feature %d %s: expected %v/%q, got %v/%q", tt.feature, tt.action, tt.allowed, tt.reason, d.Allowed, d.Reason)
		}
	}

	var nilEval *Evaluator
	if nilEval.Allowed(ModuleRealEstate, FeatureLeads, ActionRead) {
		t.Error("nil evaluator must deny")
	}
}

func TestParseAction(t *testing.T) {
	if a, err := ParseAction(" Edit "); err != nil || a != ActionEdit {
		t.Errorf("expected edit, got %q %v", a, err)
	}
	if _, err := ParseAction("approve"); err == nil {
		t.Error("expected error")
	}
}
