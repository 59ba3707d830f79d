package permission

import (
	"records-console/internal/common/apperrors"
)

// Evaluate answers whether the matrix grants action on (module, feature).
// Absence of a record is a denial.
func Evaluate(m *Matrix, moduleID, featureID int, action Action) bool {
	p, ok := m.Lookup(moduleID, featureID)
	if !ok {
		return false
	}
	return p.allows(action)
}

// Evaluator binds Evaluate to a single session's matrix.
type Evaluator struct {
	matrix *Matrix
}

func NewEvaluator(m *Matrix) *Evaluator {
	return &Evaluator{matrix: m}
}

func (e *Evaluator) Allowed(moduleID, featureID int, action Action) bool {
	if e == nil {
		return false
	}
	return Evaluate(e.matrix, moduleID, featureID, action)
}

// Require returns a wrapped apperrors.ErrPermissionDenied when the action is not granted.
func (e *Evaluator) Require(moduleID, featureID int, action Action) error {
	if e.Allowed(moduleID, featureID, action) {
		return nil
	}
	return apperrors.PermissionDenied("%s on module %d feature %d", action, moduleID, featureID)
}

// Decision is the explained form of an evaluation, returned to the view layer.
type Decision struct {
	ModuleID  int    `json:"module_id"`
	FeatureID int    `json:"feature_id"`
	Action    Action `json:"action"`
	Allowed   bool   `json:"allowed"`
	Reason    string `json:"reason"`
}

func (e *Evaluator) Decide(moduleID, featureID int, action Action) Decision {
	d := Decision{ModuleID: moduleID, FeatureID: featureID, Action: action}
	var m *Matrix
	if e != nil {
		m = e.matrix
	}
	p, ok := m.Lookup(moduleID, featureID)
	switch {
	case !ok:
		d.Reason = "no permission record"
	case p.allows(action):
		d.Allowed = true
		d.Reason = "granted"
	default:
		d.Reason = "not granted"
	}
	return d
}
