package gateway

import (
	"context"
	"fmt"
	"sync"

	"records-console/internal/common/apperrors"
	"records-console/internal/features/permission"
)

// MemoryUser is an account known to the in-memory gateway.
type MemoryUser struct {
	Info        UserInfo
	Password    string
	Permissions []permission.Permission
}

// MemoryGateway is an in-process ResourceGateway used for local development and tests.
// It records every call in order and lets callers inject failures per operation.
type MemoryGateway struct {
	mu sync.Mutex

	users   map[string]MemoryUser
	creds   map[Credential]string
	leads   map[int64]Lead
	actions []Action
	lookups map[string][]LookupItem
	calls   []string
	fail    map[string]error

	nextLeadID   int64
	nextActionID int64
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		users:   make(map[string]MemoryUser),
		creds:   make(map[Credential]string),
		leads:   make(map[int64]Lead),
		lookups: DefaultLookups(),
		fail:    make(map[string]error),
	}
}

// DefaultLookups mirrors the vocabularies seeded in the records backend.
func DefaultLookups() map[string][]LookupItem {
	return map[string][]LookupItem{
		VocabularyStages: {
			{ID: 1, Name: "Not Assigned"},
			{ID: 2, Name: "Assigned"},
			{ID: 3, Name: "Action Taken"},
		},
		VocabularyLeadStatuses: {
			{ID: 1, Name: "New"},
			{ID: 2, Name: "Hot"},
			{ID: 3, Name: "Warm"},
			{ID: 4, Name: "Cold"},
		},
		VocabularyLeadTypes: {
			{ID: 1, Name: "Campaign"},
			{ID: 2, Name: "Cold Call"},
			{ID: 3, Name: "Personal"},
		},
		VocabularyCallStatuses: {
			{ID: 1, Name: "Scheduled"},
			{ID: 2, Name: "Answered"},
			{ID: 3, Name: "Rescheduled"},
			{ID: 4, Name: "Unanswered"},
		},
		VocabularyMeetingStatuses: {
			{ID: 1, Name: "Scheduled"},
			{ID: 2, Name: "Done"},
			{ID: 3, Name: "Cancelled"},
			{ID: 4, Name: "Rescheduled"},
		},
	}
}

func (g *MemoryGateway) AddUser(u MemoryUser) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.users[u.Info.Username] = u
}

func (g *MemoryGateway) PutLead(l Lead) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.leads[l.LeadID] = l
	if l.LeadID > g.nextLeadID {
		g.nextLeadID = l.LeadID
	}
}

func (g *MemoryGateway) SetLookup(vocabulary string, items []LookupItem) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lookups[vocabulary] = items
}

// FailOn makes every subsequent call to op return err until cleared with a nil error.
func (g *MemoryGateway) FailOn(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.fail, op)
		return
	}
	g.fail[op] = err
}

// Calls returns the operation names in the order they were invoked.
func (g *MemoryGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *MemoryGateway) Actions() []Action {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Action(nil), g.actions...)
}

func (g *MemoryGateway) Lead(id int64) (Lead, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.leads[id]
	return l, ok
}

func (g *MemoryGateway) enter(op string) error {
	g.calls = append(g.calls, op)
	return g.fail[op]
}

func (g *MemoryGateway) user(cred Credential) (MemoryUser, error) {
	name, ok := g.creds[cred]
	if !ok {
		return MemoryUser{}, apperrors.ErrUnauthenticated
	}
	return g.users[name], nil
}

func (g *MemoryGateway) Authenticate(ctx context.Context, username, password string) (Credential, UserInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("authenticate"); err != nil {
		return "", UserInfo{}, err
	}
	u, ok := g.users[username]
	if !ok || u.Password != password {
		return "", UserInfo{}, apperrors.ErrUnauthenticated
	}
	cred := BasicCredential(username, password)
	g.creds[cred] = username
	return cred, u.Info, nil
}

func (g *MemoryGateway) FetchPermissions(ctx context.Context, cred Credential) ([]permission.Permission, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("fetchPermissions"); err != nil {
		return nil, err
	}
	u, err := g.user(cred)
	if err != nil {
		return nil, err
	}
	return append([]permission.Permission(nil), u.Permissions...), nil
}

func (g *MemoryGateway) FetchLead(ctx context.Context, cred Credential, leadID int64) (Lead, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("fetchLead"); err != nil {
		return Lead{}, err
	}
	if _, err := g.user(cred); err != nil {
		return Lead{}, err
	}
	l, ok := g.leads[leadID]
	if !ok {
		return Lead{}, fmt.Errorf("%w: lead %d", apperrors.ErrNotFound, leadID)
	}
	return l, nil
}

// WriteLead enforces the same permission the backend does: Leads.Write to create, Leads.Edit to update.
func (g *MemoryGateway) WriteLead(ctx context.Context, cred Credential, mutation LeadMutation) (Lead, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("writeLead"); err != nil {
		return Lead{}, err
	}
	if err := ctx.Err(); err != nil {
		return Lead{}, &apperrors.GatewayError{Op: "writeLead", Err: err}
	}
	u, err := g.user(cred)
	if err != nil {
		return Lead{}, err
	}
	matrix := permission.NewMatrix(u.Permissions)

	if mutation.IsCreate() {
		if !permission.Evaluate(matrix, permission.ModuleRealEstate, permission.FeatureLeads, permission.ActionWrite) {
			return Lead{}, apperrors.PermissionDenied("writeLead: create")
		}
		g.nextLeadID++
		lead := Lead{LeadID: g.nextLeadID, LeadStage: mutation.LeadStage}
		if name, ok := mutation.Fields["name"].(string); ok {
			lead.Name = name
		}
		if phone, ok := mutation.Fields["lead_phone"].(string); ok {
			lead.LeadPhone = phone
		}
		g.leads[lead.LeadID] = lead
		return lead, nil
	}

	if !permission.Evaluate(matrix, permission.ModuleRealEstate, permission.FeatureLeads, permission.ActionEdit) {
		return Lead{}, apperrors.PermissionDenied("writeLead: update")
	}
	lead, ok := g.leads[mutation.LeadID]
	if !ok {
		return Lead{}, fmt.Errorf("%w: lead %d", apperrors.ErrNotFound, mutation.LeadID)
	}
	if mutation.LeadStage != nil {
		stage := *mutation.LeadStage
		lead.LeadStage = &stage
	}
	if name, ok := mutation.Fields["name"].(string); ok {
		lead.Name = name
	}
	g.leads[lead.LeadID] = lead
	return lead, nil
}

func (g *MemoryGateway) WriteAction(ctx context.Context, cred Credential, kind ActionKind, leadID int64, payload ActionPayload) (Action, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("writeAction:" + string(kind)); err != nil {
		return Action{}, err
	}
	if err := g.fail["writeAction"]; err != nil {
		return Action{}, err
	}
	if err := ctx.Err(); err != nil {
		return Action{}, &apperrors.GatewayError{Op: "writeAction", Err: err}
	}
	u, err := g.user(cred)
	if err != nil {
		return Action{}, err
	}
	if !permission.Evaluate(permission.NewMatrix(u.Permissions), permission.ModuleRealEstate, permission.FeatureActions, permission.ActionWrite) {
		return Action{}, apperrors.PermissionDenied("writeAction")
	}
	if _, ok := g.leads[leadID]; !ok {
		return Action{}, fmt.Errorf("%w: lead %d", apperrors.ErrNotFound, leadID)
	}
	g.nextActionID++
	action := Action{ID: g.nextActionID, Kind: kind, LeadID: leadID, Date: payload.Date, StatusID: payload.StatusID}
	g.actions = append(g.actions, action)
	return action, nil
}

// FetchLookup serves lead vocabularies to sessions with Leads.read and action status
// vocabularies to sessions with Actions.read, as the records backend does.
func (g *MemoryGateway) FetchLookup(ctx context.Context, cred Credential, vocabulary string) ([]LookupItem, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("fetchLookup:" + vocabulary); err != nil {
		return nil, err
	}
	u, err := g.user(cred)
	if err != nil {
		return nil, err
	}
	feature := permission.FeatureLeads
	if vocabulary == VocabularyCallStatuses || vocabulary == VocabularyMeetingStatuses {
		feature = permission.FeatureActions
	}
	if !permission.Evaluate(permission.NewMatrix(u.Permissions), permission.ModuleRealEstate, feature, permission.ActionRead) {
		return nil, apperrors.PermissionDenied("fetchLookup: %s", vocabulary)
	}
	items, ok := g.lookups[vocabulary]
	if !ok {
		return nil, fmt.Errorf("%w: vocabulary %s", apperrors.ErrNotFound, vocabulary)
	}
	return append([]LookupItem(nil), items...), nil
}
