package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"records-console/internal/common/apperrors"
	"records-console/internal/features/permission"
)

func loggedIn(t *testing.T, username string) (*MemoryGateway, Credential) {
	t.Helper()
	g := NewMemoryGateway()
	SeedDemoUsers(g)
	stage := 2
	g.PutLead(Lead{LeadID: 42, LeadStage: &stage})
	cred, _, err := g.Authenticate(context.Background(), username, username)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	return g, cred
}

func TestMemoryGateway_EnforcesPermissions(t *testing.T) {
	ctx := context.Background()
	payload := ActionPayload{Date: time.Now(), StatusID: 1}

	g, agent := loggedIn(t, "agent")
	if _, err := g.WriteAction(ctx, agent, ActionCall, 42, payload); !apperrors.IsPermissionDenied(err) {
		t.Errorf("agent action write: expected permission denied, got %v", err)
	}
	stage := 3
	if _, err := g.WriteLead(ctx, agent, LeadMutation{LeadID: 42, LeadStage: &stage}); err != nil {
		t.Errorf("agent lead edit: unexpected error %v", err)
	}

	g, manager := loggedIn(t, "manager")
	action, err := g.WriteAction(ctx, manager, ActionMeeting, 42, payload)
	if err != nil {
		t.Fatalf("manager action write: %v", err)
	}
	if action.ID != 1 || action.Kind != ActionMeeting || len(g.Actions()) != 1 {
		t.Errorf("unexpected action %+v", action)
	}
	if _, err := g.WriteAction(ctx, manager, ActionCall, 99, payload); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("unknown lead: expected not found, got %v", err)
	}
	if _, err := g.FetchLead(ctx, "bogus", 42); !errors.Is(err, apperrors.ErrUnauthenticated) {
		t.Errorf("unknown credential: expected unauthenticated, got %v", err)
	}
}

func TestMemoryGateway_CreateAssignsID(t *testing.T) {
	g, cred := loggedIn(t, "manager")

	lead, err := g.WriteLead(context.Background(), cred, LeadMutation{Fields: map[string]any{"name": "Ada", "lead_phone": "555"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead.LeadID != 43 || lead.Name != "Ada" {
		t.Errorf("unexpected lead %+v", lead)
	}
	if _, ok := g.Lead(43); !ok {
		t.Error("created lead must be stored")
	}
}

func TestMemoryGateway_FailOnAndCalls(t *testing.T) {
	g, cred := loggedIn(t, "manager")
	boom := errors.New("boom")

	g.FailOn("writeAction", boom)
	if _, err := g.WriteAction(context.Background(), cred, ActionCall, 42, ActionPayload{}); !errors.Is(err, boom) {
		t.Errorf("expected injected error, got %v", err)
	}
	g.FailOn("writeAction", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.WriteLead(ctx, cred, LeadMutation{LeadID: 42}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected canceled, got %v", err)
	}

	want := []string{"authenticate", "writeAction:call", "writeLead"}
	calls := g.Calls()
	if len(calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], calls[i])
		}
	}
}

func TestMemoryGateway_LookupsGatedByRead(t *testing.T) {
	g := NewMemoryGateway()
	g.AddUser(MemoryUser{
		Info:     UserInfo{ID: 3, Username: "editor"},
		Password: "pw",
		Permissions: []permission.Permission{
			{ModuleID: permission.ModuleRealEstate, FeatureID: permission.FeatureLeads, CanEdit: true},
		},
	})
	cred, _, err := g.Authenticate(context.Background(), "editor", "pw")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	for _, vocabulary := range []string{VocabularyStages, VocabularyLeadStatuses, VocabularyCallStatuses, VocabularyMeetingStatuses} {
		if _, err := g.FetchLookup(context.Background(), cred, vocabulary); !apperrors.IsPermissionDenied(err) {
			t.Errorf("%s: expected permission denied, got %v", vocabulary, err)
		}
	}

	agentGW, agent := loggedIn(t, "agent")
	for _, vocabulary := range []string{VocabularyStages, VocabularyCallStatuses} {
		if _, err := agentGW.FetchLookup(context.Background(), agent, vocabulary); err != nil {
			t.Errorf("%s: agent reads leads and actions, got %v", vocabulary, err)
		}
	}
}

func TestParseActionKind(t *testing.T) {
	if k, err := ParseActionKind(" Meeting"); err != nil || k != ActionMeeting {
		t.Errorf("expected meeting, got %q %v", k, err)
	}
	if _, err := ParseActionKind("email"); err == nil {
		t.Error("expected error")
	}
	if ActionMeeting.StatusVocabulary() != VocabularyMeetingStatuses || ActionCall.StatusVocabulary() != VocabularyCallStatuses {
		t.Error("unexpected status vocabulary")
	}
}
