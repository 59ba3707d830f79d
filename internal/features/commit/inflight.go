package commit

import (
	"fmt"
	"sync"

	"records-console/internal/features/workflow"
)

// inFlight serializes commits that target the same lead within a session.
type inFlight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newInFlight() *inFlight {
	return &inFlight{keys: make(map[string]struct{})}
}

func (f *inFlight) acquire(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.keys[key]; busy {
		return false
	}
	f.keys[key] = struct{}{}
	return true
}

func (f *inFlight) release(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
}

// commitKey identifies the lead a request targets; creates have no lead yet and use the request id.
func commitKey(sessionID string, req *workflow.CompositeCommitRequest) string {
	if req.Lead.IsCreate() {
		return fmt.Sprintf("%s:request:%s", sessionID, req.ID)
	}
	return leadKey(sessionID, req.Lead.LeadID)
}

func leadKey(sessionID string, leadID int64) string {
	return fmt.Sprintf("%s:lead:%d", sessionID, leadID)
}
