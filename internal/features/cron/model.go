package cron_feature

import "time"

const (
	JobRetryPending  = "retry-pending-actions"
	JobPurgeSessions = "purge-expired-sessions"
)

// JobInfo describes a registered background job.
type JobInfo struct {
	Name       string     `json:"name"`
	Schedule   string     `json:"schedule"`
	NextRun    *time.Time `json:"next_run,omitempty"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	LastResult string     `json:"last_result,omitempty"`
}

// RetryReport summarises one pass over the pending ledger.
type RetryReport struct {
	Scanned   int `json:"scanned"`
	Resolved  int `json:"resolved"`
	Failed    int `json:"failed"`
	// Abandoned counts records that will not be retried by the scheduler again.
	Abandoned int `json:"abandoned"`
	// Skipped counts records whose session has ended; they wait for a manual retry.
	Skipped int `json:"skipped"`
}
