package cron_feature

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"records-console/internal/config"
	"records-console/internal/features/commit"
	"records-console/internal/features/lookup"
	"records-console/internal/features/pending"
	"records-console/internal/features/session"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const retryBatchSize = 50

type CronService interface {
	InitializeScheduler(ctx context.Context) error
	StopScheduler() error
	Jobs() []JobInfo
	RunNow(ctx context.Context, name string) (string, error)
	RetryPending(ctx context.Context) (RetryReport, error)
}

type job struct {
	schedule   string
	run        func(ctx context.Context) (string, error)
	entryID    cron.EntryID
	lastRun    *time.Time
	lastResult string
}

type CronServiceImpl struct {
	pendingService pending.PendingService
	coordinator    commit.Coordinator
	sessions       session.SessionService
	lookups        lookup.LookupService
	retrySchedule  string
	logger         *zap.Logger

	scheduler *cron.Cron
	jobs      map[string]*job
	running   map[string]bool
	mu        sync.RWMutex
}

func NewCronService(
	pendingService pending.PendingService,
	coordinator commit.Coordinator,
	sessions session.SessionService,
	lookups lookup.LookupService,
	cfg *config.Config,
	logger *zap.Logger,
) CronService {
	s := &CronServiceImpl{
		pendingService: pendingService,
		coordinator:    coordinator,
		sessions:       sessions,
		lookups:        lookups,
		retrySchedule:  cfg.PendingRetrySchedule,
		logger:         logger.Named("cron"),
		jobs:           make(map[string]*job),
		running:        make(map[string]bool),
	}
	s.jobs[JobRetryPending] = &job{schedule: cfg.PendingRetrySchedule, run: s.runRetry}
	s.jobs[JobPurgeSessions] = &job{schedule: "@every 10m", run: s.runPurge}
	return s
}

func (s *CronServiceImpl) InitializeScheduler(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scheduler = cron.New()
	for name, j := range s.jobs {
		name := name
		id, err := s.scheduler.AddFunc(j.schedule, func() {
			if _, err := s.RunNow(context.Background(), name); err != nil {
				s.logger.Warn("scheduled job failed", zap.String("job", name), zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("failed to add job %s to scheduler: %w", name, err)
		}
		j.entryID = id
	}

	s.scheduler.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
	return nil
}

func (s *CronServiceImpl) StopScheduler() error {
	s.mu.RLock()
	scheduler := s.scheduler
	s.mu.RUnlock()

	if scheduler != nil {
		ctx := scheduler.Stop()
		<-ctx.Done()
		s.logger.Info("scheduler stopped")
	}
	return nil
}

func (s *CronServiceImpl) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, j := range s.jobs {
		info := JobInfo{Name: name, Schedule: j.schedule, LastRun: j.lastRun, LastResult: j.lastResult}
		if s.scheduler != nil {
			if next := s.scheduler.Entry(j.entryID).Next; !next.IsZero() {
				info.NextRun = &next
			}
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, k int) bool { return infos[i].Name < infos[k].Name })
	return infos
}

// RunNow executes a job immediately. Overlapping runs of the same job are refused.
func (s *CronServiceImpl) RunNow(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("unknown job %q", name)
	}
	if s.running[name] {
		s.mu.Unlock()
		return "", fmt.Errorf("job %q is already running", name)
	}
	s.running[name] = true
	s.mu.Unlock()

	start := time.Now()
	result, err := j.run(ctx)
	if err != nil {
		result = err.Error()
	}

	s.mu.Lock()
	s.running[name] = false
	j.lastRun = &start
	j.lastResult = result
	s.mu.Unlock()

	s.logger.Debug("job finished", zap.String("job", name), zap.Duration("took", time.Since(start)), zap.String("result", result))
	return result, err
}

func (s *CronServiceImpl) runRetry(ctx context.Context) (string, error) {
	report, err := s.RetryPending(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("scanned=%d resolved=%d failed=%d abandoned=%d skipped=%d",
		report.Scanned, report.Resolved, report.Failed, report.Abandoned, report.Skipped), nil
}

// RetryPending re-issues due action writes using the credential of the session that recorded them.
// Records of ended sessions are left for their owner to retry by hand.
func (s *CronServiceImpl) RetryPending(ctx context.Context) (RetryReport, error) {
	var report RetryReport

	live := s.sessions.ActiveIDs(ctx)
	if len(live) == 0 {
		return report, nil
	}

	due, err := s.pendingService.Due(ctx, live, retryBatchSize)
	if err != nil {
		return report, err
	}

	for i := range due {
		record := &due[i]
		report.Scanned++

		sess, err := s.sessions.Get(ctx, record.SessionID)
		if err != nil {
			report.Skipped++
			continue
		}

		out := s.coordinator.RetryPending(ctx, sess, record)
		switch {
		case out.Succeeded():
			report.Resolved++
		case out.Kind == commit.KindPartialFailure && !out.Retryable:
			report.Abandoned++
		default:
			report.Failed++
		}
	}

	if report.Scanned > 0 {
		s.logger.Info("pending actions retried",
			zap.Int("scanned", report.Scanned),
			zap.Int("resolved", report.Resolved),
			zap.Int("failed", report.Failed),
			zap.Int("skipped", report.Skipped),
		)
	}
	return report, nil
}

func (s *CronServiceImpl) runPurge(ctx context.Context) (string, error) {
	purged := s.sessions.PurgeExpired(ctx)
	for _, id := range purged {
		s.lookups.Forget(id)
	}
	return fmt.Sprintf("purged=%d", len(purged)), nil
}
