// Package scheduler runs recurring scan sessions on cron schedules.
// Jobs come from the schedule section of the configuration; each run
// builds a fresh session, waits for a limiter slot and optionally stores
// the resulting report.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/anstrom/scanwrap/internal/config"
	"github.com/anstrom/scanwrap/internal/logging"
	"github.com/anstrom/scanwrap/internal/scanning"
)

// SessionFactory creates the session for one job run.
type SessionFactory func(targets, args []string) (*scanning.Session, error)

// ReportSink persists a finished report.
type ReportSink interface {
	SaveReport(ctx context.Context, sessionID string, report *scanning.Report) (uuid.UUID, error)
}

// Scheduler manages scheduled scan jobs.
type Scheduler struct {
	cron       *cron.Cron
	limiter    *scanning.Limiter
	newSession SessionFactory
	sink       ReportSink
	jobs       map[string]*ScheduledJob
	mu         sync.RWMutex
	running    bool
	ctx        context.Context
	cancel     context.CancelFunc
	logger     *logging.Logger
}

// ScheduledJob is the runtime state of one job.
type ScheduledJob struct {
	Name      string
	CronID    cron.EntryID
	Config    config.JobConfig
	LastRun   time.Time
	NextRun   time.Time
	Running   bool
	Runs      int
	LastHosts int
	LastError string
}

// NewScheduler creates a scheduler. sink may be nil when storage is disabled.
func NewScheduler(limiter *scanning.Limiter, factory SessionFactory, sink ReportSink) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:       cron.New(),
		limiter:    limiter,
		newSession: factory,
		sink:       sink,
		jobs:       make(map[string]*ScheduledJob),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logging.Default().WithComponent("scheduler"),
	}
}

// Start begins firing jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("Scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// AddJob registers a job under its unique name.
func (s *Scheduler) AddJob(job config.JobConfig) error {
	schedule, err := cron.ParseStandard(job.Cron)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	if len(scanning.NormalizeTargets(job.Targets)) == 0 {
		return fmt.Errorf("job %q has no targets", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %q already exists", job.Name)
	}

	name := job.Name
	cronID, err := s.cron.AddFunc(job.Cron, func() {
		s.executeJob(name)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.jobs[name] = &ScheduledJob{
		Name:    name,
		CronID:  cronID,
		Config:  job,
		NextRun: schedule.Next(time.Now()),
	}

	s.logger.Info("Added scan job", "job", name, "schedule", job.Cron, "targets", job.Targets)
	return nil
}

// RemoveJob unregisters a job.
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job not found")
	}

	s.cron.Remove(job.CronID)
	delete(s.jobs, name)

	s.logger.Info("Removed scan job", "job", name)
	return nil
}

// Jobs returns a snapshot of all jobs sorted by name.
func (s *Scheduler) Jobs() []ScheduledJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]ScheduledJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		snapshot := *job
		if entry := s.cron.Entry(job.CronID); entry.Valid() && !entry.Next.IsZero() {
			snapshot.NextRun = entry.Next
		}
		jobs = append(jobs, snapshot)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}

// RunJob executes a job immediately, outside its schedule.
func (s *Scheduler) RunJob(name string) error {
	s.mu.RLock()
	_, exists := s.jobs[name]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("job not found")
	}
	s.executeJob(name)
	return nil
}

// executeJob runs one scan for the named job. Overlapping runs of the
// same job are skipped.
func (s *Scheduler) executeJob(name string) {
	job, ok := s.prepareJobExecution(name)
	if !ok {
		return
	}
	defer s.cleanupJobExecution(name)

	logger := s.logger.WithFields("job", name)

	hosts, err := s.runSession(job.Config)
	if err != nil {
		logger.WithError(err).Error("Scheduled scan failed")
	} else {
		logger.Info("Scheduled scan completed", "hosts", hosts)
	}

	s.mu.Lock()
	if current, exists := s.jobs[name]; exists {
		current.Runs++
		current.LastHosts = hosts
		current.LastError = ""
		if err != nil {
			current.LastError = err.Error()
		}
	}
	s.mu.Unlock()
}

func (s *Scheduler) runSession(job config.JobConfig) (int, error) {
	session, err := s.newSession(job.Targets, job.Args)
	if err != nil {
		return 0, fmt.Errorf("failed to create session: %w", err)
	}

	report, err := s.limiter.Run(s.ctx, session)
	if err != nil {
		return 0, err
	}

	if job.Store && s.sink != nil {
		if _, err := s.sink.SaveReport(s.ctx, session.ID(), report); err != nil {
			return report.Len(), fmt.Errorf("failed to store report: %w", err)
		}
	}

	return report.Len(), nil
}

// prepareJobExecution marks the job running, or reports false if it is
// unknown or already running.
func (s *Scheduler) prepareJobExecution(name string) (*ScheduledJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[name]
	if !exists {
		return nil, false
	}
	if job.Running {
		s.logger.Warn("Skipping overlapping run", "job", name)
		return nil, false
	}

	job.Running = true
	job.LastRun = time.Now()
	return job, true
}

func (s *Scheduler) cleanupJobExecution(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, exists := s.jobs[name]; exists {
		job.Running = false
	}
}
