// Package scheduler runs the periodic reconciliation jobs: the auto-match
// sweep over the queue and the rebuild of the candidate index.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/matcher"
)

const (
	JobSweep          = "autoMatchSweep"
	JobCatalogRefresh = "catalogRefresh"
)

// Scheduler wraps a cron runner bound to one engine.
type Scheduler struct {
	cron   *cron.Cron
	engine *matcher.Engine
	ctx    context.Context

	mu     sync.Mutex
	jobIDs map[string]cron.EntryID
}

// New returns a scheduler whose jobs run with ctx. Overlapping runs of the
// same job are skipped.
func New(ctx context.Context, engine *matcher.Engine) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		engine: engine,
		ctx:    ctx,
		jobIDs: make(map[string]cron.EntryID),
	}
}

// Register adds the sweep and refresh jobs. An empty schedule disables a job.
func (s *Scheduler) Register(sweepSchedule, refreshSchedule string) error {
	if sweepSchedule != "" {
		if err := s.add(JobSweep, sweepSchedule, s.runSweep); err != nil {
			return err
		}
	}
	if refreshSchedule != "" {
		if err := s.add(JobCatalogRefresh, refreshSchedule, s.runRefresh); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) add(name, schedule string, job func()) error {
	id, err := s.cron.AddFunc(schedule, job)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q for %s: %w", schedule, name, err)
	}

	s.mu.Lock()
	s.jobIDs[name] = id
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"job":      name,
		"schedule": schedule,
	}).Info("Scheduled job")
	return nil
}

// Jobs returns the registered job names with their cron entry ids.
func (s *Scheduler) Jobs() map[string]cron.EntryID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]cron.EntryID, len(s.jobIDs))
	for k, v := range s.jobIDs {
		out[k] = v
	}
	return out
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	logrus.Info("Scheduler started")
}

// Stop stops scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logrus.Info("Scheduler stopped")
}

func (s *Scheduler) runSweep() {
	logrus.Info("Running scheduled auto-match sweep")
	if _, err := s.engine.SweepPending(s.ctx); err != nil {
		logrus.WithError(err).Error("Scheduled auto-match sweep failed")
	}
}

func (s *Scheduler) runRefresh() {
	if err := s.engine.RefreshIndex(s.ctx); err != nil {
		logrus.WithError(err).Error("Scheduled catalog refresh failed")
		return
	}
	logrus.WithField("products", s.engine.Index().Len()).Info("Catalog index refreshed")
}
