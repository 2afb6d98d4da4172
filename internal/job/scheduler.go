package job

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is a unit of background work. An empty Schedule registers the job
// for on-demand runs only.
type Job interface {
	Name() string
	Schedule() string
	Execute(ctx context.Context) error
}

// Scheduler runs registered jobs on their cron schedules.
type Scheduler struct {
	cron    *cron.Cron
	jobs    []Job
	log     logrus.FieldLogger
	timeout time.Duration
}

func NewScheduler(log logrus.FieldLogger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		jobs:    make([]Job, 0),
		log:     log,
		timeout: 5 * time.Minute,
	}
}

func (s *Scheduler) Register(job Job) error {
	s.jobs = append(s.jobs, job)

	schedule := job.Schedule()
	if schedule == "" {
		s.log.WithField("job", job.Name()).Info("registered on-demand job")
		return nil
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.run(job) }); err != nil {
		return fmt.Errorf("schedule job %s with %q: %w", job.Name(), schedule, err)
	}
	s.log.WithFields(logrus.Fields{"job": job.Name(), "schedule": schedule}).Info("scheduled job")
	return nil
}

func (s *Scheduler) run(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	log := s.log.WithField("job", job.Name())
	start := time.Now()
	if err := job.Execute(ctx); err != nil {
		log.WithError(err).Error("job failed")
		return
	}
	log.WithField("duration", time.Since(start).String()).Info("job completed")
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.WithField("jobs", len(s.jobs)).Info("job scheduler started")
}

// Stop stops scheduling and returns a context done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	ctx := s.cron.Stop()
	s.log.Info("job scheduler stopped")
	return ctx
}

// RunByName runs one registered job immediately.
func (s *Scheduler) RunByName(ctx context.Context, name string) error {
	for _, job := range s.jobs {
		if job.Name() == name {
			return job.Execute(ctx)
		}
	}
	return fmt.Errorf("job %q not registered", name)
}

func (s *Scheduler) Registered() []string {
	names := make([]string, len(s.jobs))
	for i, job := range s.jobs {
		names[i] = job.Name()
	}
	return names
}
