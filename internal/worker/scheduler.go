// Package worker runs the periodic pipelines: log ingestion, bounce
// reconciliation, domain verification, warmup, blacklist checks and
// retention cleanup.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailcore/internal/pkg/distlock"
)

var (
	// ErrUnknownJob is returned by RunNow for an unregistered job name.
	ErrUnknownJob = errors.New("unknown job")
	// ErrJobBusy is returned when the job is already running here or on
	// another replica.
	ErrJobBusy = errors.New("job already running")
)

// Job is one scheduled pipeline.
type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run. Defaults to Interval.
	Timeout time.Duration
	// Enabled is consulted before each run. Nil means always enabled.
	Enabled func(ctx context.Context) bool
	// RunOnStart triggers a run as soon as the scheduler starts.
	RunOnStart bool
	Run        func(ctx context.Context) error
}

type jobState struct {
	Job
	running atomic.Bool
	lock    distlock.DistLock
}

// Scheduler runs each registered job on its own ticker. A job never
// overlaps itself: an in-process guard covers this replica and a
// distributed lock covers the others.
type Scheduler struct {
	redis *redis.Client
	db    *sql.DB

	mu   sync.Mutex
	jobs map[string]*jobState
	wg   sync.WaitGroup
}

// NewScheduler creates a scheduler. redisClient and db back the
// distributed lock; either may be nil.
func NewScheduler(redisClient *redis.Client, db *sql.DB) *Scheduler {
	return &Scheduler{redis: redisClient, db: db, jobs: make(map[string]*jobState)}
}

// Add registers a job. A job with a non-positive interval is ignored.
func (s *Scheduler) Add(j Job) {
	if j.Interval <= 0 || j.Run == nil {
		log.Printf("[Worker] Job %s not scheduled (interval=%s)", j.Name, j.Interval)
		return
	}
	if j.Timeout <= 0 {
		j.Timeout = j.Interval
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.Name] = &jobState{
		Job:  j,
		lock: distlock.NewLock(s.redis, s.db, "job:"+j.Name, j.Timeout),
	}
}

// Jobs returns the registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// Start launches one loop per job. The loops stop when ctx is cancelled;
// Wait blocks until they have returned.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, js := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, js)
	}
}

// Wait blocks until every job loop has returned.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) loop(ctx context.Context, js *jobState) {
	defer s.wg.Done()
	log.Printf("[Worker] %s scheduled every %s", js.Name, js.Interval)

	if js.RunOnStart {
		s.tick(ctx, js)
	}

	ticker := time.NewTicker(js.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[Worker] %s stopping", js.Name)
			return
		case <-ticker.C:
			s.tick(ctx, js)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, js *jobState) {
	if js.Enabled != nil && !js.Enabled(ctx) {
		metricJobRuns.WithLabelValues(js.Name, "disabled").Inc()
		return
	}
	err := s.run(ctx, js)
	switch {
	case errors.Is(err, ErrJobBusy):
		log.Printf("[Worker] %s skipped: already running", js.Name)
	case err != nil:
		log.Printf("[Worker] %s failed: %v", js.Name, err)
	}
}

// RunNow runs a job immediately, honouring the single-flight guards.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	js, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, js)
}

func (s *Scheduler) run(ctx context.Context, js *jobState) error {
	if !js.running.CompareAndSwap(false, true) {
		metricJobRuns.WithLabelValues(js.Name, "skipped").Inc()
		return ErrJobBusy
	}
	defer js.running.Store(false)

	runCtx, cancel := context.WithTimeout(ctx, js.Timeout)
	defer cancel()

	acquired, err := js.lock.Acquire(runCtx)
	if err != nil {
		metricJobRuns.WithLabelValues(js.Name, "error").Inc()
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		metricJobRuns.WithLabelValues(js.Name, "skipped").Inc()
		return ErrJobBusy
	}
	defer func() {
		if err := js.lock.Release(context.WithoutCancel(ctx)); err != nil {
			log.Printf("[Worker] %s lock release failed: %v", js.Name, err)
		}
	}()

	start := time.Now()
	err = js.Run(runCtx)
	metricJobDuration.WithLabelValues(js.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		metricJobRuns.WithLabelValues(js.Name, "error").Inc()
		return err
	}
	metricJobRuns.WithLabelValues(js.Name, "ok").Inc()
	return nil
}
