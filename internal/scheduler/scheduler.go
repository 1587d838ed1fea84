package scheduler

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// Sweeper evicts idle sessions. *store.MemoryStore implements it.
type Sweeper interface {
	Sweep() int
	Len() int
}

// Scheduler periodically evicts idle browser sessions.
type Scheduler struct {
	scheduler *gocron.Scheduler
	sessions  Sweeper
	interval  time.Duration
}

// New creates a new Scheduler.
func New(sessions Sweeper, interval time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		sessions:  sessions,
		interval:  interval,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	interval := s.interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	_, err := s.scheduler.Every(interval).WaitForSchedule().Do(func() {
		s.SweepOnce()
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// SweepOnce runs a single eviction pass and returns the number of evicted sessions.
func (s *Scheduler) SweepOnce() int {
	n := s.sessions.Sweep()
	if n > 0 {
		log.Printf("scheduler: evicted %d idle sessions, %d remain", n, s.sessions.Len())
	}
	return n
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
