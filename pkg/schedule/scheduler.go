// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package schedule

import (
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Scheduler starts one goroutine per scheduled Task.
type Scheduler struct {
	wg          sync.WaitGroup
	outstanding int64

	now func() time.Time
}

// NewScheduler creates an empty Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{now: time.Now}
}

// Schedule the task function to be executed at fireTime. A fireTime in the past fires at once. The function runs
// within the Task's own goroutine and must be thread-safe.
func (s *Scheduler) Schedule(id string, fireTime time.Time, task func() error) *Task {
	t := &Task{
		id:       id,
		fireTime: fireTime,
		done:     make(chan struct{}),
	}

	atomic.AddInt64(&s.outstanding, 1)
	s.wg.Add(1)

	go s.run(t, task)

	log.WithFields(log.Fields{
		"task":      id,
		"fire_time": fireTime,
		"delay":     fireTime.Sub(s.now()),
	}).Debug("Scheduler registered task")

	return t
}

func (s *Scheduler) run(t *Task, task func() error) {
	defer s.wg.Done()
	defer close(t.done)
	defer atomic.AddInt64(&s.outstanding, -1)

	// A timer might return a bit early in wall clock time, e.g., after the system clock was adjusted.
	for delay := t.fireTime.Sub(s.now()); delay > 0; delay = t.fireTime.Sub(s.now()) {
		timer := time.NewTimer(delay)
		<-timer.C
	}

	t.err = task()

	log.WithFields(log.Fields{
		"task":      t.id,
		"fire_time": t.fireTime,
		"error":     t.err,
	}).Debug("Scheduler executed task")
}

// Outstanding is the number of Tasks whose function has not yet returned.
func (s *Scheduler) Outstanding() int {
	return int(atomic.LoadInt64(&s.outstanding))
}

// Wait blocks until all scheduled Tasks fired and returned. It cancels nothing.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
