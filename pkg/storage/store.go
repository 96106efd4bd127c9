// SPDX-FileCopyrightText: 2019, 2020, 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package storage journals Jobs on disk.
//
// The journal is informational. It records the state of each dispatched Job but is never used to resume a Job:
// a local Job found Pending by a new process is marked as Lost, not fired.
package storage

import (
	"errors"
	"os"
	"path"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/timshannon/badgerhold"

	"github.com/dtn7/agentdispatch/pkg/message"
)

const dirBadger string = "db"

var (
	// ErrNotFound is returned for an unknown Job ID.
	ErrNotFound = badgerhold.ErrNotFound

	// ErrClosed is returned for each operation on a closed Store.
	ErrClosed = errors.New("job store is closed")
)

// Store implements a journal of Jobs, keyed by their ID. It is safe to use a Store after closing it; all operations
// fail with ErrClosed.
type Store struct {
	mutex  sync.RWMutex
	closed bool

	bh *badgerhold.Store

	badgerDir string
}

// NewStore creates a new Store or opens an existing Store from the given path.
func NewStore(dir string) (s *Store, err error) {
	badgerDir := path.Join(dir, dirBadger)

	opts := badgerhold.DefaultOptions
	opts.Dir = badgerDir
	opts.ValueDir = badgerDir
	opts.Logger = log.StandardLogger()
	opts.Options.ValueLogFileSize = 1<<28 - 1

	if dirErr := os.MkdirAll(badgerDir, 0700); dirErr != nil {
		err = dirErr
		return
	}

	if bh, bhErr := badgerhold.Open(opts); bhErr != nil {
		err = bhErr
	} else {
		s = &Store{
			bh:        bh,
			badgerDir: badgerDir,
		}
	}
	return
}

// Close the Store. Closing an already closed Store is a no-op.
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.bh.Close()
}

// access returns ErrClosed or holds the read lock until release is called.
func (s *Store) access() (release func(), err error) {
	s.mutex.RLock()
	if s.closed {
		s.mutex.RUnlock()
		return nil, ErrClosed
	}
	return s.mutex.RUnlock, nil
}

// Push a Job, inserting a new or replacing the known record.
func (s *Store) Push(job message.Job) error {
	log.WithFields(log.Fields{
		"job":   job.ID,
		"state": job.State,
	}).Debug("Store upserts Job")

	release, err := s.access()
	if err != nil {
		return err
	}
	defer release()

	return s.bh.Upsert(job.ID, job)
}

// Observe a Job's change, making the Store a dispatch.Observer. Errors are logged.
func (s *Store) Observe(job message.Job) {
	if err := s.Push(job); errors.Is(err, ErrClosed) {
		log.WithFields(log.Fields{
			"job":   job.ID,
			"state": job.State,
		}).Info("Job store is closed; Job is not journaled")
	} else if err != nil {
		log.WithFields(log.Fields{
			"job":   job.ID,
			"state": job.State,
			"error": err,
		}).Warn("Failed to journal Job")
	}
}

// QueryId fetches the Job for the requested ID.
func (s *Store) QueryId(id string) (job message.Job, err error) {
	release, err := s.access()
	if err != nil {
		return
	}
	defer release()

	err = s.bh.Get(id, &job)
	return
}

// QueryState fetches all Jobs in the given state.
func (s *Store) QueryState(state message.State) (jobs []message.Job, err error) {
	release, err := s.access()
	if err != nil {
		return
	}
	defer release()

	err = s.bh.Find(&jobs, badgerhold.Where("State").Eq(state))
	return
}

// KnowsJob checks if such a Job is known.
func (s *Store) KnowsJob(id string) bool {
	_, err := s.QueryId(id)
	return err == nil
}

// Delete a Job.
func (s *Store) Delete(id string) error {
	release, err := s.access()
	if err != nil {
		return err
	}
	defer release()

	return s.bh.Delete(id, message.Job{})
}

// DeleteExpired removes all Jobs in a final state, last updated before the given time.
func (s *Store) DeleteExpired(before time.Time) {
	var jobs []message.Job
	if err := s.find(&jobs, badgerhold.Where("Updated").Lt(before)); err != nil {
		log.WithError(err).Warn("Failed to get expired Jobs")
		return
	}

	for _, job := range jobs {
		if !job.State.IsFinal() {
			continue
		}

		logger := log.WithField("job", job.ID)
		if err := s.Delete(job.ID); err != nil {
			logger.WithError(err).Warn("Failed to delete expired Job")
		} else {
			logger.Debug("Deleted expired Job")
		}
	}
}

// MarkLost marks all local, unfinished Jobs as Lost. This must be called on start up, before any dispatch, since
// such Jobs belonged to a previous process. The amount of lost Jobs is returned.
func (s *Store) MarkLost(now time.Time) (lost int, err error) {
	var jobs []message.Job
	query := badgerhold.Where("State").In(message.Pending, message.Fired).And("Mode").Eq(message.Local)
	if err = s.find(&jobs, query); err != nil {
		return
	}

	for _, job := range jobs {
		job = job.Transition(message.Lost, nil, now)
		if err = s.Push(job); err != nil {
			return
		}

		log.WithFields(log.Fields{
			"job":       job.ID,
			"channel":   job.Message.Channel,
			"fire_time": job.Message.FireTime,
		}).Warn("Scheduled message was lost by a previous process")
		lost++
	}
	return
}

func (s *Store) find(result interface{}, query *badgerhold.Query) error {
	release, err := s.access()
	if err != nil {
		return err
	}
	defer release()

	return s.bh.Find(result, query)
}
