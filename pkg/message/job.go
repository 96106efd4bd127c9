// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package message

import "time"

// State of a Job.
//
// A locally scheduled Job moves from Pending to Fired and ends as Delivered or Failed. A Job handed to the durable
// queue ends as Queued, since its further lifecycle is owned by the queue. Lost marks a local Job whose process
// terminated before the fire time. There is no cancellation, so nothing reaches Cancelled.
type State string

const (
	Pending   State = "pending"
	Fired     State = "fired"
	Delivered State = "delivered"
	Failed    State = "failed"
	Queued    State = "queued"
	Lost      State = "lost"
	Cancelled State = "cancelled"
)

// IsFinal is true for states without an outgoing transition on the dispatching side.
func (s State) IsFinal() bool {
	switch s {
	case Pending, Fired:
		return false
	default:
		return true
	}
}

// Job is the unit of work created for each dispatched Message.
type Job struct {
	ID      string  `json:"id" badgerhold:"key"`
	Message Message `json:"message"`
	Mode    Mode    `json:"mode" badgerholdIndex:"Mode"`
	State   State   `json:"state" badgerholdIndex:"State"`

	// Handle names the task within the durable queue, if any.
	Handle string `json:"handle,omitempty"`
	Error  string `json:"error,omitempty"`

	Created time.Time `json:"created"`
	Updated time.Time `json:"updated" badgerholdIndex:"Updated"`
}

// NewJob creates a Pending Job.
func NewJob(id string, msg Message, mode Mode, now time.Time) Job {
	return Job{
		ID:      id,
		Message: msg,
		Mode:    mode,
		State:   Pending,
		Created: now,
		Updated: now,
	}
}

// Transition returns a copy of this Job in the new state. A non-nil error is recorded.
func (j Job) Transition(state State, err error, now time.Time) Job {
	j.State = state
	j.Updated = now
	if err != nil {
		j.Error = err.Error()
	}
	return j
}
