// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package schedule

import "time"

// Task is a function waiting for its fire time. A Task cannot be cancelled; it fires exactly once and never
// before its FireTime.
type Task struct {
	id       string
	fireTime time.Time

	done chan struct{}
	err  error
}

// ID of this Task, as given on scheduling.
func (t *Task) ID() string {
	return t.id
}

// FireTime is the earliest time this Task will fire.
func (t *Task) FireTime() time.Time {
	return t.fireTime
}

// Done is closed after the Task's function returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the function's error. It must only be called after Done was closed.
func (t *Task) Err() error {
	return t.err
}
