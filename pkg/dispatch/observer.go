// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import "github.com/dtn7/agentdispatch/pkg/message"

// Observer is informed about each state change of a Job. Observe might be called concurrently and should return
// quickly, since it might be called within a dispatch.
type Observer interface {
	Observe(job message.Job)
}

// Observers fans out to multiple Observers, in order.
type Observers []Observer

func (obs Observers) Observe(job message.Job) {
	for _, o := range obs {
		o.Observe(job)
	}
}

type nopObserver struct{}

func (nopObserver) Observe(message.Job) {}
