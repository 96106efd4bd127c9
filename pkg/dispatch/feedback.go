// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import (
	"fmt"
	"time"

	"github.com/dtn7/agentdispatch/pkg/message"
)

// Path is either Immediate or Scheduled.
type Path int

const (
	Immediate Path = iota
	Scheduled
)

func (p Path) String() string {
	if p == Scheduled {
		return "scheduled"
	}
	return "immediate"
}

// FeedbackTimeLayout is used for fire times within a Feedback.
const FeedbackTimeLayout = "2006-01-02 15:04:05"

// Feedback describes a dispatch for humans, both in logs and as the Description of a Result.
type Feedback struct {
	Mode    message.Mode
	Path    Path
	Channel string

	// FireTime and Delay are ignored for Immediate.
	FireTime time.Time
	Delay    time.Duration
}

func (f Feedback) String() string {
	switch {
	case f.Mode == message.Local && f.Path == Immediate:
		return fmt.Sprintf("Message sent directly to %s (local development mode).", f.Channel)

	case f.Mode == message.Local:
		return fmt.Sprintf("Message scheduled for %s at %s (local mode: %.1fs delay).",
			f.Channel, f.FireTime.Format(FeedbackTimeLayout), f.Delay.Seconds())

	case f.Path == Immediate:
		return fmt.Sprintf("Message queued for delivery to %s via Cloud Tasks.", f.Channel)

	default:
		return fmt.Sprintf("Message scheduled for %s at %s via Cloud Tasks.",
			f.Channel, f.FireTime.Format(FeedbackTimeLayout))
	}
}
