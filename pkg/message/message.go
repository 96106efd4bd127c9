// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package message

import (
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Message to be delivered to an agent endpoint. A Message is a value and should not be altered after creation.
type Message struct {
	RecipientID string `json:"user_id"`
	Channel     string `json:"channel"`
	Body        string `json:"message"`
	Sender      string `json:"sender"`

	// FireTime is nil for an immediate delivery.
	FireTime *time.Time `json:"run_at,omitempty"`
}

// NewMessage creates an immediate Message.
func NewMessage(recipientID, channel, body, sender string) Message {
	return Message{
		RecipientID: recipientID,
		Channel:     channel,
		Body:        body,
		Sender:      sender,
	}
}

// At returns a copy of this Message, scheduled for the given fire time.
func (m Message) At(fireTime time.Time) Message {
	m.FireTime = &fireTime
	return m
}

// IsScheduled is true for a Message with a fire time.
func (m Message) IsScheduled() bool {
	return m.FireTime != nil
}

// Payload is the JSON body POSTed to an agent's endpoint.
func (m Message) Payload() Payload {
	return Payload{
		UserID:  m.RecipientID,
		Channel: m.Channel,
		Message: m.Body,
		Sender:  m.Sender,
	}
}

// CheckValid returns an error if this Message cannot be dispatched at the given time. Each problem is reported as
// a *ValidationError, possibly wrapped within a multierror.
func (m Message) CheckValid(now time.Time) (errs error) {
	if strings.TrimSpace(m.Channel) == "" {
		errs = multierror.Append(errs, newValidationError("channel", "is empty"))
	}

	if m.FireTime != nil && !m.FireTime.After(now) {
		errs = multierror.Append(errs,
			newValidationError("fire time", "is not in the future: "+m.FireTime.Format(time.RFC3339)))
	}

	return
}

// Payload is the wire representation of a Message, identical for all delivery backends.
type Payload struct {
	UserID  string `json:"user_id"`
	Channel string `json:"channel"`
	Message string `json:"message"`
	Sender  string `json:"sender"`
}
