// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"time"

	"github.com/dtn7/agentdispatch/pkg/message"
)

// DispatchRequest describes a JSON to be POSTed to /dispatch.
type DispatchRequest struct {
	UserID  string `json:"user_id"`
	Channel string `json:"channel"`
	Message string `json:"message"`
	Sender  string `json:"sender"`

	// RunAt is an optional RFC 3339 fire time.
	RunAt *time.Time `json:"run_at,omitempty"`
}

// toMessage creates the requested Message.
func (req DispatchRequest) toMessage() message.Message {
	msg := message.NewMessage(req.UserID, req.Channel, req.Message, req.Sender)
	if req.RunAt != nil {
		msg = msg.At(*req.RunAt)
	}
	return msg
}

// DispatchResponse describes a JSON response for /dispatch.
type DispatchResponse struct {
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	Description string `json:"description,omitempty"`
	JobID       string `json:"job_id,omitempty"`
	Delivered   bool   `json:"delivered"`
	Queued      bool   `json:"queued"`
}

// HealthResponse describes a JSON response for /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// JobResponse describes a JSON response for /jobs/{id}.
type JobResponse struct {
	Error string       `json:"error,omitempty"`
	Job   *message.Job `json:"job,omitempty"`
}
