// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/dtn7/agentdispatch/pkg/message"
)

// JobHandle identifies an enqueued job within the queue service.
type JobHandle struct {
	Name string
}

// Queue registers delivery jobs with an external queue service.
type Queue interface {
	// Enqueue a job which POSTs the payload to targetURL. A zero fireTime requests an immediate execution.
	// Each failure to register the job must be reported as an *EnqueueError; there is no retry.
	Enqueue(ctx context.Context, payload message.Payload, targetURL string, fireTime time.Time) (JobHandle, error)
}

// EnqueueError reports an unreachable queue service or a rejected job.
type EnqueueError struct {
	Queue string
	Err   error
}

func (e *EnqueueError) Error() string {
	return fmt.Sprintf("enqueue to %s: %v", e.Queue, e.Err)
}

func (e *EnqueueError) Unwrap() error {
	return e.Err
}
