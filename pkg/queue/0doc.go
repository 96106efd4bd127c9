// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package queue hands message deliveries over to an external, durable task queue.
//
// A Queue registers one job per call. The job itself, waking up at its fire time, POSTing the payload to the agent
// endpoint and retrying on failure, is entirely the business of the queue service. The CloudTasks implementation
// uses Google Cloud Tasks HTTP targets.
package queue
