// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package message describes the data exchanged between agents and the dispatching subsystem.
//
// A Message is addressed to a recipient on a named channel and may carry a fire time for a delayed delivery. Its
// JSON wire representation, the Payload, is the same for every delivery backend. Each scheduled or queued Message
// is tracked as a Job, whose State follows the lifecycle of the delivery as far as the dispatching side can see it.
package message
