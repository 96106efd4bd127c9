// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package dispatch delivers Messages to an agent endpoint, now or at a later fire time.
//
// A Dispatcher works in one of two Modes. In the Local mode, immediate Messages are POSTed directly and scheduled
// Messages wait within an in-process Task. In the Durable mode, every Message becomes a job of an external queue.
//
// The returned Result only describes what the Dispatcher did synchronously. For a scheduled or queued Message, this
// is the scheduling, not the delivery. A locally scheduled Message failing at its fire time is logged and reported
// to the Observer, but never to the original caller. Neither backend allows to cancel a job.
package dispatch
