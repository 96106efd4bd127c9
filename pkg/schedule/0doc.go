// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package schedule runs delayed, in-process tasks.
//
// Each Task owns one goroutine for its entire waiting time. There is no pooling and no way to withdraw a Task once
// it was scheduled. A Scheduler with many far future Tasks holds as many sleeping goroutines.
// Outstanding reports this number. Tasks live in memory only and vanish together with the process.
package schedule
