// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package transport POSTs message payloads to an agent's HTTP endpoint.
//
// Each call is bounded by a timeout and is performed exactly once. Retrying is left to the caller.
package transport
