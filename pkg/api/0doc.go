// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api exposes a Dispatcher over HTTP.
//
// The router offers POST /dispatch to dispatch a Message, GET /jobs/{id} to inspect a journaled Job and GET /health.
// Every Job transition is streamed as JSON to the WebSocket clients of the Hub, bound to GET /events.
package api
