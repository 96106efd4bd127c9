// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package message

// Mode selects the delivery backend of a dispatching process.
type Mode string

const (
	// Local delivers in-process, either directly or after an in-memory timer elapsed. Nothing is persisted.
	Local Mode = "local"

	// Durable hands every Message over to an external task queue, which performs the delivery.
	Durable Mode = "durable"
)

func (m Mode) String() string {
	return string(m)
}
