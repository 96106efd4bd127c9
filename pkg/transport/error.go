// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import "fmt"

// NetworkError reports a failed delivery attempt: a timeout, a connection problem or a non-success status code.
type NetworkError struct {
	URL string

	// StatusCode is zero if no response was received.
	StatusCode int

	Err error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("POST %s: unexpected status code %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("POST %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
