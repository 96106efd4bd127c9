// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import "fmt"

// ConfigurationError reports a Dispatcher which is not set up for the requested delivery.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("dispatcher configuration: %s %s", e.Setting, e.Reason)
}
