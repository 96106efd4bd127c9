// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import (
	"os"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/agentdispatch/pkg/message"
)

// ModeEnv is the environment variable holding the local development flag.
const ModeEnv = "LOCAL_DEVELOPMENT"

// ParseMode maps the local development flag to a Mode. Everything except an affirmative flag results in Durable.
func ParseMode(flag string) message.Mode {
	switch strings.ToLower(strings.TrimSpace(flag)) {
	case "true", "1", "yes", "on":
		return message.Local
	default:
		return message.Durable
	}
}

var (
	resolvedMode message.Mode
	resolveOnce  sync.Once
)

// ResolveMode reads the ModeEnv environment variable on its first call and returns the same Mode afterwards.
func ResolveMode() message.Mode {
	resolveOnce.Do(func() {
		flag := os.Getenv(ModeEnv)
		resolvedMode = ParseMode(flag)

		log.WithFields(log.Fields{
			"flag": flag,
			"mode": resolvedMode,
		}).Debug("Resolved dispatch mode")
	})
	return resolvedMode
}
