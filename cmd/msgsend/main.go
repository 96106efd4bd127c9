// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// msgsend posts a single message straight to an agent endpoint, bypassing any scheduling.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/google/uuid"

	"github.com/dtn7/agentdispatch/pkg/message"
	"github.com/dtn7/agentdispatch/pkg/transport"
)

const defaultEndpoint = "http://localhost:8001"

// printUsage of msgsend and exit with an error code afterwards.
func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, "Usage of %s [-channel name] [-sender name] user-id message:\n\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Sends the message to the agent endpoint from $AGENT_ENDPOINT_URL, %s\n", defaultEndpoint)
	_, _ = fmt.Fprintf(os.Stderr, "  by default. $AGENT_SERVICE_TOKEN is sent as a bearer token, if set.\n\n")
	flag.PrintDefaults()

	os.Exit(1)
}

// buildPayload validates the user id and constructs the Payload.
func buildPayload(userID, body, channel, sender string) (message.Payload, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return message.Payload{}, fmt.Errorf("%q is not a valid UUID: %w", userID, err)
	}

	msg := message.NewMessage(userID, channel, body, sender)
	if err := msg.CheckValid(time.Now()); err != nil {
		return message.Payload{}, err
	}
	return msg.Payload(), nil
}

func main() {
	var (
		channel = flag.String("channel", "user-input", "channel to send the message to")
		sender  = flag.String("sender", "test-script", "name of the sender")
	)
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() != 2 {
		printUsage()
	}

	payload, err := buildPayload(flag.Arg(0), flag.Arg(1), *channel, *sender)
	if err != nil {
		log.WithError(err).Fatal("Invalid message")
	}

	endpoint := os.Getenv("AGENT_ENDPOINT_URL")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	client := transport.NewClient(transport.Options{Token: os.Getenv("AGENT_SERVICE_TOKEN")})

	logger := log.WithFields(log.Fields{
		"endpoint": endpoint,
		"user_id":  payload.UserID,
		"channel":  payload.Channel,
		"sender":   payload.Sender,
	})
	logger.Info("Sending message")

	if err := client.Post(context.Background(), endpoint, payload); err != nil {
		logger.WithError(err).Fatal("Sending message failed")
	}

	logger.Info("Message was accepted")
}
