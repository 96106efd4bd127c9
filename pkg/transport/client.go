// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/agentdispatch/pkg/message"
)

const (
	// DefaultTimeout bounds a single POST.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is sent for direct deliveries.
	DefaultUserAgent = "everlight-agents/messaging-local"

	messagePath = "message"
)

// MessageURL returns the URL of the message resource below an agent's endpoint base URL.
func MessageURL(endpointURL string) (string, error) {
	u, err := url.Parse(endpointURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("endpoint URL %q misses scheme or host", endpointURL)
	}

	u.Path = path.Join("/", u.Path, messagePath)
	return u.String(), nil
}

// Options for a Client.
type Options struct {
	// Timeout of each POST, DefaultTimeout if zero.
	Timeout time.Duration

	// UserAgent header, DefaultUserAgent if empty.
	UserAgent string

	// Token is sent as a bearer token, if not empty.
	Token string
}

// Client delivers Payloads to agent endpoints.
type Client struct {
	httpClient *http.Client
	userAgent  string
	token      string
}

// NewClient creates a Client for the given Options.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		userAgent:  opts.UserAgent,
		token:      opts.Token,
	}
}

// Post the payload to <endpointURL>/message. Every failure results in a *NetworkError.
func (c *Client) Post(ctx context.Context, endpointURL string, payload message.Payload) error {
	target, err := MessageURL(endpointURL)
	if err != nil {
		return &NetworkError{URL: endpointURL, Err: err}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &NetworkError{URL: target, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return &NetworkError{URL: target, Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	// Drain the body to allow reusing the connection.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	logger := log.WithFields(log.Fields{
		"url":     target,
		"channel": payload.Channel,
		"status":  resp.StatusCode,
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Debug("Agent endpoint rejected message")
		return &NetworkError{URL: target, StatusCode: resp.StatusCode}
	}

	logger.Debug("Message delivered to agent endpoint")
	return nil
}
