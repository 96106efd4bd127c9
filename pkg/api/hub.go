// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"

	"github.com/dtn7/agentdispatch/pkg/message"
)

const (
	hubWriteTimeout = 5 * time.Second

	// hubClientBuffer is the amount of pending events per client. A client lagging further behind is dropped.
	hubClientBuffer = 64
)

// hubClient is a connected WebSocket, fed by its own writer goroutine.
type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub streams Job transitions to WebSocket clients. It implements dispatch.Observer.
type Hub struct {
	sync.Mutex

	clients  map[*hubClient]struct{}
	upgrader websocket.Upgrader
}

// NewHub creates a Hub without any clients. Its ServeHTTP function must be bound to a HTTP endpoint.
func NewHub() *Hub {
	return &Hub{
		clients:  make(map[*hubClient]struct{}),
		upgrader: websocket.Upgrader{},
	}
}

// ServeHTTP upgrades the request to a WebSocket and blocks until the client disconnects.
func (hub *Hub) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, connErr := hub.upgrader.Upgrade(rw, r, nil)
	if connErr != nil {
		log.WithError(connErr).Warn("Upgrading HTTP request to WebSocket errored")
		return
	}

	logger := log.WithField("event client", conn.RemoteAddr().String())
	logger.Debug("Event client connected")

	client := &hubClient{
		conn: conn,
		send: make(chan []byte, hubClientBuffer),
	}

	hub.Lock()
	hub.clients[client] = struct{}{}
	hub.Unlock()

	go client.writer(logger)
	defer hub.remove(client)

	// Clients only listen. Reading is required to notice a closed connection.
	for {
		if _, _, err := conn.NextReader(); err != nil {
			logger.WithError(err).Debug("Event client disconnected")
			return
		}
	}
}

// writer sends queued events until the send channel is closed or a write fails.
func (client *hubClient) writer(logger *log.Entry) {
	defer func() { _ = client.conn.Close() }()

	for data := range client.send {
		_ = client.conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
		if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.WithError(err).Info("Writing to event client errored")
			return
		}
	}

	_ = client.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
}

// drop a client; the caller must hold the lock.
func (hub *Hub) drop(client *hubClient) {
	if _, ok := hub.clients[client]; ok {
		delete(hub.clients, client)
		close(client.send)
	}
}

func (hub *Hub) remove(client *hubClient) {
	hub.Lock()
	defer hub.Unlock()

	hub.drop(client)
}

// Clients is the amount of connected clients.
func (hub *Hub) Clients() int {
	hub.Lock()
	defer hub.Unlock()

	return len(hub.clients)
}

// Observe queues the Job as a JSON text message for each client without waiting for any write. Clients whose
// buffer is full are dropped.
func (hub *Hub) Observe(job message.Job) {
	data, err := json.Marshal(job)
	if err != nil {
		log.WithField("job", job.ID).WithError(err).Warn("Failed to marshal Job event")
		return
	}

	hub.Lock()
	defer hub.Unlock()

	for client := range hub.clients {
		select {
		case client.send <- data:
		default:
			log.WithField("event client", client.conn.RemoteAddr().String()).Info("Dropping lagging event client")
			hub.drop(client)
		}
	}
}

// Close all client connections.
func (hub *Hub) Close() {
	hub.Lock()
	defer hub.Unlock()

	for client := range hub.clients {
		hub.drop(client)
	}
}
