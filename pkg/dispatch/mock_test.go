// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/dtn7/agentdispatch/pkg/message"
	"github.com/dtn7/agentdispatch/pkg/queue"
)

// mockEndpoint is an agent endpoint, recording each POSTed Payload.
type mockEndpoint struct {
	sync.Mutex

	srv      *httptest.Server
	status   int
	payloads []message.Payload
	times    []time.Time
}

func newMockEndpoint(t *testing.T) *mockEndpoint {
	m := &mockEndpoint{status: http.StatusOK}

	router := mux.NewRouter()
	router.HandleFunc("/message", m.handle).Methods(http.MethodPost)

	m.srv = httptest.NewServer(router)
	t.Cleanup(m.srv.Close)

	return m
}

func (m *mockEndpoint) handle(w http.ResponseWriter, r *http.Request) {
	var p message.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	m.Lock()
	defer m.Unlock()

	m.payloads = append(m.payloads, p)
	m.times = append(m.times, time.Now())
	w.WriteHeader(m.status)
}

func (m *mockEndpoint) setStatus(status int) {
	m.Lock()
	defer m.Unlock()

	m.status = status
}

// received returns all Payloads and their arrival times.
func (m *mockEndpoint) received() ([]message.Payload, []time.Time) {
	m.Lock()
	defer m.Unlock()

	return append([]message.Payload(nil), m.payloads...), append([]time.Time(nil), m.times...)
}

// mockEnqueue is a single recorded Enqueue call.
type mockEnqueue struct {
	payload   message.Payload
	targetURL string
	fireTime  time.Time
}

// mockQueue is a queue.Queue recording each Enqueue call.
type mockQueue struct {
	sync.Mutex

	calls []mockEnqueue
	err   error
}

func (q *mockQueue) Enqueue(_ context.Context, payload message.Payload, targetURL string, fireTime time.Time) (
	queue.JobHandle, error) {
	q.Lock()
	defer q.Unlock()

	q.calls = append(q.calls, mockEnqueue{payload, targetURL, fireTime})
	if q.err != nil {
		return queue.JobHandle{}, &queue.EnqueueError{Queue: "mock", Err: q.err}
	}
	return queue.JobHandle{Name: "mock/tasks/1"}, nil
}

func (q *mockQueue) enqueued() []mockEnqueue {
	q.Lock()
	defer q.Unlock()

	return append([]mockEnqueue(nil), q.calls...)
}

// mockObserver records each observed Job.
type mockObserver struct {
	sync.Mutex

	jobs []message.Job
}

func (o *mockObserver) Observe(job message.Job) {
	o.Lock()
	defer o.Unlock()

	o.jobs = append(o.jobs, job)
}

// states returns the observed states for a Job ID.
func (o *mockObserver) states(id string) (states []message.State) {
	o.Lock()
	defer o.Unlock()

	for _, job := range o.jobs {
		if job.ID == id {
			states = append(states, job.State)
		}
	}
	return
}
