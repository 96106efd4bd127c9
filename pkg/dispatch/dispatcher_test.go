// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/dtn7/agentdispatch/pkg/message"
	"github.com/dtn7/agentdispatch/pkg/queue"
	"github.com/dtn7/agentdispatch/pkg/transport"
)

func TestDispatchLocalImmediate(t *testing.T) {
	endpoint := newMockEndpoint(t)
	observer := &mockObserver{}
	q := &mockQueue{}

	d := NewDispatcher(Config{
		Mode:        message.Local,
		EndpointURL: endpoint.srv.URL,
		Queue:       q,
		Observer:    observer,
	})

	res, err := d.Send(context.Background(), "u1", "notifications", "Hello!", "my-agent", nil)
	if err != nil {
		t.Fatal(err)
	}

	expected := "Message sent directly to notifications (local development mode)."
	if res.Description != expected {
		t.Fatalf("expected description %q, got %q", expected, res.Description)
	}
	if !res.Delivered || res.Queued {
		t.Fatalf("unexpected result flags %v", res)
	}

	payloads, _ := endpoint.received()
	if len(payloads) != 1 {
		t.Fatalf("expected one POST, got %d", len(payloads))
	}
	want := message.Payload{UserID: "u1", Channel: "notifications", Message: "Hello!", Sender: "my-agent"}
	if payloads[0] != want {
		t.Fatalf("expected payload %v, got %v", want, payloads[0])
	}

	if calls := q.enqueued(); len(calls) != 0 {
		t.Fatalf("local mode enqueued %d jobs", len(calls))
	}

	if states := observer.states(res.Job.ID); !reflect.DeepEqual(states, []message.State{message.Delivered}) {
		t.Fatalf("unexpected job states %v", states)
	}
}

func TestDispatchLocalImmediateNetworkError(t *testing.T) {
	endpoint := newMockEndpoint(t)
	endpoint.setStatus(http.StatusInternalServerError)
	observer := &mockObserver{}

	d := NewDispatcher(Config{
		Mode:        message.Local,
		EndpointURL: endpoint.srv.URL,
		Observer:    observer,
	})

	res, err := d.Dispatch(context.Background(), message.NewMessage("u1", "notifications", "Hello!", "my-agent"))

	var netErr *transport.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %T: %v", err, err)
	}
	if res.Delivered {
		t.Fatal("failed delivery reported as delivered")
	}

	if payloads, _ := endpoint.received(); len(payloads) != 1 {
		t.Fatalf("expected exactly one attempt, got %d", len(payloads))
	}
	if states := observer.states(res.Job.ID); !reflect.DeepEqual(states, []message.State{message.Failed}) {
		t.Fatalf("unexpected job states %v", states)
	}
}

func TestDispatchLocalScheduled(t *testing.T) {
	endpoint := newMockEndpoint(t)
	observer := &mockObserver{}

	delay := 500 * time.Millisecond
	start := time.Now()
	fireTime := start.Add(delay)

	d := NewDispatcher(Config{
		Mode:        message.Local,
		EndpointURL: endpoint.srv.URL,
		Observer:    observer,
		Now:         func() time.Time { return start },
	})

	res, err := d.Send(context.Background(), "u1", "notifications", "Hello!", "my-agent", &fireTime)
	if err != nil {
		t.Fatal(err)
	}

	expected := "Message scheduled for notifications at " + fireTime.Format(FeedbackTimeLayout) +
		" (local mode: 0.5s delay)."
	if res.Description != expected {
		t.Fatalf("expected description %q, got %q", expected, res.Description)
	}

	if took := time.Since(start); took >= delay {
		t.Fatalf("dispatch blocked for %v", took)
	}
	if res.Delivered || !res.Queued {
		t.Fatalf("unexpected result flags %v", res)
	}
	if payloads, _ := endpoint.received(); len(payloads) != 0 {
		t.Fatalf("scheduled message was delivered during dispatch: %v", payloads)
	}
	if n := d.Scheduler().Outstanding(); n != 1 {
		t.Fatalf("expected one outstanding task, got %d", n)
	}

	d.Scheduler().Wait()

	payloads, times := endpoint.received()
	if len(payloads) != 1 {
		t.Fatalf("expected one POST, got %d", len(payloads))
	}
	if times[0].Before(fireTime) {
		t.Fatalf("message arrived at %v, before its fire time %v", times[0], fireTime)
	}
	if lag := times[0].Sub(fireTime); lag > 2*time.Second {
		t.Fatalf("message arrived %v late", lag)
	}

	// Give a potential duplicate delivery some time.
	time.Sleep(200 * time.Millisecond)
	if payloads, _ := endpoint.received(); len(payloads) != 1 {
		t.Fatalf("scheduled message arrived %d times", len(payloads))
	}

	expectedStates := []message.State{message.Pending, message.Fired, message.Delivered}
	if states := observer.states(res.Job.ID); !reflect.DeepEqual(states, expectedStates) {
		t.Fatalf("expected job states %v, got %v", expectedStates, states)
	}
}

func TestDispatchLocalScheduledFailureIsNotSurfaced(t *testing.T) {
	endpoint := newMockEndpoint(t)
	endpoint.setStatus(http.StatusBadGateway)
	observer := &mockObserver{}

	d := NewDispatcher(Config{
		Mode:        message.Local,
		EndpointURL: endpoint.srv.URL,
		Observer:    observer,
	})

	fireTime := time.Now().Add(100 * time.Millisecond)
	res, err := d.Send(context.Background(), "u1", "notifications", "Hello!", "my-agent", &fireTime)
	if err != nil {
		t.Fatalf("scheduling failed: %v", err)
	}

	d.Scheduler().Wait()

	if payloads, _ := endpoint.received(); len(payloads) != 1 {
		t.Fatalf("failed scheduled message was retried: %d attempts", len(payloads))
	}

	expectedStates := []message.State{message.Pending, message.Fired, message.Failed}
	if states := observer.states(res.Job.ID); !reflect.DeepEqual(states, expectedStates) {
		t.Fatalf("expected job states %v, got %v", expectedStates, states)
	}
}

func TestDispatchDurableImmediate(t *testing.T) {
	endpoint := newMockEndpoint(t)
	q := &mockQueue{}

	d := NewDispatcher(Config{
		Mode:        message.Durable,
		EndpointURL: endpoint.srv.URL,
		Queue:       q,
	})

	msg := message.NewMessage("u1", "notifications", "Hello!", "my-agent")
	res, err := d.Dispatch(context.Background(), msg)
	if err != nil {
		t.Fatal(err)
	}

	expected := "Message queued for delivery to notifications via Cloud Tasks."
	if res.Description != expected {
		t.Fatalf("expected description %q, got %q", expected, res.Description)
	}
	if res.Delivered || !res.Queued {
		t.Fatalf("unexpected result flags %v", res)
	}
	if res.Job.State != message.Queued || res.Job.Handle != "mock/tasks/1" {
		t.Fatalf("unexpected job %v", res.Job)
	}

	calls := q.enqueued()
	if len(calls) != 1 {
		t.Fatalf("expected one enqueue, got %d", len(calls))
	}
	if !calls[0].fireTime.IsZero() {
		t.Fatalf("immediate message enqueued with fire time %v", calls[0].fireTime)
	}
	if calls[0].targetURL != endpoint.srv.URL+"/message" {
		t.Fatalf("unexpected target URL %q", calls[0].targetURL)
	}
	if calls[0].payload != msg.Payload() {
		t.Fatalf("expected payload %v, got %v", msg.Payload(), calls[0].payload)
	}

	if payloads, _ := endpoint.received(); len(payloads) != 0 {
		t.Fatalf("durable mode POSTed %d messages", len(payloads))
	}
}

func TestDispatchDurableScheduled(t *testing.T) {
	endpoint := newMockEndpoint(t)
	q := &mockQueue{}

	now := time.Date(2025, 1, 1, 11, 55, 0, 0, time.UTC)
	d := NewDispatcher(Config{
		Mode:        message.Durable,
		EndpointURL: endpoint.srv.URL,
		Queue:       q,
		Now:         func() time.Time { return now },
	})

	for _, ahead := range []time.Duration{5 * time.Minute, 90 * 24 * time.Hour} {
		fireTime := now.Add(ahead)
		msg := message.NewMessage("u1", "notifications", "Hello!", "my-agent").At(fireTime)

		res, err := d.Dispatch(context.Background(), msg)
		if err != nil {
			t.Fatal(err)
		}

		expected := "Message scheduled for notifications at " + fireTime.Format(FeedbackTimeLayout) + " via Cloud Tasks."
		if res.Description != expected {
			t.Fatalf("expected description %q, got %q", expected, res.Description)
		}

		calls := q.enqueued()
		last := calls[len(calls)-1]
		if !last.fireTime.Equal(fireTime) {
			t.Fatalf("expected fire time %v, got %v", fireTime, last.fireTime)
		}
		if last.payload != msg.Payload() {
			t.Fatalf("expected payload %v, got %v", msg.Payload(), last.payload)
		}
	}

	if calls := q.enqueued(); len(calls) != 2 {
		t.Fatalf("expected two enqueues, got %d", len(calls))
	}
	if payloads, _ := endpoint.received(); len(payloads) != 0 {
		t.Fatalf("durable mode POSTed %d messages", len(payloads))
	}
	if n := d.Scheduler().Outstanding(); n != 0 {
		t.Fatalf("durable mode scheduled %d local tasks", n)
	}
}

func TestDispatchDurableEnqueueError(t *testing.T) {
	endpoint := newMockEndpoint(t)
	q := &mockQueue{err: errors.New("unreachable")}

	d := NewDispatcher(Config{
		Mode:        message.Durable,
		EndpointURL: endpoint.srv.URL,
		Queue:       q,
	})

	fireTime := time.Now().Add(time.Hour)
	_, err := d.Send(context.Background(), "u1", "notifications", "Hello!", "my-agent", &fireTime)

	var enqErr *queue.EnqueueError
	if !errors.As(err, &enqErr) {
		t.Fatalf("expected EnqueueError, got %T: %v", err, err)
	}
	if calls := q.enqueued(); len(calls) != 1 {
		t.Fatalf("expected exactly one enqueue, got %d", len(calls))
	}
}

func TestDispatchValidationWithoutNetwork(t *testing.T) {
	for _, mode := range []message.Mode{message.Local, message.Durable} {
		endpoint := newMockEndpoint(t)
		q := &mockQueue{}

		now := time.Now()
		d := NewDispatcher(Config{
			Mode:        mode,
			EndpointURL: endpoint.srv.URL,
			Queue:       q,
			Now:         func() time.Time { return now },
		})

		msgs := []message.Message{
			message.NewMessage("u1", "", "Hello!", "my-agent"),
			message.NewMessage("u1", "notifications", "Hello!", "my-agent").At(now),
			message.NewMessage("u1", "notifications", "Hello!", "my-agent").At(now.Add(-time.Minute)),
		}

		for _, msg := range msgs {
			_, err := d.Dispatch(context.Background(), msg)

			var verr *message.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("%v: expected ValidationError, got %T: %v", mode, err, err)
			}
		}

		d.Scheduler().Wait()

		if payloads, _ := endpoint.received(); len(payloads) != 0 {
			t.Fatalf("%v: invalid messages were POSTed: %v", mode, payloads)
		}
		if calls := q.enqueued(); len(calls) != 0 {
			t.Fatalf("%v: invalid messages were enqueued: %v", mode, calls)
		}
	}
}

func TestDispatchConfigurationError(t *testing.T) {
	tests := []struct {
		name string
		conf Config
	}{
		{"local without endpoint", Config{Mode: message.Local}},
		{"durable without endpoint", Config{Mode: message.Durable, Queue: &mockQueue{}}},
		{"malformed endpoint", Config{Mode: message.Local, EndpointURL: "localhost:8001"}},
		{"durable without queue", Config{Mode: message.Durable, EndpointURL: "http://localhost:8001"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			d := NewDispatcher(test.conf)

			_, err := d.Send(context.Background(), "u1", "notifications", "Hello!", "my-agent", nil)

			var confErr *ConfigurationError
			if !errors.As(err, &confErr) {
				t.Fatalf("expected ConfigurationError, got %T: %v", err, err)
			}
		})
	}
}

func TestDispatchPayloadIndependentOfMode(t *testing.T) {
	endpoint := newMockEndpoint(t)
	q := &mockQueue{}

	local := NewDispatcher(Config{Mode: message.Local, EndpointURL: endpoint.srv.URL})
	durable := NewDispatcher(Config{Mode: message.Durable, EndpointURL: endpoint.srv.URL, Queue: q})

	msg := message.NewMessage("u1", "notifications", "Hello!", "my-agent")

	if _, err := local.Dispatch(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if _, err := durable.Dispatch(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	payloads, _ := endpoint.received()
	calls := q.enqueued()
	if len(payloads) != 1 || len(calls) != 1 {
		t.Fatalf("expected one POST and one enqueue, got %d and %d", len(payloads), len(calls))
	}
	if payloads[0] != calls[0].payload {
		t.Fatalf("payload differs between modes: %v %v", payloads[0], calls[0].payload)
	}
}

func TestNewDispatcherDefaultsToDurable(t *testing.T) {
	if m := NewDispatcher(Config{}).Mode(); m != message.Durable {
		t.Fatalf("expected durable mode, got %v", m)
	}
	if m := NewDispatcher(Config{Mode: "bogus"}).Mode(); m != message.Durable {
		t.Fatalf("expected durable mode, got %v", m)
	}
}
