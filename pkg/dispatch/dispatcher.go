// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/google/uuid"

	"github.com/dtn7/agentdispatch/pkg/message"
	"github.com/dtn7/agentdispatch/pkg/queue"
	"github.com/dtn7/agentdispatch/pkg/schedule"
	"github.com/dtn7/agentdispatch/pkg/transport"
)

// Poster delivers a Payload to <endpointURL>/message, e.g., a *transport.Client.
type Poster interface {
	Post(ctx context.Context, endpointURL string, payload message.Payload) error
}

// Config of a Dispatcher. Only the Mode and the EndpointURL must be chosen; all other fields have defaults.
type Config struct {
	Mode message.Mode

	// EndpointURL is the agent endpoint's base URL. A missing URL is reported on the first Dispatch.
	EndpointURL string

	// Transport for Local deliveries, a transport.Client with its default Options if nil.
	Transport Poster

	// Queue for Durable deliveries. A missing Queue is reported on the first Durable Dispatch.
	Queue queue.Queue

	// Scheduler for Local fire times, a new Scheduler if nil.
	Scheduler *schedule.Scheduler

	Observer Observer

	// Now is the clock to check fire times against, time.Now if nil.
	Now func() time.Time
}

// Result of a Dispatch. For scheduled or queued Messages, it only reflects the scheduling or the enqueueing.
type Result struct {
	// Delivered is true if the agent endpoint accepted the Message during the call.
	Delivered bool

	// Queued is true if the delivery was deferred, either to a local Task or to the durable queue.
	Queued bool

	Description string
	Job         message.Job
}

// Dispatcher routes Messages to an immediate or a scheduled delivery for its Mode.
type Dispatcher struct {
	mode        message.Mode
	endpointURL string

	transport Poster
	queue     queue.Queue
	scheduler *schedule.Scheduler
	observer  Observer
	now       func() time.Time
}

// NewDispatcher creates a Dispatcher. Its Mode is fixed for the Dispatcher's lifetime.
func NewDispatcher(conf Config) *Dispatcher {
	d := &Dispatcher{
		mode:        conf.Mode,
		endpointURL: conf.EndpointURL,

		transport: conf.Transport,
		queue:     conf.Queue,
		scheduler: conf.Scheduler,
		observer:  conf.Observer,
		now:       conf.Now,
	}

	if d.mode != message.Local {
		d.mode = message.Durable
	}
	if d.transport == nil {
		d.transport = transport.NewClient(transport.Options{})
	}
	if d.scheduler == nil {
		d.scheduler = schedule.NewScheduler()
	}
	if d.observer == nil {
		d.observer = nopObserver{}
	}
	if d.now == nil {
		d.now = time.Now
	}

	return d
}

// Mode of this Dispatcher.
func (d *Dispatcher) Mode() message.Mode {
	return d.mode
}

// Scheduler used for Local fire times.
func (d *Dispatcher) Scheduler() *schedule.Scheduler {
	return d.scheduler
}

// Send builds a Message and dispatches it. A nil fireTime requests an immediate delivery.
func (d *Dispatcher) Send(ctx context.Context, recipientID, channel, body, sender string, fireTime *time.Time) (
	Result, error) {
	msg := message.NewMessage(recipientID, channel, body, sender)
	if fireTime != nil {
		msg = msg.At(*fireTime)
	}
	return d.Dispatch(ctx, msg)
}

// Dispatch a Message.
//
// An invalid Message results in a *message.ValidationError, a missing setting in a *ConfigurationError. Both are
// reported before any network activity. Afterwards, exactly one POST or one enqueue is performed for immediate
// Messages, and one Task or one enqueue is created for scheduled Messages. Their failures are returned as a
// *transport.NetworkError or a *queue.EnqueueError, except for a Local Task failing at its fire time.
func (d *Dispatcher) Dispatch(ctx context.Context, msg message.Message) (res Result, err error) {
	now := d.now()

	if err = msg.CheckValid(now); err != nil {
		return
	}
	if err = d.checkConfig(); err != nil {
		return
	}

	job := message.NewJob(uuid.NewString(), msg, d.mode, now)

	feedback := Feedback{
		Mode:    d.mode,
		Path:    Immediate,
		Channel: msg.Channel,
	}
	if msg.IsScheduled() {
		feedback.Path = Scheduled
		feedback.FireTime = *msg.FireTime
		feedback.Delay = msg.FireTime.Sub(now)
	}

	switch {
	case d.mode == message.Local && feedback.Path == Immediate:
		res, err = d.sendLocal(ctx, job)
	case d.mode == message.Local:
		res = d.scheduleLocal(job)
	default:
		res, err = d.enqueue(ctx, job)
	}

	logger := log.WithFields(log.Fields{
		"job":     res.Job.ID,
		"mode":    d.mode,
		"path":    feedback.Path,
		"channel": msg.Channel,
		"sender":  msg.Sender,
	})

	if err != nil {
		logger.WithError(err).Warn("Dispatching message failed")
		return
	}

	res.Description = feedback.String()
	logger.Info(res.Description)
	return
}

// checkConfig for the Dispatcher's Mode.
func (d *Dispatcher) checkConfig() error {
	if d.endpointURL == "" {
		return &ConfigurationError{Setting: "agent endpoint URL", Reason: "is not set"}
	}
	if _, err := transport.MessageURL(d.endpointURL); err != nil {
		return &ConfigurationError{Setting: "agent endpoint URL", Reason: err.Error()}
	}
	if d.mode == message.Durable && d.queue == nil {
		return &ConfigurationError{Setting: "durable queue", Reason: "is not set"}
	}
	return nil
}

// post the Job's Message and return the Job in its final state.
func (d *Dispatcher) post(ctx context.Context, job message.Job) (message.Job, error) {
	err := d.transport.Post(ctx, d.endpointURL, job.Message.Payload())
	if err != nil {
		job = job.Transition(message.Failed, err, d.now())
	} else {
		job = job.Transition(message.Delivered, nil, d.now())
	}

	d.observer.Observe(job)
	return job, err
}

// sendLocal is the Local, immediate path.
func (d *Dispatcher) sendLocal(ctx context.Context, job message.Job) (Result, error) {
	job, err := d.post(ctx, job)
	return Result{Delivered: err == nil, Job: job}, err
}

// scheduleLocal is the Local, scheduled path. The Task's outcome is only observable through the Observer.
func (d *Dispatcher) scheduleLocal(job message.Job) Result {
	d.observer.Observe(job)

	d.scheduler.Schedule(job.ID, *job.Message.FireTime, func() error {
		fired := job.Transition(message.Fired, nil, d.now())
		d.observer.Observe(fired)

		// The dispatching caller is gone; the Transport's own timeout bounds this call.
		final, err := d.post(context.Background(), fired)

		logger := log.WithFields(log.Fields{
			"job":       final.ID,
			"channel":   final.Message.Channel,
			"fire_time": *final.Message.FireTime,
		})
		if err != nil {
			logger.WithError(err).Warn("Delivering scheduled message failed")
		} else {
			logger.Info("Delivered scheduled message")
		}
		return err
	})

	return Result{Queued: true, Job: job}
}

// enqueue is the Durable path, both for immediate and scheduled Messages.
func (d *Dispatcher) enqueue(ctx context.Context, job message.Job) (Result, error) {
	target, err := transport.MessageURL(d.endpointURL)
	if err != nil {
		return Result{Job: job}, &ConfigurationError{Setting: "agent endpoint URL", Reason: err.Error()}
	}

	var fireTime time.Time
	if job.Message.FireTime != nil {
		fireTime = *job.Message.FireTime
	}

	handle, err := d.queue.Enqueue(ctx, job.Message.Payload(), target, fireTime)
	if err != nil {
		job = job.Transition(message.Failed, err, d.now())
		d.observer.Observe(job)
		return Result{Job: job}, err
	}

	job.Handle = handle.Name
	job = job.Transition(message.Queued, nil, d.now())
	d.observer.Observe(job)

	return Result{Queued: true, Job: job}, nil
}
