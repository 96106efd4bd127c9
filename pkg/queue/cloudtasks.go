// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	"cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/dtn7/agentdispatch/pkg/message"
)

const (
	DefaultLocation  = "us-west1"
	DefaultQueue     = "messages"
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "everlight-agents/messaging"
)

// CloudTasksConfig addresses a Cloud Tasks queue.
type CloudTasksConfig struct {
	Project  string
	Location string
	Queue    string

	// Token is attached to each created task as a bearer token, if not empty.
	Token string

	// Timeout of each CreateTask call.
	Timeout time.Duration
}

// QueuePath is the fully qualified queue name.
func (conf CloudTasksConfig) QueuePath() string {
	return fmt.Sprintf("projects/%s/locations/%s/queues/%s", conf.Project, conf.Location, conf.Queue)
}

func (conf *CloudTasksConfig) setDefaults() {
	if conf.Location == "" {
		conf.Location = DefaultLocation
	}
	if conf.Queue == "" {
		conf.Queue = DefaultQueue
	}
	if conf.Timeout <= 0 {
		conf.Timeout = DefaultTimeout
	}
}

type createTaskFunc func(ctx context.Context, req *cloudtaskspb.CreateTaskRequest) (*cloudtaskspb.Task, error)

// CloudTasks is a Queue backed by Google Cloud Tasks.
type CloudTasks struct {
	conf   CloudTasksConfig
	create createTaskFunc
	close  func() error
}

// NewCloudTasks connects to Cloud Tasks, using the application default credentials.
func NewCloudTasks(ctx context.Context, conf CloudTasksConfig) (*CloudTasks, error) {
	if conf.Project == "" {
		return nil, fmt.Errorf("Cloud Tasks project is not set")
	}

	client, err := cloudtasks.NewClient(ctx)
	if err != nil {
		return nil, err
	}

	create := func(ctx context.Context, req *cloudtaskspb.CreateTaskRequest) (*cloudtaskspb.Task, error) {
		return client.CreateTask(ctx, req)
	}
	return newCloudTasks(conf, create, client.Close), nil
}

func newCloudTasks(conf CloudTasksConfig, create createTaskFunc, closer func() error) *CloudTasks {
	conf.setDefaults()
	return &CloudTasks{
		conf:   conf,
		create: create,
		close:  closer,
	}
}

// Enqueue creates an HTTP task, executed by Cloud Tasks at fireTime or as soon as possible for a zero fireTime.
func (ct *CloudTasks) Enqueue(ctx context.Context, payload message.Payload, targetURL string, fireTime time.Time) (
	handle JobHandle, err error) {
	queuePath := ct.conf.QueuePath()

	body, err := json.Marshal(payload)
	if err != nil {
		err = &EnqueueError{Queue: queuePath, Err: err}
		return
	}

	headers := map[string]string{
		"Content-Type": "application/json",
		"User-Agent":   DefaultUserAgent,
	}
	if ct.conf.Token != "" {
		headers["Authorization"] = "Bearer " + ct.conf.Token
	}

	task := &cloudtaskspb.Task{
		MessageType: &cloudtaskspb.Task_HttpRequest{
			HttpRequest: &cloudtaskspb.HttpRequest{
				HttpMethod: cloudtaskspb.HttpMethod_POST,
				Url:        targetURL,
				Headers:    headers,
				Body:       body,
			},
		},
	}
	if !fireTime.IsZero() {
		task.ScheduleTime = timestamppb.New(fireTime.UTC())
	}

	ctx, cancel := context.WithTimeout(ctx, ct.conf.Timeout)
	defer cancel()

	resp, createErr := ct.create(ctx, &cloudtaskspb.CreateTaskRequest{
		Parent: queuePath,
		Task:   task,
	})
	if createErr != nil {
		err = &EnqueueError{Queue: queuePath, Err: createErr}
		return
	}

	handle = JobHandle{Name: resp.GetName()}

	log.WithFields(log.Fields{
		"queue":     queuePath,
		"task":      handle.Name,
		"channel":   payload.Channel,
		"fire_time": fireTime,
	}).Info("Enqueued agent message task")

	return
}

// Close the underlying client.
func (ct *CloudTasks) Close() error {
	if ct.close == nil {
		return nil
	}
	return ct.close()
}
