// SPDX-FileCopyrightText: 2019, 2020, 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"

	"github.com/dtn7/agentdispatch/pkg/api"
	"github.com/dtn7/agentdispatch/pkg/dispatch"
	"github.com/dtn7/agentdispatch/pkg/message"
	"github.com/dtn7/agentdispatch/pkg/queue"
	"github.com/dtn7/agentdispatch/pkg/storage"
	"github.com/dtn7/agentdispatch/pkg/transport"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Core       coreConf
	CloudTasks cloudTasksConf `toml:"cloud-tasks"`
	Api        apiConf
	Logging    logConf
}

// coreConf describes the Core-configuration block.
type coreConf struct {
	LocalDevelopment *bool  `toml:"local-development"`
	AgentEndpoint    string `toml:"agent-endpoint"`
	AgentToken       string `toml:"agent-token"`
	Timeout          string
	Store            string
	Retention        string
}

// cloudTasksConf describes the Cloud Tasks-configuration block.
type cloudTasksConf struct {
	Project  string
	Location string
	Queue    string
}

// apiConf describes the HTTP API.
type apiConf struct {
	Listen string
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

const (
	defaultListen    = "127.0.0.1:8080"
	defaultRetention = 7 * 24 * time.Hour
)

// parseConfig reads the TOML file and applies environment overrides.
func parseConfig(filename string) (conf tomlConfig, err error) {
	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}

	conf.applyEnv(os.LookupEnv)
	return
}

// applyEnv overrides settings by the environment variables known from the agent service.
func (conf *tomlConfig) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(dispatch.ModeEnv); ok {
		local := dispatch.ParseMode(v) == message.Local
		conf.Core.LocalDevelopment = &local
	}

	overrides := []struct {
		env   string
		field *string
	}{
		{"AGENT_ENDPOINT_URL", &conf.Core.AgentEndpoint},
		{"AGENT_SERVICE_TOKEN", &conf.Core.AgentToken},
		{"GOOGLE_CLOUD_PROJECT", &conf.CloudTasks.Project},
		{"GOOGLE_CLOUD_LOCATION", &conf.CloudTasks.Location},
	}
	for _, o := range overrides {
		if v, ok := lookup(o.env); ok && v != "" {
			*o.field = v
		}
	}
}

// mode of the configured Dispatcher. A missing flag results in Durable.
func (conf tomlConfig) mode() message.Mode {
	if conf.Core.LocalDevelopment != nil && *conf.Core.LocalDevelopment {
		return message.Local
	}
	return message.Durable
}

// durations parses the timeout and the retention, collecting all errors.
func (conf tomlConfig) durations() (timeout, retention time.Duration, errs error) {
	timeout = transport.DefaultTimeout
	retention = defaultRetention

	if conf.Core.Timeout != "" {
		if d, err := time.ParseDuration(conf.Core.Timeout); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("core.timeout: %w", err))
		} else if d <= 0 {
			errs = multierror.Append(errs, fmt.Errorf("core.timeout must be positive, not %v", d))
		} else {
			timeout = d
		}
	}

	if conf.Core.Retention != "" {
		if d, err := time.ParseDuration(conf.Core.Retention); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("core.retention: %w", err))
		} else if d <= 0 {
			errs = multierror.Append(errs, fmt.Errorf("core.retention must be positive, not %v", d))
		} else {
			retention = d
		}
	}

	return
}

// setupLogging configures logrus from the Logging-configuration block.
func setupLogging(conf logConf) {
	if conf.Level != "" {
		if lvl, err := log.ParseLevel(conf.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    conf.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.ReportCaller)

	switch conf.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})

	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		log.Warn("Unknown logging format")
	}
}

// daemon bundles everything built from a configuration.
type daemon struct {
	dispatcher *dispatch.Dispatcher
	router     *api.Router
	hub        *api.Hub
	store      *storage.Store
	cloudTasks *queue.CloudTasks

	listen    string
	retention time.Duration
}

// newDaemon creates the Dispatcher and its surroundings for a configuration.
func newDaemon(ctx context.Context, conf tomlConfig) (d *daemon, err error) {
	timeout, retention, err := conf.durations()
	if err != nil {
		return nil, err
	}

	d = &daemon{
		hub:       api.NewHub(),
		listen:    conf.Api.Listen,
		retention: retention,
	}
	if d.listen == "" {
		d.listen = defaultListen
	}

	var observers dispatch.Observers

	if conf.Core.Store != "" {
		if d.store, err = storage.NewStore(conf.Core.Store); err != nil {
			return nil, err
		}

		if lost, lostErr := d.store.MarkLost(time.Now()); lostErr != nil {
			log.WithError(lostErr).Warn("Failed to inspect journal for lost jobs")
		} else if lost > 0 {
			log.WithField("lost", lost).Warn("Journal contains scheduled messages of a previous process")
		}

		observers = append(observers, d.store)
	}
	observers = append(observers, d.hub)

	mode := conf.mode()

	// A missing project is not fatal at start up; it results in a ConfigurationError on dispatch.
	var q queue.Queue
	if mode == message.Durable && conf.CloudTasks.Project != "" {
		d.cloudTasks, err = queue.NewCloudTasks(ctx, queue.CloudTasksConfig{
			Project:  conf.CloudTasks.Project,
			Location: conf.CloudTasks.Location,
			Queue:    conf.CloudTasks.Queue,
			Token:    conf.Core.AgentToken,
			Timeout:  timeout,
		})
		if err != nil {
			_ = d.close()
			return nil, err
		}
		q = d.cloudTasks
	} else if mode == message.Durable {
		log.Warn("GOOGLE_CLOUD_PROJECT is not set; durable dispatching will fail")
	}

	if conf.Core.AgentEndpoint == "" {
		log.Warn("Agent endpoint is not set; dispatching will fail")
	}

	d.dispatcher = dispatch.NewDispatcher(dispatch.Config{
		Mode:        mode,
		EndpointURL: conf.Core.AgentEndpoint,
		Transport:   transport.NewClient(transport.Options{Timeout: timeout, Token: conf.Core.AgentToken}),
		Queue:       q,
		Observer:    observers,
	})

	if d.store != nil {
		d.router = api.NewRouter(d.dispatcher, d.store, d.hub)
	} else {
		d.router = api.NewRouter(d.dispatcher, nil, d.hub)
	}

	log.WithFields(log.Fields{
		"mode":     mode,
		"endpoint": conf.Core.AgentEndpoint,
		"listen":   d.listen,
		"store":    conf.Core.Store,
	}).Info("Configured dispatcher")

	return
}

// close everything except the Dispatcher's outstanding Tasks, which cannot be cancelled.
func (d *daemon) close() (errs error) {
	d.hub.Close()

	if d.cloudTasks != nil {
		if err := d.cloudTasks.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return
}
