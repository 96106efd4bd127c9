// SPDX-FileCopyrightText: 2019, 2020, 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

const retentionInterval = time.Hour

// serve the HTTP API until the context is done.
func serve(ctx context.Context, d *daemon) error {
	srv := &http.Server{
		Addr:    d.listen,
		Handler: d.router,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("listen", d.listen).Info("Starting HTTP API")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// expireJournal periodically removes old Jobs from the journal.
func expireJournal(ctx context.Context, d *daemon) error {
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case t := <-ticker.C:
			d.store.DeleteExpired(t.Add(-d.retention))
		}
	}
}

// watchConfig warns about changes of the configuration file. The Mode is fixed for the process' lifetime, so
// changes only apply after a restart.
func watchConfig(ctx context.Context, filename string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// Editors tend to replace files, so the directory is watched.
	if err := watcher.Add(filepath.Dir(filename)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case e, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(e.Name) != filepath.Clean(filename) || e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			log.WithFields(log.Fields{
				"file":      e.Name,
				"operation": e.Op.String(),
			}).Warn("Configuration changed on disk; restart dispatchd to apply it")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("Watching the configuration errored")
		}
	}
}

func main() {
	if len(os.Args) != 2 {
		log.Fatalf("Usage: %s configuration.toml", os.Args[0])
	}

	conf, err := parseConfig(os.Args[1])
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Fatal("Failed to parse config")
	}

	setupLogging(conf.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	d, err := newDaemon(ctx, conf)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Fatal("Failed to set up dispatcher")
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return serve(gCtx, d) })
	g.Go(func() error { return watchConfig(gCtx, os.Args[1]) })
	if d.store != nil {
		g.Go(func() error { return expireJournal(gCtx, d) })
	}

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Dispatcher errored")
	}

	log.Info("Shutting down..")

	if n := d.dispatcher.Scheduler().Outstanding(); n > 0 {
		log.WithField("outstanding", n).Warn("Scheduled local messages will not be delivered")
	}

	if err := d.close(); err != nil {
		log.WithError(err).Warn("Closing down errored")
	}
}
