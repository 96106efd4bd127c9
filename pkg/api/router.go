// SPDX-FileCopyrightText: 2026 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/mux"

	"github.com/dtn7/agentdispatch/pkg/dispatch"
	"github.com/dtn7/agentdispatch/pkg/message"
	"github.com/dtn7/agentdispatch/pkg/queue"
	"github.com/dtn7/agentdispatch/pkg/storage"
	"github.com/dtn7/agentdispatch/pkg/transport"
)

// ServiceName is reported by /health.
const ServiceName = "everlight-agents"

// Dispatcher is implemented by *dispatch.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg message.Message) (dispatch.Result, error)
}

// JobStore is implemented by *storage.Store.
type JobStore interface {
	QueryId(id string) (message.Job, error)
}

// Router serves the HTTP API.
type Router struct {
	router *mux.Router

	dispatcher Dispatcher
	store      JobStore
}

// NewRouter creates a Router. The store and the hub might be nil, disabling /jobs/{id} and /events.
func NewRouter(dispatcher Dispatcher, store JobStore, hub *Hub) (r *Router) {
	r = &Router{
		router:     mux.NewRouter(),
		dispatcher: dispatcher,
		store:      store,
	}

	r.router.HandleFunc("/dispatch", r.handleDispatch).Methods(http.MethodPost)
	r.router.HandleFunc("/jobs/{id}", r.handleJob).Methods(http.MethodGet)
	r.router.HandleFunc("/health", r.handleHealth).Methods(http.MethodGet)
	if hub != nil {
		r.router.Handle("/events", hub).Methods(http.MethodGet)
	}

	return r
}

// ServeHTTP is a http.Handler to be bound to the HTTP server's root.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

func writeJson(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to write HTTP response")
	}
}

// statusCode for an error returned by a Dispatcher.
func statusCode(err error) int {
	var (
		validationErr *message.ValidationError
		configErr     *dispatch.ConfigurationError
		networkErr    *transport.NetworkError
		enqueueErr    *queue.EnqueueError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &configErr):
		return http.StatusInternalServerError
	case errors.As(err, &networkErr), errors.As(err, &enqueueErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleDispatch processes /dispatch POST requests.
func (r *Router) handleDispatch(w http.ResponseWriter, req *http.Request) {
	var dispatchRequest DispatchRequest

	if err := json.NewDecoder(req.Body).Decode(&dispatchRequest); err != nil {
		log.WithError(err).Debug("Failed to parse dispatch request")
		writeJson(w, http.StatusBadRequest, DispatchResponse{Status: "error", Error: err.Error()})
		return
	}

	res, err := r.dispatcher.Dispatch(req.Context(), dispatchRequest.toMessage())
	if err != nil {
		writeJson(w, statusCode(err), DispatchResponse{
			Status: "error",
			Error:  err.Error(),
			JobID:  res.Job.ID,
		})
		return
	}

	writeJson(w, http.StatusOK, DispatchResponse{
		Status:      "message_sent",
		Description: res.Description,
		JobID:       res.Job.ID,
		Delivered:   res.Delivered,
		Queued:      res.Queued,
	})
}

// handleJob processes /jobs/{id} GET requests.
func (r *Router) handleJob(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	if r.store == nil {
		writeJson(w, http.StatusNotFound, JobResponse{Error: "no job journal configured"})
		return
	}

	job, err := r.store.QueryId(id)
	if errors.Is(err, storage.ErrNotFound) {
		writeJson(w, http.StatusNotFound, JobResponse{Error: "unknown job " + id})
		return
	} else if err != nil {
		log.WithField("job", id).WithError(err).Warn("Failed to query job journal")
		writeJson(w, http.StatusInternalServerError, JobResponse{Error: err.Error()})
		return
	}

	writeJson(w, http.StatusOK, JobResponse{Job: &job})
}

// handleHealth processes /health GET requests.
func (r *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJson(w, http.StatusOK, HealthResponse{Status: "healthy", Service: ServiceName})
}
