// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"k8s.io/utils/clock"

	"github.com/sustainable-computing-io/wattmon/internal/service"
	"github.com/sustainable-computing-io/wattmon/internal/tracker"
)

type probe struct {
	api      APIService
	trackers []*tracker.Tracker

	// staleness bounds the age of the newest sample before livez
	// reports unhealthy; 0 disables the check
	staleness time.Duration
	clock     clock.PassiveClock
}

var (
	_ service.Service     = (*probe)(nil)
	_ service.Initializer = (*probe)(nil)
)

// NewProbe creates a probe service that reports sampling health over
// the API server.
func NewProbe(api APIService, trackers []*tracker.Tracker, staleness time.Duration) *probe {
	return &probe{
		api:       api,
		trackers:  trackers,
		staleness: staleness,
		clock:     clock.RealClock{},
	}
}

func (p *probe) Name() string {
	return "probe"
}

func (p *probe) Init() error {
	return p.api.Register("/probe/", "probe", "Health check endpoints", p.handlers())
}

func (p *probe) handlers() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/probe/readyz", p.readyzHandler)
	mux.HandleFunc("/probe/livez", p.livezHandler)

	return mux
}

// readyzHandler reports ready once every tracker has taken at least
// one sample.
func (p *probe) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	for _, t := range p.trackers {
		if t.TotalReads() == 0 {
			p.respondWithError(w, "not ready", fmt.Sprintf("%s has no samples yet", t.Name()))
			return
		}
	}

	p.respondWithSuccess(w, "ok")
}

// livezHandler reports alive while sampling keeps up: a tracker whose
// newest sample is older than the staleness bound is unhealthy.
// Trackers that have not sampled yet are still starting and count as
// alive.
func (p *probe) livezHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if p.staleness <= 0 {
		p.respondWithSuccess(w, "alive")
		return
	}

	now := p.clock.Now().UnixNano()
	for _, t := range p.trackers {
		ts, _, ok := t.Latest()
		if !ok {
			continue
		}
		if age := time.Duration(now - ts); age > p.staleness {
			p.respondWithError(w, "not alive",
				fmt.Sprintf("%s last sampled %s ago", t.Name(), age.Round(time.Millisecond)))
			return
		}
	}

	p.respondWithSuccess(w, "alive")
}

func (p *probe) respondWithSuccess(w http.ResponseWriter, status string) {
	response := map[string]string{
		"status": status,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (p *probe) respondWithError(w http.ResponseWriter, status, reason string) {
	response := map[string]string{
		"status": status,
		"reason": reason,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}