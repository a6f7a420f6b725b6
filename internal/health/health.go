// Package health implements the supervisor's localhost diagnostics surface
// (SPEC_FULL.md "Domain stack"): a chi.Router serving liveness, basic
// counters, and a debug dump of the current registry. Grounded on the
// teacher's internal/server/rest.NewRouter route layout and
// agent.HealthzHandler's JSON health snapshot, generalized from the
// teacher's JWT-gated multi-tenant API to a localhost-only operational
// endpoint (§2 never introduces a second trust domain for this process;
// no JWT middleware is wired here — see DESIGN.md).
package health

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nbeaver/mxautosave/internal/registry"
)

// Status is the payload returned by GET /healthz.
type Status struct {
	Status     string  `json:"status"`
	UptimeS    float64 `json:"uptime_s"`
	NumEntries int     `json:"num_entries"`
	LastPollAt string  `json:"last_poll_at,omitempty"`
	LastSaveAt string  `json:"last_save_at,omitempty"`
	LastError  string  `json:"last_error,omitempty"`
}

// Recorder accumulates the counters health.Handler reports; the supervisor
// updates it from the poll/save loop. Safe for concurrent use, though in
// this single-threaded-cooperative design (§5) only one goroutine ever
// writes at a time.
type Recorder struct {
	startTime time.Time

	mu         sync.RWMutex
	numEntries int
	lastPollAt time.Time
	lastSaveAt time.Time
	lastErr    error
}

// NewRecorder returns a Recorder whose uptime clock starts now.
func NewRecorder() *Recorder {
	return &Recorder{startTime: time.Now()}
}

// SetNumEntries records how many autosave bindings are active.
func (r *Recorder) SetNumEntries(n int) {
	r.mu.Lock()
	r.numEntries = n
	r.mu.Unlock()
}

// RecordPoll marks a poll phase completion (err may be nil).
func (r *Recorder) RecordPoll(err error) {
	r.mu.Lock()
	r.lastPollAt = time.Now()
	if err != nil {
		r.lastErr = err
	}
	r.mu.Unlock()
}

// RecordSave marks a save phase completion (err may be nil).
func (r *Recorder) RecordSave(err error) {
	r.mu.Lock()
	r.lastSaveAt = time.Now()
	if err != nil {
		r.lastErr = err
	}
	r.mu.Unlock()
}

func (r *Recorder) snapshot() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Status{
		Status:     "ok",
		UptimeS:    time.Since(r.startTime).Seconds(),
		NumEntries: r.numEntries,
	}
	if !r.lastPollAt.IsZero() {
		s.LastPollAt = r.lastPollAt.UTC().Format(time.RFC3339)
	}
	if !r.lastSaveAt.IsZero() {
		s.LastSaveAt = r.lastSaveAt.UTC().Format(time.RFC3339)
	}
	if r.lastErr != nil {
		s.Status = "degraded"
		s.LastError = r.lastErr.Error()
	}
	return s
}

// NewRouter builds the diagnostics HTTP handler: /healthz, /metrics
// (Prometheus text exposition, minimal), and /debug/records (a JSON dump
// of the process registry).
func NewRouter(rec *Recorder, reg *registry.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		s := rec.snapshot()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(s)
	})

	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		s := rec.snapshot()
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetric(w, "mxautosave_uptime_seconds", s.UptimeS)
		writeMetric(w, "mxautosave_num_entries", float64(s.NumEntries))
	})

	r.Get("/debug/records", func(w http.ResponseWriter, req *http.Request) {
		type recordSummary struct {
			Name       string   `json:"name"`
			Superclass string   `json:"superclass"`
			Class      string   `json:"class"`
			Type       string   `json:"type"`
			Fields     []string `json:"fields"`
		}
		var out []recordSummary
		for _, rd := range reg.Records() {
			names := make([]string, len(rd.Fields))
			for i, f := range rd.Fields {
				names[i] = f.Defaults.Name
			}
			out = append(out, recordSummary{Name: rd.Name, Superclass: rd.Superclass, Class: rd.Class, Type: rd.Type, Fields: names})
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(out)
	})

	return r
}

func writeMetric(w http.ResponseWriter, name string, value float64) {
	_, _ = w.Write([]byte(name + " "))
	_, _ = w.Write([]byte(strconv.FormatFloat(value, 'g', -1, 64)))
	_, _ = w.Write([]byte("\n"))
}
