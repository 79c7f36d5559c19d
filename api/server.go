// Package api glues the HTTP surface to a DurableStore and a WaitCache: it
// implements the PUT and GET handlers and the "durable miss ⇒ wait on
// cache" fallback.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zama-ai/decryptiondb/codec"
	"github.com/zama-ai/decryptiondb/store"
	"github.com/zama-ai/decryptiondb/waitcache"
	"github.com/zama-ai/decryptiondb/workerpool"
)

// RequestMetrics receives one observation per handled request.
type RequestMetrics interface {
	Observe(method, path string, status int)
}

type noopRequestMetrics struct{}

func (noopRequestMetrics) Observe(string, string, int) {}

// Deps are the collaborators a record endpoint needs. P is the payload
// shape for the active profile (bool or uint64, per codec.Profile).
type Deps[P any] struct {
	Store       store.Store
	Bucket      store.Bucket
	Cache       *waitcache.Cache[codec.Key, codec.StoredRecord[P]]
	Pool        *workerpool.Pool
	Profile     codec.Profile[P]
	WaitTimeout time.Duration
	Metrics     RequestMetrics
	Logger      *zap.Logger
}

func (d Deps[P]) metrics() RequestMetrics {
	if d.Metrics == nil {
		return noopRequestMetrics{}
	}
	return d.Metrics
}

func (d Deps[P]) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// Mount wires PUT and GET handlers for one record profile under
// /{record}/{key} onto r.
func Mount[P any](r chi.Router, record string, deps Deps[P]) {
	h := &handler[P]{deps: deps}
	pattern := "/" + record + "/{key}"
	r.Put(pattern, wrapObserved(http.MethodPut, pattern, deps.metrics(), deps.logger(), h.handlePut))
	r.Get(pattern, wrapObserved(http.MethodGet, pattern, deps.metrics(), deps.logger(), h.handleGet))
}

// NewRouter builds a fresh chi.Router with request-ID stamping installed.
// Callers Mount one or more record profiles onto it.
func NewRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(withRequestID)
	return r
}

// wrapObserved records a metrics observation and a structured log line for
// every request handled through it: method, path, key, status, and
// duration_ms, regardless of outcome. Handler-level error logging (see
// writeErr) adds the failure detail on top of this for 5xx responses.
func wrapObserved(method, pattern string, m RequestMetrics, log *zap.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(sw, r)
		duration := time.Since(start)

		m.Observe(method, pattern, sw.status)
		log.Info("request handled",
			zap.String("method", method),
			zap.String("path", pattern),
			zap.String("key", chi.URLParam(r, "key")),
			zap.Int("status", sw.status),
			zap.Int64("duration_ms", duration.Milliseconds()),
		)
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.status = code
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}
