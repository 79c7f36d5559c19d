package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zama-ai/decryptiondb/apierr"
	"github.com/zama-ai/decryptiondb/codec"
	"github.com/zama-ai/decryptiondb/workerpool"
)

type handler[P any] struct {
	deps Deps[P]
}

type getResult struct {
	raw   []byte
	found bool
}

// handlePut parses and decodes the request, writes it durably, and only
// then publishes the value to the wait cache, so a durably-failed write
// never becomes visible to a waiting GET.
func (h *handler[P]) handlePut(w http.ResponseWriter, r *http.Request) {
	d := h.deps
	key, err := codec.ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		writeErr(w, r, d.logger(), apierr.Wrap(apierr.BadInput, "malformed key", err))
		return
	}

	var wire codec.WireRecord[P]
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		writeErr(w, r, d.logger(), apierr.Wrap(apierr.BadInput, "malformed request body", err))
		return
	}

	stored, err := d.Profile.DecodeWire(wire)
	if err != nil {
		writeErr(w, r, d.logger(), apierr.Wrap(apierr.BadInput, "malformed signature", err))
		return
	}

	envelope := d.Profile.Env.Encode(stored)

	ctx := r.Context()
	_, err = workerpool.Submit(ctx, d.Pool, func() (struct{}, error) {
		putErr := d.Store.Put(ctx, d.Bucket, key[:], envelope)
		if putErr != nil {
			return struct{}{}, apierr.Wrap(apierr.StoreError, "durable put failed", putErr)
		}
		return struct{}{}, nil
	})
	if err != nil {
		writeErr(w, r, d.logger(), err)
		return
	}

	// Published only after the durable write commits, so a failed PUT
	// never reaches a waiter.
	d.Cache.Put(key, stored)

	w.WriteHeader(http.StatusOK)
}

// handleGet tries the durable store first and only falls back to the wait
// cache — suspending the caller until a matching PUT arrives or the wait
// times out — on a durable miss.
func (h *handler[P]) handleGet(w http.ResponseWriter, r *http.Request) {
	d := h.deps
	key, err := codec.ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		writeErr(w, r, d.logger(), apierr.Wrap(apierr.BadInput, "malformed key", err))
		return
	}

	ctx := r.Context()
	res, err := workerpool.Submit(ctx, d.Pool, func() (getResult, error) {
		raw, found, getErr := d.Store.Get(ctx, d.Bucket, key[:])
		if getErr != nil {
			return getResult{}, apierr.Wrap(apierr.StoreError, "durable get failed", getErr)
		}
		return getResult{raw: raw, found: found}, nil
	})
	if err != nil {
		writeErr(w, r, d.logger(), err)
		return
	}

	if res.found {
		stored, decErr := d.Profile.Env.Decode(res.raw)
		if decErr != nil {
			writeErr(w, r, d.logger(), apierr.Wrap(apierr.Internal, "envelope decode failed", decErr))
			return
		}
		writeJSON(w, d.Profile.EncodeWire(stored))
		return
	}

	stored, ok := d.Cache.GetWithTimeout(ctx, key, d.WaitTimeout)
	if !ok {
		writeErr(w, r, d.logger(), apierr.New(apierr.NotFound, "not durable and wait-cache timed out"))
		return
	}
	writeJSON(w, d.Profile.EncodeWire(stored))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		apiErr = apierr.Wrap(apierr.Internal, "unclassified error", err)
	}

	status := apierr.StatusFor(apiErr.Kind)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("kind", apiErr.Kind.String()),
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(apiErr))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: apiErr.Message})
}
