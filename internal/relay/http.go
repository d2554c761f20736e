package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"orderexport/internal/assert"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Handler exposes a Controller over HTTP.
type Handler struct {
	ctrl    *Controller
	broker  *Broker
	metrics http.Handler
	tracer  trace.Tracer
}

// NewHandler builds the HTTP surface, metrics may be nil.
func NewHandler(ctrl *Controller, broker *Broker, metrics http.Handler) *Handler {
	assert.NotNil(ctrl)
	assert.NotNil(broker)
	return &Handler{
		ctrl:    ctrl,
		broker:  broker,
		metrics: metrics,
		tracer:  otel.Tracer("orderexport/relay"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/messages", h.postMessage)
	r.Get("/progress", h.streamProgress)
	r.Get("/status", h.getStatus)
	r.Get("/exports/latest", h.getLatest)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}
	return r
}

func writeJson(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) postMessage(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "HandleMessage")
	defer span.End()
	span.SetAttributes(attribute.String("message.type", string(msg.Type)))

	// a run outlives the request that started it, STOP_EXPORT ends it
	res := h.ctrl.Handle(context.WithoutCancel(ctx), msg)
	span.SetAttributes(attribute.Bool("message.success", res.Success))
	writeJson(w, http.StatusOK, res)
}

func (h *Handler) streamProgress(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, unsubscribe := h.broker.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
			if err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, h.ctrl.Status())
}

func (h *Handler) getLatest(w http.ResponseWriter, r *http.Request) {
	saved := h.ctrl.Latest()
	if saved == nil {
		http.Error(w, "no export has finished yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", saved.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(saved.CSV)
}
