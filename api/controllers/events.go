package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/omarkhalifa/laundryops-backend/api/middleware"
	"github.com/omarkhalifa/laundryops-backend/api/responses"
	"github.com/omarkhalifa/laundryops-backend/internal/broadcast"
	pkgerrors "github.com/omarkhalifa/laundryops-backend/pkg/errors"
	"github.com/omarkhalifa/laundryops-backend/pkg/logger"
)

const sseHeartbeatInterval = 25 * time.Second

// DeliveryEvents streams the branch's live dispatch events over SSE:
// status changes, driver assignments and thread messages. Slow consumers
// miss events rather than stall the publishers; clients re-sync with a
// list call after reconnecting.
func DeliveryEvents(hub *broadcast.Hub, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		branchID := middleware.BranchIDFromContext(r.Context())
		events := hub.Subscribe(r.Context(), branchID)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		heartbeat := time.NewTicker(sseHeartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-heartbeat.C:
				fmt.Fprint(w, ": keep-alive\n\n")
				flusher.Flush()
			case event, open := <-events:
				if !open {
					return
				}
				payload, err := json.Marshal(event)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, payload)
				flusher.Flush()
			}
		}
	}
}
