package api

import (
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/warp/careerup/generic"
)

// HeartbeatInterval keeps idle event streams open through proxies.
const HeartbeatInterval = 25 * time.Second

// eventBuffer bounds how far a slow client may fall behind before changes
// are dropped for it.
const eventBuffer = 64

type changeEvent struct {
	Collection string `json:"collection"`
	Kind       string `json:"kind"`
	ID         string `json:"id"`
}

// StreamEvents sends the office's committed changes as server-sent events.
// Clients reload the affected collection on each event.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported", nil)
		return
	}
	office := officeParam(r)

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	changes := make(chan generic.Change, eventBuffer)
	cancel := h.Repo.Subscribe(office, func(c generic.Change) {
		select {
		case changes <- c:
		default:
			h.Logger.Warn("event stream lagging, change dropped", "office", office, "id", c.ID)
		}
	})
	defer cancel()

	h.Metrics.EventStreamOpened()
	defer h.Metrics.EventStreamClosed()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case c := <-changes:
			data, err := json.Marshal(changeEvent{Collection: string(c.Collection), Kind: string(c.Kind), ID: c.ID})
			if err != nil {
				h.Logger.Error("encode change event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
