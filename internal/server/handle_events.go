package server

import (
	"fmt"
	"net/http"
	"time"
)

// handleEvents streams room events as Server-Sent Events.
func handleEvents(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "internal", "streaming not supported")
			return
		}

		st, ok := openStream(w, r, deps)
		if !ok {
			return
		}
		defer st.close(r, deps)

		snap, err := st.snapshot(r.Context(), deps)
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", SyncEvent, snap)
		flusher.Flush()

		st.online(r, deps)

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-deps.closing:
				return
			case data, ok := <-st.sub.C:
				if !ok {
					return
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType(data), data)
				flusher.Flush()
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}
