package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
)

func registerStateRoutes(mux *http.ServeMux, d Deps) {
	// GET /api/state — current snapshot
	mux.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, d.Store.Snapshot())
	})

	// GET /api/state/events — SSE, one "state" event per committed change
	mux.HandleFunc("/api/state/events", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}

		sseHeaders(w)

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		ch := d.Store.Subscribe()
		defer d.Store.Unsubscribe(ch)

		// Start every stream from the current state.
		if data, err := json.Marshal(d.Store.Snapshot()); err == nil {
			fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
			flusher.Flush()
		}

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-ch:
				if !ok {
					return
				}
				data, err := json.Marshal(snap)
				if err != nil {
					log.Warnf("VIEWER: marshal state: %v", err)
					continue
				}
				fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
				flusher.Flush()
			}
		}
	})
}
