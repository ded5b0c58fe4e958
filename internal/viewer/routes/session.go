package routes

import (
	"net/http"

	"github.com/petervdpas/airwaves/internal/session"
)

type sessionResp struct {
	State session.State `json:"state"`
}

func registerSessionRoutes(mux *http.ServeMux, d Deps) {
	// POST /api/session/start — ask for a session on the selected profile
	mux.HandleFunc("/api/session/start", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		st, err := d.Store.RequestStart()
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, sessionResp{State: st})
	})

	// POST /api/session/authorize {"granted", "token"} — outcome of the
	// capture authorization prompt. Only the local machine may answer it.
	mux.HandleFunc("/api/session/authorize", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		if !requireLocal(w, r) {
			return
		}
		var req struct {
			Granted bool   `json:"granted"`
			Token   string `json:"token"`
		}
		if decodeJSON(w, r, &req) != nil {
			return
		}
		st, err := d.Store.ResolveAuthorization(r.Context(), req.Granted, req.Token)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, sessionResp{State: st})
	})

	// POST /api/session/stop
	mux.HandleFunc("/api/session/stop", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		st, err := d.Store.RequestStop(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, sessionResp{State: st})
	})

	// POST /api/session/resync — re-query the worker's liveness
	mux.HandleFunc("/api/session/resync", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		writeJSON(w, d.Store.Attach(r.Context()))
	})
}
