// internal/viewer/routes/helpers.go

package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/petervdpas/airwaves/internal/profile"
	"github.com/petervdpas/airwaves/internal/session"
)

const maxBody = 1 << 20

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func requireLocal(w http.ResponseWriter, r *http.Request) bool {
	if !isLocalRequest(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	}
	return true
}

func isLocalRequest(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// decodeJSON reads the request body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("VIEWER: encode response: %v", err)
	}
}

func sseHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// writeErr maps domain errors onto status codes.
func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, profile.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrNoProfile), errors.Is(err, session.ErrNotAwaiting):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.Errorf("VIEWER: %v", err)
	}
	http.Error(w, fmt.Sprintf("failed: %v", err), status)
}

func isValidTheme(t string) bool {
	return t == "light" || t == "dark" || t == "system"
}
