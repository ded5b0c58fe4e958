// internal/viewer/routes/settings.go
package routes

import (
	"net/http"
	"strings"
)

func registerSettingsRoutes(mux *http.ServeMux, d Deps) {
	// POST /api/volume {"level"}
	mux.HandleFunc("/api/volume", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		var req struct {
			Level *float32 `json:"level"`
		}
		if decodeJSON(w, r, &req) != nil {
			return
		}
		if req.Level == nil {
			http.Error(w, "missing level", http.StatusBadRequest)
			return
		}
		if err := d.Store.SetVolume(*req.Level); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]float32{"volume": d.Store.Snapshot().Volume})
	})

	// POST /api/visualization {"enabled"}
	mux.HandleFunc("/api/visualization", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if decodeJSON(w, r, &req) != nil {
			return
		}
		if err := d.Store.SetVisualizationEnabled(req.Enabled); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]bool{"visualization_enabled": req.Enabled})
	})

	// POST /api/theme {"theme": light|dark|system}
	mux.HandleFunc("/api/theme", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		var req struct {
			Theme string `json:"theme"`
		}
		if decodeJSON(w, r, &req) != nil {
			return
		}
		theme := strings.ToLower(strings.TrimSpace(req.Theme))
		if !isValidTheme(theme) {
			http.Error(w, "invalid theme", http.StatusBadRequest)
			return
		}
		if err := d.Store.SetTheme(theme); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]string{"theme": theme})
	})
}
