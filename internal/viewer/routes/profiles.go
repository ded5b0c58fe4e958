package routes

import (
	"net/http"

	"github.com/petervdpas/airwaves/internal/profile"
)

func registerProfileRoutes(mux *http.ServeMux, d Deps) {
	// GET /api/profiles — list and selection
	// PUT /api/profiles — replace the whole list
	mux.HandleFunc("/api/profiles", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
		case http.MethodPut:
			var list []profile.Profile
			if decodeJSON(w, r, &list) != nil {
				return
			}
			if err := d.Store.ReplaceProfiles(list); err != nil {
				writeErr(w, err)
				return
			}
		default:
			w.Header().Set("Allow", "GET, PUT")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s := d.Store.Snapshot()
		writeJSON(w, map[string]any{
			"profiles":    s.Profiles,
			"selected_id": s.SelectedID,
		})
	})

	// POST /api/profiles/new — append a profile with default settings
	mux.HandleFunc("/api/profiles/new", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		p, err := d.Store.AddProfile()
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, p)
	})

	// POST /api/profiles/select {"id"}
	mux.HandleFunc("/api/profiles/select", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		var req struct {
			ID string `json:"id"`
		}
		if decodeJSON(w, r, &req) != nil {
			return
		}
		if err := d.Store.SelectProfile(req.ID); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]string{"selected_id": req.ID})
	})

	// POST /api/profiles/edit {"id", ...changed fields, port as text}
	mux.HandleFunc("/api/profiles/edit", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		var req struct {
			ID string `json:"id"`
			profile.Edit
		}
		if decodeJSON(w, r, &req) != nil {
			return
		}
		p, err := d.Store.EditProfile(req.ID, req.Edit)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, p)
	})

	// POST /api/profiles/tone {"id", "bass", "treble"}
	mux.HandleFunc("/api/profiles/tone", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		var req struct {
			ID     string  `json:"id"`
			Bass   float32 `json:"bass"`
			Treble float32 `json:"treble"`
		}
		if decodeJSON(w, r, &req) != nil {
			return
		}
		if err := d.Store.UpdateToneControls(req.ID, req.Bass, req.Treble); err != nil {
			writeErr(w, err)
			return
		}
		p, _ := profile.Find(d.Store.Snapshot().Profiles, req.ID)
		writeJSON(w, p)
	})
}
