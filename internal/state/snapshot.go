package state

import (
	"slices"

	"github.com/petervdpas/airwaves/internal/profile"
	"github.com/petervdpas/airwaves/internal/session"
)

// Snapshot is one consistent view of the store. Version increases with every
// committed mutation or telemetry update.
type Snapshot struct {
	Version              uint64            `json:"version"`
	SessionState         session.State     `json:"session_state"`
	ActiveProfileID      string            `json:"active_profile_id,omitempty"`
	Stats                string            `json:"stats"`
	AudioLevel           float32           `json:"audio_level"`
	Volume               float32           `json:"volume"`
	Profiles             []profile.Profile `json:"profiles"`
	SelectedID           string            `json:"selected_id"`
	SelectedProfile      *profile.Profile  `json:"selected_profile"`
	VisualizationEnabled bool              `json:"visualization_enabled"`
	Theme                string            `json:"theme"`
}

func (s *Snapshot) clone() Snapshot {
	c := *s
	c.Profiles = slices.Clone(s.Profiles)
	if s.SelectedProfile != nil {
		p := *s.SelectedProfile
		c.SelectedProfile = &p
	}
	return c
}
