// Package session turns a start/stop intent plus an externally granted capture
// authorization into a running or stopped background worker, and resynchronizes
// with a worker that may have outlived (or died behind) the UI.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/petervdpas/airwaves/internal/profile"
)

var (
	ErrNoProfile   = errors.New("session: no profile selected")
	ErrNotAwaiting = errors.New("session: no start is awaiting authorization")
)

// State is the lifecycle of the (single) session.
type State int

const (
	Idle State = iota
	AwaitingAuthorization
	Active
	Stopping
)

var stateNames = [...]string{"idle", "awaiting_authorization", "active", "stopping"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for i, n := range stateNames {
		if n == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("session: unknown state %q", b)
}

// StartParams is everything the worker needs to begin a run. It is a snapshot:
// later profile edits never change parameters already handed over.
type StartParams struct {
	ProfileID          string                `json:"profile_id"`
	Address            string                `json:"address"`
	Port               int                   `json:"port"`
	Bitrate            int                   `json:"bitrate"`
	SampleRate         int                   `json:"sample_rate"`
	ChannelConfig      profile.ChannelConfig `json:"channel_config"`
	Bass               float32               `json:"bass"`
	Treble             float32               `json:"treble"`
	InitialVolume      float32               `json:"initial_volume"`
	AuthorizationToken string                `json:"authorization_token"`
}

// ParamsFor composes start parameters from a profile and the current volume.
func ParamsFor(p profile.Profile, volume float32, token string) StartParams {
	return StartParams{
		ProfileID:          p.ID,
		Address:            p.Address,
		Port:               p.Port,
		Bitrate:            p.Bitrate,
		SampleRate:         p.SampleRate,
		ChannelConfig:      p.ChannelConfig,
		Bass:               p.Bass,
		Treble:             p.Treble,
		InitialVolume:      volume,
		AuthorizationToken: token,
	}
}

// Status is the worker's own, authoritative view of whether it runs.
type Status struct {
	Running   bool   `json:"running"`
	ProfileID string `json:"profile_id,omitempty"`
}

// Worker is the only surface the controller needs from the capture/streaming
// worker. The in-process worker and the HTTP client for a separate worker
// process both satisfy it.
type Worker interface {
	Start(ctx context.Context, p StartParams) error
	Stop(ctx context.Context) error
	Status(ctx context.Context) Status
}
