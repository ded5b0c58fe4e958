package profile

import (
	"slices"
	"strconv"
	"strings"
)

// Edit is the editing-surface view of a profile: numeric fields that the user
// types are carried as text and only resolved when the edit is committed.
// Nil fields are left unchanged.
type Edit struct {
	Name          *string        `json:"name,omitempty"`
	Address       *string        `json:"ipAddress,omitempty"`
	Port          *string        `json:"port,omitempty"`
	Bitrate       *int           `json:"bitrate,omitempty"`
	SampleRate    *int           `json:"sampleRate,omitempty"`
	ChannelConfig *ChannelConfig `json:"channelConfig,omitempty"`
	Bass          *float32       `json:"bass,omitempty"`
	Treble        *float32       `json:"treble,omitempty"`
}

// Apply commits e onto p. The id is never touched. Invalid values fall back
// to p's current (last-known-good) value rather than failing the edit.
func Apply(p Profile, e Edit) Profile {
	if e.Name != nil {
		p.Name = *e.Name
	}
	if e.Address != nil {
		p.Address = strings.TrimSpace(*e.Address)
	}
	if e.Port != nil {
		p.Port = ParsePort(*e.Port, p.Port)
	}
	if e.Bitrate != nil && slices.Contains(Bitrates, *e.Bitrate) {
		p.Bitrate = *e.Bitrate
	}
	if e.SampleRate != nil && slices.Contains(SampleRates, *e.SampleRate) {
		p.SampleRate = *e.SampleRate
	}
	if e.ChannelConfig != nil && e.ChannelConfig.Valid() {
		p.ChannelConfig = *e.ChannelConfig
	}
	if e.Bass != nil {
		p.Bass = ClampTone(*e.Bass)
	}
	if e.Treble != nil {
		p.Treble = ClampTone(*e.Treble)
	}
	return p
}

// ParsePort resolves port text typed by the user. Text that is not a port
// number yields lastGood, or DefaultPort if lastGood is itself unusable.
func ParsePort(text string, lastGood int) int {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err == nil && ValidPort(n) {
		return n
	}
	if ValidPort(lastGood) {
		return lastGood
	}
	return DefaultPort
}
