// Package profile owns the durable list of connection profiles and the
// selected-profile reference.
package profile

import (
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"
)

// ChannelConfig is the capture channel layout.
type ChannelConfig string

const (
	Mono   ChannelConfig = "Mono"
	Stereo ChannelConfig = "Stereo"
)

// Channels returns the channel count for c.
func (c ChannelConfig) Channels() int {
	if c == Mono {
		return 1
	}
	return 2
}

func (c ChannelConfig) Valid() bool {
	return c == Mono || c == Stereo
}

// Allowed codec menus. The first entry of each is not necessarily the default;
// see DefaultBitrate and DefaultSampleRate.
var (
	Bitrates    = []int{96000, 128000, 192000, 256000, 320000}
	SampleRates = []int{22050, 44100, 48000}
)

const (
	DefaultName       = "Default"
	DefaultAddress    = "192.168.1.100"
	DefaultPort       = 8888
	DefaultBitrate    = 128000
	DefaultSampleRate = 44100
	DefaultChannels   = Stereo

	// Tone offsets in dB.
	MinTone = -15
	MaxTone = 15
)

// Profile is one named bundle of connection, codec and tone settings.
// ID is assigned once at creation and never changes.
//
// JSON field names match records written by earlier releases.
type Profile struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Address       string        `json:"ipAddress"`
	Port          int           `json:"port"`
	Bitrate       int           `json:"bitrate"`
	SampleRate    int           `json:"sampleRate"`
	ChannelConfig ChannelConfig `json:"channelConfig"`
	Bass          float32       `json:"bass"`
	Treble        float32       `json:"treble"`
}

func (p Profile) String() string {
	return fmt.Sprintf("%s (%s:%d, %d bps, %d Hz, %s)", p.Name, p.Address, p.Port, p.Bitrate, p.SampleRate, p.ChannelConfig)
}

// Default returns the profile synthesized when nothing usable is persisted.
func Default() Profile {
	return Profile{
		ID:            newID(),
		Name:          DefaultName,
		Address:       DefaultAddress,
		Port:          DefaultPort,
		Bitrate:       DefaultBitrate,
		SampleRate:    DefaultSampleRate,
		ChannelConfig: DefaultChannels,
	}
}

// New returns a fresh profile to append to existing. The id never collides
// with an id already in existing.
func New(existing []Profile) Profile {
	id := newID()
	for Index(existing, id) >= 0 {
		id = newID()
	}
	return Profile{
		ID:            id,
		Name:          fmt.Sprintf("New Profile %d", len(existing)+1),
		Port:          DefaultPort,
		Bitrate:       DefaultBitrate,
		SampleRate:    DefaultSampleRate,
		ChannelConfig: DefaultChannels,
	}
}

func newID() string {
	return uuid.NewString()
}

// Index returns the position of id in list, or -1.
func Index(list []Profile, id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(list, func(p Profile) bool { return p.ID == id })
}

// Find returns the profile with id.
func Find(list []Profile, id string) (Profile, bool) {
	i := Index(list, id)
	if i < 0 {
		return Profile{}, false
	}
	return list[i], true
}

// Replace returns a copy of list with the entry whose ID matches p.ID
// replaced in place. ok is false when no entry matches.
func Replace(list []Profile, p Profile) (out []Profile, ok bool) {
	i := Index(list, p.ID)
	if i < 0 {
		return list, false
	}
	out = slices.Clone(list)
	out[i] = p
	return out, true
}

// Remove returns a copy of list without id.
func Remove(list []Profile, id string) []Profile {
	return slices.DeleteFunc(slices.Clone(list), func(p Profile) bool { return p.ID == id })
}

// UpsertSelection keeps previous if it still names a profile in list,
// otherwise selects the first profile, or "" when list is empty.
func UpsertSelection(list []Profile, previous string) string {
	if Index(list, previous) >= 0 {
		return previous
	}
	if len(list) == 0 {
		return ""
	}
	return list[0].ID
}

// ClampTone limits a tone offset to the supported dB range.
func ClampTone(v float32) float32 {
	if math.IsNaN(float64(v)) {
		return 0
	}
	if v < MinTone {
		return MinTone
	}
	if v > MaxTone {
		return MaxTone
	}
	return v
}

// ValidPort reports whether port is a usable TCP port.
func ValidPort(port int) bool {
	return port >= 1 && port <= 65535
}

// repair normalizes one decoded entry in place and reports whether anything
// changed. seen tracks ids already used by earlier entries.
func repair(p *Profile, seen map[string]bool) bool {
	changed := false
	if p.ID == "" || seen[p.ID] {
		p.ID = newID()
		for seen[p.ID] {
			p.ID = newID()
		}
		changed = true
	}
	seen[p.ID] = true

	if !p.ChannelConfig.Valid() {
		p.ChannelConfig = DefaultChannels
		changed = true
	}
	if !slices.Contains(Bitrates, p.Bitrate) {
		p.Bitrate = DefaultBitrate
		changed = true
	}
	if !slices.Contains(SampleRates, p.SampleRate) {
		p.SampleRate = DefaultSampleRate
		changed = true
	}
	if !ValidPort(p.Port) {
		p.Port = DefaultPort
		changed = true
	}
	if b := ClampTone(p.Bass); b != p.Bass {
		p.Bass = b
		changed = true
	}
	if tr := ClampTone(p.Treble); tr != p.Treble {
		p.Treble = tr
		changed = true
	}
	return changed
}

// Normalize repairs every entry of list in place and returns how many changed.
func Normalize(list []Profile) int {
	seen := make(map[string]bool, len(list))
	n := 0
	for i := range list {
		if repair(&list[i], seen) {
			n++
		}
	}
	return n
}
