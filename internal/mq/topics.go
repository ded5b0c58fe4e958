package mq

import (
	"encoding/json"
	"fmt"
)

// Topic names one direction of the channel. There are exactly two.
type Topic string

const (
	// TopicCommand carries directives from the state store to the worker.
	TopicCommand Topic = "command"
	// TopicTelemetry carries status and metering from the worker to the store.
	TopicTelemetry Topic = "telemetry"
)

func (t Topic) Valid() bool {
	return t == TopicCommand || t == TopicTelemetry
}

// Message type names (the "type" field on the wire).
const (
	TypeSetVolume          = "set_volume"
	TypeUpdateToneControls = "update_tone_controls"
	TypeStats              = "stats"
	TypeAudioLevel         = "audio_level"
)

// Payload is implemented by every message body. Each body belongs to exactly
// one topic.
type Payload interface {
	MsgType() string
	Topic() Topic
}

// ── command topic ────────────────────────────────────────────────────────────

// SetVolume sets the stream volume, level in [0,1].
type SetVolume struct {
	Level float32 `json:"level"`
}

func (SetVolume) MsgType() string { return TypeSetVolume }
func (SetVolume) Topic() Topic    { return TopicCommand }

// UpdateToneControls replaces the live bass/treble offsets (dB).
type UpdateToneControls struct {
	Bass   float32 `json:"bass"`
	Treble float32 `json:"treble"`
}

func (UpdateToneControls) MsgType() string { return TypeUpdateToneControls }
func (UpdateToneControls) Topic() Topic    { return TopicCommand }

// ── telemetry topic ──────────────────────────────────────────────────────────

// Stats is free-form connection status text, e.g. "Connected\n128 kbps".
type Stats struct {
	Text string `json:"text"`
}

func (Stats) MsgType() string { return TypeStats }
func (Stats) Topic() Topic    { return TopicTelemetry }

// AudioLevel is the normalized signal level in [0,1].
type AudioLevel struct {
	Level float32 `json:"level"`
}

func (AudioLevel) MsgType() string { return TypeAudioLevel }
func (AudioLevel) Topic() Topic    { return TopicTelemetry }

func decodePayload(typ string, raw json.RawMessage) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch typ {
	case TypeSetVolume:
		var v SetVolume
		err = json.Unmarshal(raw, &v)
		p = v
	case TypeUpdateToneControls:
		var v UpdateToneControls
		err = json.Unmarshal(raw, &v)
		p = v
	case TypeStats:
		var v Stats
		err = json.Unmarshal(raw, &v)
		p = v
	case TypeAudioLevel:
		var v AudioLevel
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, fmt.Errorf("mq: unknown message type %q", typ)
	}
	if err != nil {
		return nil, fmt.Errorf("mq: decode %s: %w", typ, err)
	}
	return p, nil
}

// ── Typed publish helpers ─────────────────────────────────────────────────────

func (b *Bus) PublishSetVolume(level float32) error {
	return b.Publish(TopicCommand, SetVolume{Level: level})
}

func (b *Bus) PublishToneControls(bass, treble float32) error {
	return b.Publish(TopicCommand, UpdateToneControls{Bass: bass, Treble: treble})
}

func (b *Bus) PublishStats(text string) error {
	return b.Publish(TopicTelemetry, Stats{Text: text})
}

func (b *Bus) PublishAudioLevel(level float32) error {
	return b.Publish(TopicTelemetry, AudioLevel{Level: level})
}
