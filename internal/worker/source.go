package worker

import "math"

// Source produces interleaved 16-bit PCM. Read fills buf completely.
type Source interface {
	Read(buf []int16)
}

// SourceFactory builds a Source for one run.
type SourceFactory func(sampleRate, channels int) Source

// ToneSource is a sine test signal, the same on every channel.
type ToneSource struct {
	channels int
	step     float64
	phase    float64
	amp      float64
}

// NewToneSource returns a 440 Hz tone at half scale.
func NewToneSource(sampleRate, channels int) Source {
	return &ToneSource{
		channels: max(channels, 1),
		step:     2 * math.Pi * 440 / float64(sampleRate),
		amp:      0.5 * 32767,
	}
}

func (s *ToneSource) Read(buf []int16) {
	for i := 0; i+s.channels <= len(buf); i += s.channels {
		v := int16(s.amp * math.Sin(s.phase))
		for c := 0; c < s.channels; c++ {
			buf[i+c] = v
		}
		s.phase += s.step
		if s.phase > 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
	}
}
