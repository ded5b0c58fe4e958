package dsp

import (
	"math"
	"sync"
)

// ToneChain applies volume and bass/treble shelving to interleaved PCM.
// Settings may be changed from another goroutine while Apply runs.
type ToneChain struct {
	mu       sync.Mutex
	channels int
	gain     float64
	bass     []*Biquad
	treble   []*Biquad
}

func NewToneChain(sampleRate, channels int) *ToneChain {
	if channels < 1 {
		channels = 1
	}
	c := &ToneChain{channels: channels, gain: 1}
	for i := 0; i < channels; i++ {
		c.bass = append(c.bass, NewBiquad(sampleRate))
		c.treble = append(c.treble, NewBiquad(sampleRate))
	}
	return c
}

// SetVolume sets the slider position in [0,1].
func (c *ToneChain) SetVolume(level float32) {
	c.mu.Lock()
	c.gain = VolumeGain(level)
	c.mu.Unlock()
}

// SetTone sets the shelf gains in dB.
func (c *ToneChain) SetTone(bassDB, trebleDB float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < c.channels; i++ {
		c.bass[i].SetLowShelf(float64(bassDB), BassCornerHz)
		c.treble[i].SetHighShelf(float64(trebleDB), TrebleCornerHz)
	}
}

// Apply processes buf in place.
func (c *ToneChain) Apply(buf []int16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range buf {
		ch := i % c.channels
		x := float64(s) / 32768
		x = c.bass[ch].Process(x)
		x = c.treble[ch].Process(x)
		x *= c.gain
		x = math.Max(-1, math.Min(1, x))
		buf[i] = int16(x * 32767)
	}
}
