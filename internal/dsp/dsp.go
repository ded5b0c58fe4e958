// Package dsp holds the small amount of signal processing the worker applies
// to 16-bit PCM before it is sent: volume scaling, two shelving tone filters
// and an RMS level meter.
package dsp

import "math"

const (
	BassCornerHz   = 200
	TrebleCornerHz = 3000
	shelfQ         = 0.707
)

// Biquad is a direct-form-I second order IIR section with normalized
// coefficients. One Biquad filters one channel.
type Biquad struct {
	sampleRate float64
	b0, b1, b2 float64
	a1, a2     float64
	x1, x2     float64
	y1, y2     float64
}

// NewBiquad returns a pass-through filter for the given sample rate.
func NewBiquad(sampleRate int) *Biquad {
	return &Biquad{sampleRate: float64(sampleRate), b0: 1}
}

// SetLowShelf configures an RBJ low shelf boosting or cutting below freq by gainDB.
func (f *Biquad) SetLowShelf(gainDB, freq float64) {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / f.sampleRate
	cos := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * shelfQ)
	sq := 2 * math.Sqrt(a) * alpha

	a0 := (a + 1) + (a-1)*cos + sq
	f.set(
		a*((a+1)-(a-1)*cos+sq),
		2*a*((a-1)-(a+1)*cos),
		a*((a+1)-(a-1)*cos-sq),
		a0,
		-2*((a-1)+(a+1)*cos),
		(a+1)+(a-1)*cos-sq,
	)
}

// SetHighShelf configures an RBJ high shelf boosting or cutting above freq by gainDB.
func (f *Biquad) SetHighShelf(gainDB, freq float64) {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / f.sampleRate
	cos := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * shelfQ)
	sq := 2 * math.Sqrt(a) * alpha

	a0 := (a + 1) - (a-1)*cos + sq
	f.set(
		a*((a+1)+(a-1)*cos+sq),
		-2*a*((a-1)+(a+1)*cos),
		a*((a+1)+(a-1)*cos-sq),
		a0,
		2*((a-1)-(a+1)*cos),
		(a+1)-(a-1)*cos-sq,
	)
}

func (f *Biquad) set(b0, b1, b2, a0, a1, a2 float64) {
	f.b0, f.b1, f.b2 = b0/a0, b1/a0, b2/a0
	f.a1, f.a2 = a1/a0, a2/a0
}

// Process filters one sample.
func (f *Biquad) Process(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// Reset clears the filter history.
func (f *Biquad) Reset() {
	f.x1, f.x2, f.y1, f.y2 = 0, 0, 0, 0
}

// VolumeGain maps a linear slider position in [0,1] to an amplitude factor.
// The cube gives a roughly perceptual taper.
func VolumeGain(level float32) float64 {
	v := float64(level)
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v * v * v
}

// Level returns the RMS of samples normalized to [0,1].
func Level(samples []int16) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	rms := math.Sqrt(sum / float64(len(samples))) / 32767
	if rms > 1 {
		rms = 1
	}
	return float32(rms)
}
