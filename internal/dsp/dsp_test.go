package dsp

import (
	"math"
	"testing"
)

func sine(freq float64, rate, n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

// steadyGain runs a sine through f and returns output/input peak ratio after
// the transient has settled.
func steadyGain(f *Biquad, freq float64, rate int) float64 {
	in := sine(freq, rate, rate, 0.5)
	var peakIn, peakOut float64
	for i, x := range in {
		y := f.Process(x)
		if i > rate/2 {
			peakIn = math.Max(peakIn, math.Abs(x))
			peakOut = math.Max(peakOut, math.Abs(y))
		}
	}
	return peakOut / peakIn
}

func db(ratio float64) float64 { return 20 * math.Log10(ratio) }

func TestZeroGainShelvesAreTransparent(t *testing.T) {
	for _, setup := range []func(*Biquad){
		func(f *Biquad) { f.SetLowShelf(0, BassCornerHz) },
		func(f *Biquad) { f.SetHighShelf(0, TrebleCornerHz) },
	} {
		f := NewBiquad(44100)
		setup(f)
		for _, x := range []float64{0.5, -0.25, 0.1, 0} {
			if y := f.Process(x); math.Abs(y-x) > 1e-9 {
				t.Fatalf("Process(%v) = %v", x, y)
			}
		}
	}
}

func TestLowShelfBoostsBass(t *testing.T) {
	f := NewBiquad(44100)
	f.SetLowShelf(12, BassCornerHz)
	if g := db(steadyGain(f, 50, 44100)); math.Abs(g-12) > 1 {
		t.Errorf("gain at 50 Hz = %.2f dB, want ~12", g)
	}
	f.Reset()
	if g := db(steadyGain(f, 10000, 44100)); math.Abs(g) > 1 {
		t.Errorf("gain at 10 kHz = %.2f dB, want ~0", g)
	}
}

func TestHighShelfCutsTreble(t *testing.T) {
	f := NewBiquad(48000)
	f.SetHighShelf(-12, TrebleCornerHz)
	if g := db(steadyGain(f, 15000, 48000)); math.Abs(g+12) > 1 {
		t.Errorf("gain at 15 kHz = %.2f dB, want ~-12", g)
	}
	f.Reset()
	if g := db(steadyGain(f, 100, 48000)); math.Abs(g) > 1 {
		t.Errorf("gain at 100 Hz = %.2f dB, want ~0", g)
	}
}

func TestVolumeGain(t *testing.T) {
	cases := map[float32]float64{0: 0, 0.5: 0.125, 1: 1, -1: 0, 2: 1}
	for in, want := range cases {
		if got := VolumeGain(in); math.Abs(got-want) > 1e-9 {
			t.Errorf("VolumeGain(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestLevel(t *testing.T) {
	if Level(nil) != 0 {
		t.Error("empty level should be 0")
	}
	full := []int16{32767, -32767, 32767, -32767}
	if l := Level(full); math.Abs(float64(l)-1) > 1e-6 {
		t.Errorf("full-scale level = %v", l)
	}
	if l := Level(make([]int16, 16)); l != 0 {
		t.Errorf("silence level = %v", l)
	}
}

func TestToneChainVolume(t *testing.T) {
	c := NewToneChain(44100, 2)
	c.SetTone(0, 0)
	c.SetVolume(0)
	buf := []int16{1000, -1000, 2000, -2000}
	c.Apply(buf)
	for i, s := range buf {
		if s != 0 {
			t.Errorf("buf[%d] = %d at zero volume", i, s)
		}
	}

	c.SetVolume(1)
	buf = []int16{16384, -16384}
	c.Apply(buf)
	if buf[0] < 16300 || buf[0] > 16400 || buf[1] > -16300 || buf[1] < -16400 {
		t.Errorf("unity volume changed samples: %v", buf)
	}
}
