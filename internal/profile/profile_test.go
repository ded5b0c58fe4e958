package profile

import "testing"

func TestNewProfileDefaults(t *testing.T) {
	existing := sampleList()
	p := New(existing)
	if p.ID == "" || Index(existing, p.ID) >= 0 {
		t.Fatalf("expected fresh id, got %q", p.ID)
	}
	if p.Name != "New Profile 3" {
		t.Fatalf("unexpected name %q", p.Name)
	}
	if p.Port != DefaultPort || p.Bitrate != DefaultBitrate || p.SampleRate != DefaultSampleRate || p.ChannelConfig != Stereo {
		t.Fatalf("unexpected defaults %+v", p)
	}
}

func TestApplyKeepsIDAndPosition(t *testing.T) {
	list := sampleList()
	name := "Den"
	port := "7000"
	bass := float32(20)
	ch := Mono

	edited := Apply(list[0], Edit{Name: &name, Port: &port, Bass: &bass, ChannelConfig: &ch})
	if edited.ID != "1" {
		t.Fatalf("id changed to %q", edited.ID)
	}
	if edited.Name != "Den" || edited.Port != 7000 || edited.Bass != MaxTone || edited.ChannelConfig != Mono {
		t.Fatalf("edit not applied: %+v", edited)
	}

	out, ok := Replace(list, edited)
	if !ok {
		t.Fatal("replace reported missing id")
	}
	if out[0] != edited || out[1] != list[1] {
		t.Fatalf("edited record not at original position: %+v", out)
	}
	if list[0].Name != "Living room" {
		t.Fatal("Replace mutated its input")
	}
}

func TestApplyRejectsInvalidValues(t *testing.T) {
	p := sampleList()[0]
	port := "80a"
	bitrate := 100
	rate := 8000
	ch := ChannelConfig("Surround")

	got := Apply(p, Edit{Port: &port, Bitrate: &bitrate, SampleRate: &rate, ChannelConfig: &ch})
	if got.Port != p.Port || got.Bitrate != p.Bitrate || got.SampleRate != p.SampleRate || got.ChannelConfig != p.ChannelConfig {
		t.Fatalf("invalid edit leaked into profile: %+v", got)
	}
}

func TestParsePort(t *testing.T) {
	cases := []struct {
		text     string
		lastGood int
		want     int
	}{
		{"9000", 8888, 9000},
		{" 9001 ", 8888, 9001},
		{"", 9002, 9002},
		{"abc", 9003, 9003},
		{"70000", 9004, 9004},
		{"abc", 0, DefaultPort},
	}
	for _, c := range cases {
		if got := ParsePort(c.text, c.lastGood); got != c.want {
			t.Fatalf("ParsePort(%q, %d) = %d, want %d", c.text, c.lastGood, got, c.want)
		}
	}
}

func TestRemove(t *testing.T) {
	list := sampleList()
	out := Remove(list, "1")
	if len(out) != 1 || out[0].ID != "2" {
		t.Fatalf("unexpected result %+v", out)
	}
	if len(list) != 2 {
		t.Fatal("Remove mutated its input")
	}
}
