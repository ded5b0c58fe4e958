package profile

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/petervdpas/airwaves/internal/storage"
)

type memKV struct {
	mu     sync.Mutex
	values map[string]string
	writes int
	fail   error
}

func newMemKV() *memKV { return &memKV{values: map[string]string{}} }

func (m *memKV) GetString(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memKV) SetString(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.values[key] = value
	m.writes++
	return nil
}

func sampleList() []Profile {
	return []Profile{
		{ID: "1", Name: "Living room", Address: "10.0.0.2", Port: 9000, Bitrate: 192000, SampleRate: 48000, ChannelConfig: Stereo, Bass: 3.5, Treble: -2},
		{ID: "2", Name: "Kitchen", Address: "10.0.0.3", Port: 9001, Bitrate: 96000, SampleRate: 22050, ChannelConfig: Mono},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "airwaves.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	s := NewStore(db)
	want := sampleList()
	if err := s.Save(want); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d profiles, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("profile %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestLoadAbsentCreatesDefault(t *testing.T) {
	kv := newMemKV()
	s := NewStore(kv)

	list, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	assertSingleDefault(t, list)
	if kv.writes != 1 {
		t.Fatalf("expected default to be persisted once, got %d writes", kv.writes)
	}
}

func TestLoadCorruptRepairs(t *testing.T) {
	kv := newMemKV()
	kv.values[KeyProfiles] = "{not json"
	s := NewStore(kv)

	first, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	assertSingleDefault(t, first)

	second, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 1 || second[0] != first[0] {
		t.Fatalf("expected repaired profile to be stable, got %+v then %+v", first, second)
	}
}

func TestLoadEmptyListCreatesDefault(t *testing.T) {
	kv := newMemKV()
	kv.values[KeyProfiles] = "[]"
	list, err := NewStore(kv).Load()
	if err != nil {
		t.Fatal(err)
	}
	assertSingleDefault(t, list)
}

func TestLoadToleratesOldRecords(t *testing.T) {
	kv := newMemKV()
	// Records written before tone controls existed, plus one with junk values.
	kv.values[KeyProfiles] = `[
		{"id":"a","name":"Old","ipAddress":"10.0.0.9","port":8888,"bitrate":128000,"sampleRate":44100,"channelConfig":"Mono","future":"ignored"},
		{"id":"a","name":"Dup","ipAddress":"10.0.0.8","port":0,"bitrate":7,"sampleRate":1,"channelConfig":"Quad","bass":40,"treble":-99}
	]`
	s := NewStore(kv)

	list, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(list))
	}
	old := list[0]
	if old.ID != "a" || old.Bass != 0 || old.Treble != 0 || old.ChannelConfig != Mono {
		t.Fatalf("old record not preserved: %+v", old)
	}
	dup := list[1]
	if dup.ID == "a" || dup.ID == "" {
		t.Fatalf("duplicate id not regenerated: %q", dup.ID)
	}
	if dup.Port != DefaultPort || dup.Bitrate != DefaultBitrate || dup.SampleRate != DefaultSampleRate || dup.ChannelConfig != DefaultChannels {
		t.Fatalf("junk fields not defaulted: %+v", dup)
	}
	if dup.Bass != MaxTone || dup.Treble != MinTone {
		t.Fatalf("tone not clamped: %+v", dup)
	}

	// The repair was persisted.
	var stored []Profile
	if err := json.Unmarshal([]byte(kv.values[KeyProfiles]), &stored); err != nil {
		t.Fatal(err)
	}
	if stored[1].ID != dup.ID {
		t.Fatalf("repaired list not persisted")
	}
}

func TestSaveError(t *testing.T) {
	kv := newMemKV()
	kv.fail = errors.New("disk full")
	if err := NewStore(kv).Save(sampleList()); err == nil {
		t.Fatal("expected save error")
	}
}

func TestUpsertSelection(t *testing.T) {
	a := Profile{ID: "1"}
	b := Profile{ID: "2"}

	if got := UpsertSelection([]Profile{a, b}, "1"); got != "1" {
		t.Fatalf("kept selection: got %q", got)
	}
	if got := UpsertSelection([]Profile{b}, "1"); got != "2" {
		t.Fatalf("deleted selection: got %q, want 2", got)
	}
	if got := UpsertSelection(nil, "1"); got != "" {
		t.Fatalf("empty list: got %q, want none", got)
	}
	if got := UpsertSelection([]Profile{a, b}, ""); got != "1" {
		t.Fatalf("no previous: got %q, want 1", got)
	}
}

func TestLoadSelection(t *testing.T) {
	kv := newMemKV()
	s := NewStore(kv)
	list := sampleList()

	if err := s.SaveSelection("2"); err != nil {
		t.Fatal(err)
	}
	sel, err := s.LoadSelection(list)
	if err != nil || sel != "2" {
		t.Fatalf("expected 2, got %q (%v)", sel, err)
	}

	if err := s.SaveSelection("gone"); err != nil {
		t.Fatal(err)
	}
	sel, err = s.LoadSelection(list)
	if err != nil || sel != "1" {
		t.Fatalf("expected fallback to 1, got %q (%v)", sel, err)
	}
	if kv.values[KeySelected] != "1" {
		t.Fatalf("fallback selection not persisted: %q", kv.values[KeySelected])
	}
}

func assertSingleDefault(t *testing.T, list []Profile) {
	t.Helper()
	if len(list) != 1 {
		t.Fatalf("expected exactly one profile, got %d", len(list))
	}
	p := list[0]
	if p.ID == "" {
		t.Fatal("default profile has no id")
	}
	if p.Name != DefaultName || p.Address != DefaultAddress || p.Port != DefaultPort ||
		p.Bitrate != DefaultBitrate || p.SampleRate != DefaultSampleRate ||
		p.ChannelConfig != DefaultChannels || p.Bass != 0 || p.Treble != 0 {
		t.Fatalf("unexpected default profile %+v", p)
	}
}
