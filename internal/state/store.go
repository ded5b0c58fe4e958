// Package state is the single source of truth the UI reads: profiles,
// selection, session lifecycle, settings and the latest telemetry, combined
// into immutable snapshots. All mutation goes through one writer lock; every
// entry point persists and publishes before it returns.
package state

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	logging "github.com/ipfs/go-log/v2"

	"github.com/petervdpas/airwaves/internal/mq"
	"github.com/petervdpas/airwaves/internal/profile"
	"github.com/petervdpas/airwaves/internal/session"
	"github.com/petervdpas/airwaves/internal/storage"
	"github.com/petervdpas/airwaves/internal/util"
)

var log = logging.Logger("state")

const (
	StatsNotConnected = "Not Connected"
	DefaultVolume     = 1.0
	DefaultTheme      = "system"
)

// Settings is the scalar-settings half of persistence. storage.DB satisfies it.
type Settings interface {
	FloatOr(key string, def float64) float64
	SetFloat(key string, v float64) error
	BoolOr(key string, def bool) bool
	SetBool(key string, v bool) error
	StringOr(key, def string) string
	SetString(key, value string) error
}

// Deps are the collaborators the store composes. It owns none of them.
type Deps struct {
	Profiles *profile.Store
	Settings Settings
	Session  *session.Controller
	Bus      *mq.Bus
	// Theme used when none is persisted yet.
	DefaultTheme string
}

// Store serializes every mutation and publishes a fresh Snapshot after each.
type Store struct {
	profiles *profile.Store
	settings Settings
	session  *session.Controller
	bus      *mq.Bus

	mu       sync.Mutex // the single writer
	list     []profile.Profile
	selected string
	volume   float32
	visual   bool
	theme    string
	stats    string
	level    float32
	version  uint64

	cur atomic.Pointer[Snapshot]

	subMu     sync.Mutex
	listeners []chan Snapshot
}

// New loads persisted profiles and settings and returns a ready store.
func New(d Deps) (*Store, error) {
	list, err := d.Profiles.Load()
	if err != nil {
		return nil, err
	}
	sel, err := d.Profiles.LoadSelection(list)
	if err != nil {
		return nil, err
	}
	theme := d.DefaultTheme
	if theme == "" {
		theme = DefaultTheme
	}

	s := &Store{
		profiles: d.Profiles,
		settings: d.Settings,
		session:  d.Session,
		bus:      d.Bus,
		list:     list,
		selected: sel,
		volume:   clampUnit(float32(d.Settings.FloatOr(storage.KeyStreamVolume, DefaultVolume))),
		visual:   d.Settings.BoolOr(storage.KeyVisualizationEnabled, true),
		theme:    d.Settings.StringOr(storage.KeyTheme, theme),
		stats:    StatsNotConnected,
	}
	s.mu.Lock()
	s.commitLocked()
	s.mu.Unlock()
	log.Infof("STATE: loaded %d profile(s), selected %q", len(list), sel)
	return s, nil
}

// Snapshot returns the current consistent view.
func (s *Store) Snapshot() Snapshot {
	return s.cur.Load().clone()
}

// ── Profiles ─────────────────────────────────────────────────────────────────

// SelectProfile makes id the selected profile.
func (s *Store) SelectProfile(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if profile.Index(s.list, id) < 0 {
		return fmt.Errorf("%w: %s", profile.ErrNotFound, id)
	}
	if err := s.profiles.SaveSelection(id); err != nil {
		return err
	}
	s.selected = id
	s.commitLocked()
	return nil
}

// ReplaceProfiles swaps in a whole new list (additions, deletions, reorders,
// edits). Broken entries are repaired, the selection is carried over when its
// profile survives, and a tone change on the live profile reaches the worker.
func (s *Store) ReplaceProfiles(list []profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := slices.Clone(list)
	if n := profile.Normalize(next); n > 0 {
		log.Warnf("STATE: repaired %d profile(s) in replacement list", n)
	}
	if err := s.profiles.Save(next); err != nil {
		return err
	}
	sel := profile.UpsertSelection(next, s.selected)
	if sel != s.selected {
		if err := s.profiles.SaveSelection(sel); err != nil {
			return err
		}
	}

	prev := s.list
	s.list = next
	s.selected = sel
	s.publishToneIfLiveLocked(prev)
	s.commitLocked()
	return nil
}

// AddProfile appends a freshly created profile and returns it.
func (s *Store) AddProfile() (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := profile.New(s.list)
	next := append(slices.Clone(s.list), p)
	if err := s.profiles.Save(next); err != nil {
		return profile.Profile{}, err
	}
	s.list = next
	if s.selected == "" {
		s.selected = profile.UpsertSelection(next, "")
		if err := s.profiles.SaveSelection(s.selected); err != nil {
			return p, err
		}
	}
	s.commitLocked()
	return p, nil
}

// EditProfile commits a textual edit to profile id. The id and list
// position never change.
func (s *Store) EditProfile(id string, e profile.Edit) (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := profile.Find(s.list, id)
	if !ok {
		return profile.Profile{}, fmt.Errorf("%w: %s", profile.ErrNotFound, id)
	}
	p := profile.Apply(old, e)
	if err := s.replaceLocked(p); err != nil {
		return profile.Profile{}, err
	}
	if p.Bass != old.Bass || p.Treble != old.Treble {
		s.publishToneLocked(p)
	}
	s.commitLocked()
	return p, nil
}

// UpdateToneControls sets bass/treble on profile id. A command reaches the
// worker only when id is the profile of the Active session.
func (s *Store) UpdateToneControls(id string, bass, treble float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := profile.Find(s.list, id)
	if !ok {
		return fmt.Errorf("%w: %s", profile.ErrNotFound, id)
	}
	p.Bass = profile.ClampTone(bass)
	p.Treble = profile.ClampTone(treble)
	if err := s.replaceLocked(p); err != nil {
		return err
	}
	s.publishToneLocked(p)
	s.commitLocked()
	return nil
}

func (s *Store) replaceLocked(p profile.Profile) error {
	next, ok := profile.Replace(s.list, p)
	if !ok {
		return fmt.Errorf("%w: %s", profile.ErrNotFound, p.ID)
	}
	if err := s.profiles.Save(next); err != nil {
		return err
	}
	s.list = next
	return nil
}

// publishToneLocked sends p's tone settings when p is the live profile.
func (s *Store) publishToneLocked(p profile.Profile) {
	if s.session.State() != session.Active || s.session.ActiveProfileID() != p.ID {
		return
	}
	if err := s.bus.PublishToneControls(p.Bass, p.Treble); err != nil {
		log.Warnf("STATE: publish tone controls: %v", err)
	}
}

func (s *Store) publishToneIfLiveLocked(prev []profile.Profile) {
	id := s.session.ActiveProfileID()
	if id == "" {
		return
	}
	now, ok := profile.Find(s.list, id)
	if !ok {
		return
	}
	if was, ok := profile.Find(prev, id); ok && was.Bass == now.Bass && was.Treble == now.Treble {
		return
	}
	s.publishToneLocked(now)
}

// ── Settings ─────────────────────────────────────────────────────────────────

// SetVolume persists the stream volume and, during a session, forwards it.
func (s *Store) SetVolume(level float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	level = clampUnit(level)
	if err := s.settings.SetFloat(storage.KeyStreamVolume, float64(level)); err != nil {
		return err
	}
	s.volume = level
	if s.session.State() == session.Active {
		if err := s.bus.PublishSetVolume(level); err != nil {
			log.Warnf("STATE: publish volume: %v", err)
		}
	}
	s.commitLocked()
	return nil
}

// SetVisualizationEnabled toggles level metering. While disabled the level
// reads 0 and incoming level telemetry is ignored.
func (s *Store) SetVisualizationEnabled(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.settings.SetBool(storage.KeyVisualizationEnabled, on); err != nil {
		return err
	}
	s.visual = on
	if !on {
		s.level = 0
	}
	s.commitLocked()
	return nil
}

func (s *Store) SetTheme(theme string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.settings.SetString(storage.KeyTheme, theme); err != nil {
		return err
	}
	s.theme = theme
	s.commitLocked()
	return nil
}

// ── Session ──────────────────────────────────────────────────────────────────

// RequestStart asks for a session on the selected profile. With nothing
// selected the request is rejected and the state stays as it was.
func (s *Store) RequestStart() (session.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sel *profile.Profile
	if p, ok := profile.Find(s.list, s.selected); ok {
		sel = &p
	}
	st, err := s.session.RequestStart(sel)
	s.commitLocked()
	return st, err
}

// ResolveAuthorization delivers the outcome of the external capture
// authorization. When granted, the worker is started with the pending
// profile's current fields and the current volume.
func (s *Store) ResolveAuthorization(ctx context.Context, granted bool, token string) (session.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.commitLocked()

	if !granted {
		return s.session.Deny(), nil
	}
	id := s.session.PendingProfileID()
	if id == "" {
		return s.session.State(), session.ErrNotAwaiting
	}
	p, ok := profile.Find(s.list, id)
	if !ok {
		// Deleted while the authorization prompt was up.
		return s.session.Deny(), session.ErrNoProfile
	}
	st, err := s.session.Authorize(ctx, session.ParamsFor(p, s.volume, token))
	if err != nil {
		s.stats = "Error: " + err.Error()
	}
	return st, err
}

// RequestStop ends the session (or cancels a pending start).
func (s *Store) RequestStop(ctx context.Context) (session.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.commitLocked()

	st, err := s.session.RequestStop(ctx)
	if st == session.Idle {
		s.resetTelemetryLocked()
	}
	return st, err
}

// ConfirmStopped records the worker's teardown confirmation.
func (s *Store) ConfirmStopped() session.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.session.ConfirmStopped()
	if st == session.Idle {
		s.resetTelemetryLocked()
	}
	s.commitLocked()
	return st
}

// ReportWorkerStatus reconciles the session with the worker's own view of
// whether it is running.
func (s *Store) ReportWorkerStatus(st session.Status) session.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.session.State()
	now := s.session.Observe(st)
	if now == session.Idle && before != session.Idle {
		s.workerGoneLocked()
	}
	s.commitLocked()
	return now
}

// Attach queries the worker and resynchronizes before the UI first renders,
// covering a worker that died or kept running while nobody was watching.
func (s *Store) Attach(ctx context.Context) Snapshot {
	s.mu.Lock()
	before := s.session.State()
	now := s.session.Resync(ctx)
	if now == session.Idle && before != session.Idle {
		s.workerGoneLocked()
	}
	s.commitLocked()
	s.mu.Unlock()
	return s.Snapshot()
}

// workerGoneLocked handles a worker found not running without a stop from
// the user. The last stats text stays visible; it may explain the failure.
func (s *Store) workerGoneLocked() {
	s.level = 0
}

func (s *Store) resetTelemetryLocked() {
	s.stats = StatsNotConnected
	s.level = 0
}

// ── Telemetry ────────────────────────────────────────────────────────────────

// Run consumes worker telemetry until ctx is cancelled.
func (s *Store) Run(ctx context.Context) error {
	ch, cancel, err := s.bus.Subscribe(mq.TopicTelemetry)
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return mq.ErrClosed
			}
			s.applyTelemetry(msg)
		}
	}
}

func (s *Store) applyTelemetry(msg mq.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch p := msg.Payload.(type) {
	case mq.Stats:
		if p.Text == s.stats {
			return
		}
		s.stats = p.Text
	case mq.AudioLevel:
		if !s.visual {
			return
		}
		s.level = clampUnit(p.Level)
	default:
		log.Debugf("STATE: ignoring telemetry %s", msg.Type)
		return
	}
	s.commitLocked()
}

// ── Observation ──────────────────────────────────────────────────────────────

// Subscribe returns a channel receiving every new snapshot. Slow readers
// skip intermediate snapshots but always end up holding the latest.
func (s *Store) Subscribe() <-chan Snapshot {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	ch := make(chan Snapshot, 1)
	s.listeners = append(s.listeners, ch)
	return ch
}

func (s *Store) Unsubscribe(ch <-chan Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for i, l := range s.listeners {
		if l == ch {
			close(l)
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// commitLocked publishes the working fields as the next snapshot.
func (s *Store) commitLocked() {
	s.version++
	snap := &Snapshot{
		Version:              s.version,
		SessionState:         s.session.State(),
		ActiveProfileID:      s.session.ActiveProfileID(),
		Stats:                s.stats,
		AudioLevel:           s.level,
		Volume:               s.volume,
		Profiles:             slices.Clone(s.list),
		SelectedID:           s.selected,
		VisualizationEnabled: s.visual,
		Theme:                s.theme,
	}
	if p, ok := profile.Find(s.list, s.selected); ok {
		snap.SelectedProfile = &p
	}
	s.cur.Store(snap)

	s.subMu.Lock()
	for _, ch := range s.listeners {
		// Each listener owns its copy.
		c := snap.clone()
		select {
		case ch <- c:
		default:
			// Replace the stale pending snapshot with this one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- c:
			default:
			}
		}
	}
	s.subMu.Unlock()
}

func clampUnit(v float32) float32 {
	if v != v {
		return 0
	}
	return util.Clamp32(v, 0, 1)
}
