package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/petervdpas/airwaves/internal/profile"
)

type fakeWorker struct {
	mu        sync.Mutex
	running   bool
	profileID string
	started   []StartParams
	stops     int
	startErr  error
	lingering bool // Stop returns but Status keeps reporting running
}

func (w *fakeWorker) Start(_ context.Context, p StartParams) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.startErr != nil {
		return w.startErr
	}
	w.started = append(w.started, p)
	w.running = true
	w.profileID = p.ProfileID
	return nil
}

func (w *fakeWorker) Stop(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stops++
	if !w.lingering {
		w.running = false
	}
	return nil
}

func (w *fakeWorker) Status(context.Context) Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Status{Running: w.running, ProfileID: w.profileID}
}

func (w *fakeWorker) setRunning(r bool) {
	w.mu.Lock()
	w.running = r
	w.mu.Unlock()
}

var testProfile = profile.Profile{
	ID: "p1", Name: "Desk", Address: "10.1.1.1", Port: 9000,
	Bitrate: 192000, SampleRate: 48000, ChannelConfig: profile.Mono, Bass: 2, Treble: -1,
}

func TestStartRejectedWithoutProfile(t *testing.T) {
	c := NewController(&fakeWorker{})
	st, err := c.RequestStart(nil)
	if !errors.Is(err, ErrNoProfile) {
		t.Fatalf("expected ErrNoProfile, got %v", err)
	}
	if st != Idle || c.State() != Idle {
		t.Fatalf("expected Idle, got %s", c.State())
	}
}

func TestFullLifecycle(t *testing.T) {
	w := &fakeWorker{}
	c := NewController(w)
	ctx := context.Background()

	p := testProfile
	if st, err := c.RequestStart(&p); err != nil || st != AwaitingAuthorization {
		t.Fatalf("RequestStart: %s %v", st, err)
	}
	if c.PendingProfileID() != "p1" {
		t.Fatalf("pending profile = %q", c.PendingProfileID())
	}

	// Starting again while awaiting is a no-op.
	if st, err := c.RequestStart(&p); err != nil || st != AwaitingAuthorization {
		t.Fatalf("second RequestStart: %s %v", st, err)
	}

	params := ParamsFor(p, 0.8, "grant-token")
	if st, err := c.Authorize(ctx, params); err != nil || st != Active {
		t.Fatalf("Authorize: %s %v", st, err)
	}
	if len(w.started) != 1 {
		t.Fatalf("expected one worker start, got %d", len(w.started))
	}
	got := w.started[0]
	if got.Address != "10.1.1.1" || got.Port != 9000 || got.Bitrate != 192000 || got.SampleRate != 48000 ||
		got.ChannelConfig != profile.Mono || got.Bass != 2 || got.Treble != -1 ||
		got.InitialVolume != 0.8 || got.AuthorizationToken != "grant-token" {
		t.Fatalf("unexpected start params %+v", got)
	}
	if c.ActiveProfileID() != "p1" {
		t.Fatalf("active profile = %q", c.ActiveProfileID())
	}

	// Starting while active is a no-op.
	if st, _ := c.RequestStart(&p); st != Active || len(w.started) != 1 {
		t.Fatalf("start while active changed things: %s, %d starts", st, len(w.started))
	}

	if st, err := c.RequestStop(ctx); err != nil || st != Idle {
		t.Fatalf("RequestStop: %s %v", st, err)
	}
	if w.stops != 1 || c.ActiveProfileID() != "" {
		t.Fatalf("stop not applied: stops=%d active=%q", w.stops, c.ActiveProfileID())
	}
}

func TestDenyReturnsToIdle(t *testing.T) {
	w := &fakeWorker{}
	c := NewController(w)
	p := testProfile
	c.RequestStart(&p)

	if st := c.Deny(); st != Idle {
		t.Fatalf("expected Idle after deny, got %s", st)
	}
	if len(w.started) != 0 {
		t.Fatal("worker started despite denial")
	}
	if _, err := c.Authorize(context.Background(), ParamsFor(p, 1, "")); !errors.Is(err, ErrNotAwaiting) {
		t.Fatalf("expected ErrNotAwaiting, got %v", err)
	}
}

func TestWorkerStartFailure(t *testing.T) {
	w := &fakeWorker{startErr: errors.New("no route")}
	c := NewController(w)
	p := testProfile
	c.RequestStart(&p)

	st, err := c.Authorize(context.Background(), ParamsFor(p, 1, "t"))
	if err == nil || st != Idle {
		t.Fatalf("expected Idle with error, got %s %v", st, err)
	}
}

func TestStoppingUntilConfirmed(t *testing.T) {
	w := &fakeWorker{lingering: true}
	c := NewController(w)
	ctx := context.Background()
	p := testProfile
	c.RequestStart(&p)
	c.Authorize(ctx, ParamsFor(p, 1, "t"))

	if st, err := c.RequestStop(ctx); err != nil || st != Stopping {
		t.Fatalf("expected Stopping, got %s %v", st, err)
	}
	if st := c.ConfirmStopped(); st != Idle {
		t.Fatalf("expected Idle after confirmation, got %s", st)
	}
}

func TestResyncAfterWorkerDeath(t *testing.T) {
	w := &fakeWorker{}
	c := NewController(w)
	ctx := context.Background()
	p := testProfile
	c.RequestStart(&p)
	c.Authorize(ctx, ParamsFor(p, 1, "t"))

	w.setRunning(false)
	if st := c.Resync(ctx); st != Idle {
		t.Fatalf("expected Idle after resync, got %s", st)
	}
	if c.ActiveProfileID() != "" {
		t.Fatal("active profile not cleared")
	}
}

func TestResyncReattachesRunningWorker(t *testing.T) {
	w := &fakeWorker{running: true, profileID: "p9"}
	c := NewController(w)

	if st := c.Resync(context.Background()); st != Active {
		t.Fatalf("expected Active after re-attach, got %s", st)
	}
	if c.ActiveProfileID() != "p9" {
		t.Fatalf("active profile = %q", c.ActiveProfileID())
	}
}

func TestObserveLeavesAwaitingAlone(t *testing.T) {
	c := NewController(&fakeWorker{})
	p := testProfile
	c.RequestStart(&p)
	if st := c.Observe(Status{Running: false}); st != AwaitingAuthorization {
		t.Fatalf("expected AwaitingAuthorization, got %s", st)
	}
}

func TestRequestStopOutsideActive(t *testing.T) {
	w := &fakeWorker{}
	c := NewController(w)
	ctx := context.Background()

	if st, err := c.RequestStop(ctx); err != nil || st != Idle {
		t.Fatalf("stop while idle: %s %v", st, err)
	}
	p := testProfile
	c.RequestStart(&p)
	if st, err := c.RequestStop(ctx); err != nil || st != Idle {
		t.Fatalf("stop while awaiting: %s %v", st, err)
	}
	if c.PendingProfileID() != "" {
		t.Error("pending start not cleared")
	}
	if w.stops != 0 {
		t.Errorf("worker stopped %d time(s) outside a session", w.stops)
	}
}
