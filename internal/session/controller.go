package session

import (
	"context"
	"fmt"
	"sync"

	logging "github.com/ipfs/go-log/v2"

	"github.com/petervdpas/airwaves/internal/profile"
)

var log = logging.Logger("session")

// Controller owns the session state machine:
//
//	Idle --start(profile)--> AwaitingAuthorization
//	AwaitingAuthorization --denied--> Idle
//	AwaitingAuthorization --granted--> Active        (worker.Start)
//	Active --stop--> Stopping --teardown confirmed--> Idle
//	Active|Stopping --worker reports not running--> Idle
//	Idle --worker reports running--> Active          (re-attach)
type Controller struct {
	worker Worker

	mu       sync.Mutex
	state    State
	pending  string // profile id captured at RequestStart
	activeID string
}

// NewController returns an Idle controller driving w.
func NewController(w Worker) *Controller {
	return &Controller{worker: w, state: Idle}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActiveProfileID returns the profile the running session was started with,
// or "" when no session is active.
func (c *Controller) ActiveProfileID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Active && c.state != Stopping {
		return ""
	}
	return c.activeID
}

// PendingProfileID returns the profile captured by RequestStart while
// authorization is outstanding.
func (c *Controller) PendingProfileID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != AwaitingAuthorization {
		return ""
	}
	return c.pending
}

// RequestStart asks for a session on p. Without a profile the request is
// rejected and the state is unchanged. Anything but Idle is a no-op.
func (c *Controller) RequestStart(p *profile.Profile) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p == nil {
		log.Warnf("SESSION: start rejected, no profile selected")
		return c.state, ErrNoProfile
	}
	if c.state != Idle {
		return c.state, nil
	}
	c.pending = p.ID
	c.setLocked(AwaitingAuthorization)
	return c.state, nil
}

// Authorize completes a pending start: the worker is started with params and
// the session becomes Active. A worker that fails to start leaves the
// session Idle.
func (c *Controller) Authorize(ctx context.Context, params StartParams) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != AwaitingAuthorization {
		return c.state, ErrNotAwaiting
	}
	if err := c.worker.Start(ctx, params); err != nil {
		c.pending = ""
		c.setLocked(Idle)
		return c.state, fmt.Errorf("start worker: %w", err)
	}
	c.activeID = params.ProfileID
	c.pending = ""
	c.setLocked(Active)
	return c.state, nil
}

// Deny handles a denied or cancelled authorization.
func (c *Controller) Deny() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == AwaitingAuthorization {
		c.pending = ""
		c.setLocked(Idle)
	}
	return c.state
}

// RequestStop tears down an Active session. When the worker confirms the
// teardown synchronously the session goes straight to Idle; otherwise it
// stays Stopping until ConfirmStopped or a resync.
// A stop while awaiting authorization cancels the pending start.
func (c *Controller) RequestStop(ctx context.Context) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == AwaitingAuthorization {
		c.pending = ""
		c.setLocked(Idle)
		return c.state, nil
	}
	if c.state != Active {
		return c.state, nil
	}

	c.setLocked(Stopping)
	if err := c.worker.Stop(ctx); err != nil {
		return c.state, fmt.Errorf("stop worker: %w", err)
	}
	if !c.worker.Status(ctx).Running {
		c.activeID = ""
		c.setLocked(Idle)
	}
	return c.state, nil
}

// ConfirmStopped records the worker's teardown confirmation.
func (c *Controller) ConfirmStopped() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Stopping {
		c.activeID = ""
		c.setLocked(Idle)
	}
	return c.state
}

// Resync queries the worker and reconciles the state with its answer.
func (c *Controller) Resync(ctx context.Context) State {
	return c.Observe(c.worker.Status(ctx))
}

// Observe reconciles the state with a worker status obtained elsewhere
// (a liveness-flag change, a status report).
func (c *Controller) Observe(st Status) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Active, Stopping:
		if !st.Running {
			log.Infof("SESSION: worker no longer running, resynchronizing to idle")
			c.activeID = ""
			c.setLocked(Idle)
		}
	case Idle:
		if st.Running {
			log.Infof("SESSION: worker already running (profile %s), re-attaching", st.ProfileID)
			c.activeID = st.ProfileID
			c.setLocked(Active)
		}
	}
	return c.state
}

func (c *Controller) setLocked(s State) {
	if c.state == s {
		return
	}
	log.Infof("SESSION: %s -> %s", c.state, s)
	c.state = s
}
