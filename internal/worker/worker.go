// Package worker is the background capture/streaming worker. It runs
// independently of the UI state: it is started and stopped through the
// session.Worker surface, takes live commands from the message bus, reports
// telemetry back on it, and advertises its liveness through a run-flag file.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/petervdpas/airwaves/internal/dsp"
	"github.com/petervdpas/airwaves/internal/mq"
	"github.com/petervdpas/airwaves/internal/profile"
	"github.com/petervdpas/airwaves/internal/session"
)

var log = logging.Logger("worker")

const (
	frameDuration = 20 * time.Millisecond

	defaultLevelInterval = 100 * time.Millisecond
	defaultStatsInterval = time.Second
	defaultDialTimeout   = 5 * time.Second
)

var (
	ErrRunning       = errors.New("worker: already running")
	ErrInvalidParams = errors.New("worker: invalid start parameters")
)

type Options struct {
	Bus *mq.Bus
	// RunFlag is the liveness file path; empty disables it.
	RunFlag       string
	LevelInterval time.Duration
	StatsInterval time.Duration
	DialTimeout   time.Duration
	// NewSource defaults to NewToneSource.
	NewSource SourceFactory
}

// Worker runs at most one streaming session at a time.
type Worker struct {
	opts    Options
	running atomic.Bool

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	profileID string
}

func New(opts Options) *Worker {
	if opts.LevelInterval <= 0 {
		opts.LevelInterval = defaultLevelInterval
	}
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = defaultStatsInterval
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.NewSource == nil {
		opts.NewSource = NewToneSource
	}
	return &Worker{opts: opts}
}

func validate(p session.StartParams) error {
	switch {
	case p.Address == "":
		return fmt.Errorf("%w: empty address", ErrInvalidParams)
	case !profile.ValidPort(p.Port):
		return fmt.Errorf("%w: port %d", ErrInvalidParams, p.Port)
	case !slices.Contains(profile.SampleRates, p.SampleRate):
		return fmt.Errorf("%w: sample rate %d", ErrInvalidParams, p.SampleRate)
	case !p.ChannelConfig.Valid():
		return fmt.Errorf("%w: channel config %q", ErrInvalidParams, p.ChannelConfig)
	}
	return nil
}

// Start begins a run with p. The run continues until Stop or until the
// connection fails; it does not depend on ctx.
func (w *Worker) Start(_ context.Context, p session.StartParams) error {
	if err := validate(p); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running.Load() {
		return ErrRunning
	}

	chain := dsp.NewToneChain(p.SampleRate, p.ChannelConfig.Channels())
	chain.SetVolume(p.InitialVolume)
	chain.SetTone(p.Bass, p.Treble)

	// Subscribe before the run starts so no early command is missed.
	cmds, unsubscribe, err := w.opts.Bus.Subscribe(mq.TopicCommand)
	if err != nil {
		return err
	}
	if err := writeRunFlag(w.opts.RunFlag, RunFlag{PID: os.Getpid(), ProfileID: p.ProfileID, StartedAt: time.Now()}); err != nil {
		unsubscribe()
		return fmt.Errorf("write run flag: %w", err)
	}

	if w.cancel != nil {
		// Release the previous run, which ended on its own.
		w.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.profileID = p.ProfileID
	w.running.Store(true)

	log.Infof("WORKER: starting stream to %s:%d (%d Hz, %s, profile %s)",
		p.Address, p.Port, p.SampleRate, p.ChannelConfig, p.ProfileID)
	go w.run(ctx, p, chain, cmds, unsubscribe, w.done)
	return nil
}

// Stop ends the current run and waits for its teardown (or ctx).
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	select {
	case <-w.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	w.cancel = nil
	return nil
}

// Status is the worker's own answer to "are you running".
func (w *Worker) Status(context.Context) session.Status {
	if !w.running.Load() {
		return session.Status{}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return session.Status{Running: true, ProfileID: w.profileID}
}

func (w *Worker) run(ctx context.Context, p session.StartParams, chain *dsp.ToneChain,
	cmds <-chan mq.Msg, unsubscribe func(), done chan struct{}) {

	bus := w.opts.Bus
	var failed bool
	defer func() {
		unsubscribe()
		removeRunFlag(w.opts.RunFlag)
		w.running.Store(false)
		// A failed run leaves its "Error: ..." text as the last word.
		if !failed {
			publish(bus.PublishStats("Not Connected"))
		}
		log.Infof("WORKER: stream stopped")
		close(done)
	}()

	d := net.Dialer{Timeout: w.opts.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(p.Address, strconv.Itoa(p.Port)))
	if err != nil {
		if ctx.Err() == nil {
			failed = true
			log.Warnf("WORKER: connect %s:%d: %v", p.Address, p.Port, err)
			publish(bus.PublishStats("Error: " + err.Error()))
		}
		return
	}
	defer conn.Close()
	publish(bus.PublishStats("Connected"))

	channels := p.ChannelConfig.Channels()
	src := w.opts.NewSource(p.SampleRate, channels)
	out := newSender(conn, channels)
	frame := make([]int16, p.SampleRate*channels*int(frameDuration/time.Millisecond)/1000)

	frames := time.NewTicker(frameDuration)
	defer frames.Stop()
	levels := time.NewTicker(w.opts.LevelInterval)
	defer levels.Stop()
	stats := time.NewTicker(w.opts.StatsInterval)
	defer stats.Stop()

	var level float32
	lastStats := time.Now()
	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-cmds:
			if !ok {
				return
			}
			switch c := msg.Payload.(type) {
			case mq.SetVolume:
				chain.SetVolume(c.Level)
				log.Debugf("WORKER: volume %.2f", c.Level)
			case mq.UpdateToneControls:
				chain.SetTone(c.Bass, c.Treble)
				log.Debugf("WORKER: tone bass %.1f treble %.1f", c.Bass, c.Treble)
			}

		case <-frames.C:
			src.Read(frame)
			level = dsp.Level(frame)
			chain.Apply(frame)
			if err := out.send(frame); err != nil {
				failed = true
				log.Warnf("WORKER: send: %v", err)
				publish(bus.PublishStats("Error: " + err.Error()))
				return
			}

		case <-levels.C:
			publish(bus.PublishAudioLevel(level))

		case now := <-stats.C:
			secs := now.Sub(lastStats).Seconds()
			lastStats = now
			if secs <= 0 {
				continue
			}
			kbps := int(float64(out.takeSent()*8) / secs / 1000)
			publish(bus.PublishStats(fmt.Sprintf("Connected\n%d kbps", kbps)))
		}
	}
}

func publish(err error) {
	if err != nil && !errors.Is(err, mq.ErrClosed) {
		log.Debugf("WORKER: publish: %v", err)
	}
}
