package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/petervdpas/airwaves/internal/config"
	"github.com/petervdpas/airwaves/internal/mq"
	"github.com/petervdpas/airwaves/internal/profile"
	"github.com/petervdpas/airwaves/internal/session"
	"github.com/petervdpas/airwaves/internal/state"
	"github.com/petervdpas/airwaves/internal/storage"
	"github.com/petervdpas/airwaves/internal/util"
	"github.com/petervdpas/airwaves/internal/viewer"
	"github.com/petervdpas/airwaves/internal/worker"
)

const (
	bridgeBackoff      = 2 * time.Second
	remotePollInterval = 5 * time.Second
)

type Options struct {
	DataDir string
	CfgPath string
	Cfg     config.Config
	Logs    *viewer.LogBuffer
	// OpenBrowser opens the viewer URL once it is reachable.
	OpenBrowser bool
}

// Run wires storage, the message bus, the worker, the session controller and
// the state store, then serves the viewer until ctx is cancelled.
func Run(ctx context.Context, opt Options) error {
	cfg := opt.Cfg
	logBanner(opt.DataDir, opt.CfgPath, cfg.Worker.Mode)

	db, err := storage.Open(util.ResolvePath(opt.DataDir, cfg.Paths.Database))
	if err != nil {
		return err
	}
	defer db.Close()

	bus := mq.New()
	defer bus.Close()

	runFlag := util.ResolvePath(opt.DataDir, cfg.Paths.RunFlag)
	dialTimeout := time.Duration(cfg.Worker.DialTimeoutSec) * time.Second

	var (
		w      session.Worker
		remote *worker.Client
	)
	switch cfg.Worker.Mode {
	case config.WorkerRemote:
		remote = worker.NewClient(cfg.Worker.RemoteURL, dialTimeout)
		w = remote
		go mq.NewBridge(bus, mq.TopicCommand, mq.TopicTelemetry).DialLoop(ctx, remote.BridgeURL(), bridgeBackoff)
	default:
		local := newLocalWorker(cfg, bus, runFlag)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), util.ShortTimeout)
			defer cancel()
			if err := local.Stop(stopCtx); err != nil {
				log.Warnf("APP: stop worker: %v", err)
			}
		}()
		w = local
	}

	store, err := state.New(state.Deps{
		Profiles:     profile.NewStore(db),
		Settings:     db,
		Session:      session.NewController(w),
		Bus:          bus,
		DefaultTheme: cfg.Viewer.Theme,
	})
	if err != nil {
		return err
	}

	// The worker may have outlived a previous UI, or died behind it.
	snap := store.Attach(ctx)
	log.Infof("APP: session %s on attach", snap.SessionState)

	go func() {
		if err := store.Run(ctx); err != nil && ctx.Err() == nil {
			log.Warnf("APP: telemetry loop: %v", err)
		}
	}()

	go func() {
		err := worker.WatchRunFlag(ctx, runFlag, func(st session.Status) {
			log.Debugf("APP: run flag changed, running=%v", st.Running)
			store.Attach(ctx)
		})
		if err != nil {
			log.Warnf("APP: run flag watcher: %v", err)
		}
	}()

	if remote != nil {
		go pollRemote(ctx, remote, store)
	}

	listenAddr, url := NormalizeLocalViewer(cfg.Viewer.HTTPAddr)
	if opt.OpenBrowser {
		go func() {
			if err := WaitTCP(listenAddr, util.DefaultConnectTimeout); err != nil {
				log.Warnf("APP: %v", err)
				return
			}
			if err := util.OpenURL(url); err != nil {
				log.Warnf("APP: open browser: %v", err)
			}
		}()
	}

	return viewer.Start(ctx, listenAddr, viewer.Viewer{Store: store, Logs: opt.Logs})
}

// pollRemote feeds a remote worker's status into the store; a worker on
// another machine cannot be observed through the run flag.
func pollRemote(ctx context.Context, c *worker.Client, store *state.Store) {
	t := time.NewTicker(remotePollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			store.ReportWorkerStatus(c.Status(ctx))
		}
	}
}

func newLocalWorker(cfg config.Config, bus *mq.Bus, runFlag string) *worker.Worker {
	return worker.New(worker.Options{
		Bus:           bus,
		RunFlag:       runFlag,
		LevelInterval: time.Duration(cfg.Worker.LevelIntervalMs) * time.Millisecond,
		StatsInterval: time.Duration(cfg.Worker.StatsIntervalMs) * time.Millisecond,
		DialTimeout:   time.Duration(cfg.Worker.DialTimeoutSec) * time.Second,
	})
}

type WorkerOptions struct {
	DataDir    string
	Cfg        config.Config
	ListenAddr string // overrides cfg.Worker.ControlAddr when set
}

// RunWorker hosts a worker in this process behind its control server, for
// worker.mode=remote deployments. It outlives any UI that drives it.
func RunWorker(ctx context.Context, opt WorkerOptions) error {
	cfg := opt.Cfg
	addr := cfg.Worker.ControlAddr
	if opt.ListenAddr != "" {
		addr = opt.ListenAddr
	}

	bus := mq.New()
	defer bus.Close()

	w := newLocalWorker(cfg, bus, util.ResolvePath(opt.DataDir, cfg.Paths.RunFlag))

	srv := &http.Server{
		Addr:              addr,
		Handler:           worker.NewServer(w, bus),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Infof("APP: worker control listening on http://%s", addr)

	select {
	case err := <-errc:
		return fmt.Errorf("worker control server: %w", err)
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		log.Warnf("APP: stop worker: %v", err)
	}
	if err := srv.Shutdown(stopCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
