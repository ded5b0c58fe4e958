package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/petervdpas/airwaves/internal/config"
	"github.com/petervdpas/airwaves/internal/session"
	"github.com/petervdpas/airwaves/internal/state"
)

func TestNormalizeLocalViewer(t *testing.T) {
	cases := map[string][2]string{
		":7788":         {"127.0.0.1:7788", "http://127.0.0.1:7788"},
		"0.0.0.0:9000":  {"127.0.0.1:9000", "http://127.0.0.1:9000"},
		" 127.0.0.1:1 ": {"127.0.0.1:1", "http://127.0.0.1:1"},
	}
	for in, want := range cases {
		addr, url := NormalizeLocalViewer(in)
		if addr != want[0] || url != want[1] {
			t.Errorf("NormalizeLocalViewer(%q) = %q, %q", in, addr, url)
		}
	}
}

type syncBuf struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *syncBuf) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *syncBuf) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}

func TestSetupLogging(t *testing.T) {
	if _, err := SetupLogging("chatty", nil); err == nil {
		t.Error("expected error for unknown level")
	}

	var buf syncBuf
	detach, err := SetupLogging("info", &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer detach()

	deadline := time.Now().Add(3 * time.Second)
	for !strings.Contains(buf.String(), "APP: tee check") {
		if time.Now().After(deadline) {
			t.Fatalf("log line never reached the tee, got %q", buf.String())
		}
		log.Infof("APP: tee check")
		time.Sleep(20 * time.Millisecond)
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestRunServesState(t *testing.T) {
	cfg := config.Default()
	cfg.Viewer.HTTPAddr = freeAddr(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{DataDir: t.TempDir(), CfgPath: "test.json", Cfg: cfg})
	}()

	if err := WaitTCP(cfg.Viewer.HTTPAddr, 5*time.Second); err != nil {
		cancel()
		t.Fatal(err)
	}
	resp, err := http.Get("http://" + cfg.Viewer.HTTPAddr + "/api/state")
	if err != nil {
		cancel()
		t.Fatal(err)
	}
	var snap state.Snapshot
	err = json.NewDecoder(resp.Body).Decode(&snap)
	resp.Body.Close()
	if err != nil {
		cancel()
		t.Fatal(err)
	}
	if len(snap.Profiles) != 1 || snap.SessionState != session.Idle {
		t.Errorf("snapshot = %+v", snap)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunWorkerServesStatus(t *testing.T) {
	cfg := config.Default()
	addr := freeAddr(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunWorker(ctx, WorkerOptions{DataDir: t.TempDir(), Cfg: cfg, ListenAddr: addr})
	}()

	if err := WaitTCP(addr, 5*time.Second); err != nil {
		cancel()
		t.Fatal(err)
	}
	resp, err := http.Get("http://" + addr + "/status")
	if err != nil {
		cancel()
		t.Fatal(err)
	}
	var st session.Status
	_ = json.NewDecoder(resp.Body).Decode(&st)
	resp.Body.Close()
	if st.Running {
		t.Error("fresh worker reports running")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunWorker returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunWorker did not return after cancel")
	}
}
