package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/petervdpas/airwaves/internal/util"
)

// Worker modes.
const (
	WorkerInProc = "inproc" // worker runs as a supervised goroutine in this process
	WorkerRemote = "remote" // worker runs as `airwaves worker`, reached over HTTP + websocket
)

type Config struct {
	Paths  Paths  `json:"paths"`
	Viewer Viewer `json:"viewer"`
	Worker Worker `json:"worker"`
	Log    Log    `json:"log"`
}

type Paths struct {
	// SQLite database holding profiles and settings. Relative to the data dir.
	Database string `json:"database"`

	// File the worker writes while it is running. Its presence is the
	// process-queryable liveness flag. Relative to the data dir.
	RunFlag string `json:"run_flag"`
}

type Viewer struct {
	HTTPAddr string `json:"http_addr"`
	Theme    string `json:"theme"`
}

type Worker struct {
	Mode string `json:"mode"`

	// Base URL of a remote worker's control server (mode=remote).
	RemoteURL string `json:"remote_url"`

	// Listen address for `airwaves worker`.
	ControlAddr string `json:"control_addr"`

	LevelIntervalMs int `json:"level_interval_ms"`
	StatsIntervalMs int `json:"stats_interval_ms"`
	DialTimeoutSec  int `json:"dial_timeout_seconds"`
}

type Log struct {
	Level string `json:"level"`
}

func Default() Config {
	return Config{
		Paths: Paths{
			Database: "data/airwaves.db",
			RunFlag:  "data/worker.run",
		},
		Viewer: Viewer{
			HTTPAddr: "127.0.0.1:7788",
			Theme:    "system",
		},
		Worker: Worker{
			Mode:            WorkerInProc,
			RemoteURL:       "http://127.0.0.1:7789",
			ControlAddr:     "127.0.0.1:7789",
			LevelIntervalMs: 100,
			StatsIntervalMs: 1000,
			DialTimeoutSec:  5,
		},
		Log: Log{
			Level: "info",
		},
	}
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

func (c *Config) Validate() error {
	// Paths
	if strings.TrimSpace(c.Paths.Database) == "" {
		return errors.New("paths.database is required")
	}
	if strings.TrimSpace(c.Paths.RunFlag) == "" {
		return errors.New("paths.run_flag is required")
	}

	// Viewer
	if a := strings.TrimSpace(c.Viewer.HTTPAddr); a != "" {
		if _, _, err := net.SplitHostPort(a); err != nil {
			return fmt.Errorf("viewer.http_addr: %w", err)
		}
	}

	// Worker
	switch c.Worker.Mode {
	case WorkerInProc:
	case WorkerRemote:
		if err := validateRemoteURL(c.Worker.RemoteURL); err != nil {
			return fmt.Errorf("worker.remote_url: %w", err)
		}
	default:
		return fmt.Errorf("worker.mode must be %q or %q", WorkerInProc, WorkerRemote)
	}
	if a := strings.TrimSpace(c.Worker.ControlAddr); a != "" {
		if _, _, err := net.SplitHostPort(a); err != nil {
			return fmt.Errorf("worker.control_addr: %w", err)
		}
	}
	if c.Worker.LevelIntervalMs < 10 || c.Worker.LevelIntervalMs > 5000 {
		return errors.New("worker.level_interval_ms must be 10..5000")
	}
	if c.Worker.StatsIntervalMs < 100 || c.Worker.StatsIntervalMs > 60000 {
		return errors.New("worker.stats_interval_ms must be 100..60000")
	}
	if c.Worker.DialTimeoutSec < 1 || c.Worker.DialTimeoutSec > 60 {
		return errors.New("worker.dial_timeout_seconds must be 1..60")
	}

	// Log
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return errors.New("log.level must be one of debug, info, warn, error")
	}

	return nil
}

func validateRemoteURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func Load(path string) (Config, error) {
	cfg, err := LoadPartial(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadPartial reads a config file without validation.
func LoadPartial(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	// Strip UTF-8 BOM if present (common when editing JSON on Windows).
	b = stripBOM(b)

	// Start from defaults so missing JSON fields remain initialized.
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func stripBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}

func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return util.WriteJSONFile(path, cfg)
}

// Ensure loads config if it exists; otherwise creates a default config file.
// Returns (cfg, createdNew, err).
func Ensure(path string) (Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	} else if !os.IsNotExist(err) {
		return Config{}, false, err
	}

	cfg := Default()
	if err := Save(path, cfg); err != nil {
		return Config{}, false, fmt.Errorf("create default config: %w", err)
	}
	return cfg, true, nil
}
