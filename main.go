// main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/petervdpas/airwaves/internal/app"
	"github.com/petervdpas/airwaves/internal/config"
	"github.com/petervdpas/airwaves/internal/viewer"
)

// appVersion is set at build time via -ldflags "-X main.appVersion=x.y.z"
var appVersion = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("airwaves", flag.ContinueOnError)

	var (
		dir, cfgPath, logLevel, listen string
		open, showVersion, showHelp    bool
	)
	fs.StringVarP(&dir, "dir", "d", ".", "Data directory (config, database, run flag)")
	fs.StringVarP(&cfgPath, "config", "c", "", "Config file (default <dir>/airwaves.json)")
	fs.StringVar(&logLevel, "log-level", "", "Override log level (debug|info|warn|error)")
	fs.StringVar(&listen, "listen", "", "Worker control address (worker command)")
	fs.BoolVar(&open, "open", false, "Open the viewer in a browser once it is up")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")
	fs.Usage = func() { printUsage(fs) }

	if err := fs.Parse(args); err != nil {
		return err
	}
	if showHelp {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("airwaves %s\n", appVersion)
		return nil
	}

	command := "run"
	if rest := fs.Args(); len(rest) > 0 {
		command = rest[0]
		if len(rest) > 1 {
			return fmt.Errorf("unexpected arguments after %q: %v", command, rest[1:])
		}
	}
	if command != "run" && command != "worker" {
		printUsage(fs)
		return fmt.Errorf("unknown command %q", command)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("invalid data directory: %w", err)
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return err
	}
	if cfgPath == "" {
		cfgPath = filepath.Join(absDir, "airwaves.json")
	}

	cfg, created, err := config.Ensure(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logs := viewer.NewLogBuffer(800)
	detach, err := app.SetupLogging(cfg.Log.Level, logs)
	if err != nil {
		return err
	}
	defer detach()
	if created {
		fmt.Fprintf(os.Stderr, "Created default config at %s\n", cfgPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if command == "worker" {
		return app.RunWorker(ctx, app.WorkerOptions{
			DataDir:    absDir,
			Cfg:        cfg,
			ListenAddr: listen,
		})
	}
	return app.Run(ctx, app.Options{
		DataDir:     absDir,
		CfgPath:     cfgPath,
		Cfg:         cfg,
		Logs:        logs,
		OpenBrowser: open,
	})
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Airwaves v%s

Streams local audio to a network receiver, driven through a local HTTP API.

Usage:
  airwaves [options] [run]       Run the state store, viewer API and (inproc) worker
  airwaves [options] worker      Run a standalone worker for worker.mode=remote

Options:
`, appVersion)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  airwaves --dir ~/.airwaves                  Run with data in ~/.airwaves
  airwaves --log-level debug --open           Verbose, open the viewer
  airwaves --dir ~/.airwaves worker --listen 127.0.0.1:7789
`)
}
