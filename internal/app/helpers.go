// internal/app/helpers.go
package app

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// NormalizeLocalViewer keeps the viewer bound to loopback and returns the
// listen address and the URL a browser should open.
func NormalizeLocalViewer(cfgAddr string) (listenAddr string, url string) {
	a := strings.TrimSpace(cfgAddr)

	if strings.HasPrefix(a, ":") {
		a = "127.0.0.1" + a
	}
	if strings.HasPrefix(a, "0.0.0.0:") {
		a = "127.0.0.1:" + strings.TrimPrefix(a, "0.0.0.0:")
	}
	return a, "http://" + a
}

func WaitTCP(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		c, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			_ = c.Close()
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for %s", addr)
}

func logBanner(dataDir, cfgPath, mode string) {
	log.Infof("────────────────────────────────────────")
	log.Infof(" Airwaves")
	log.Infof(" Data folder : %s", dataDir)
	log.Infof(" Config file : %s", cfgPath)
	log.Infof(" Worker mode : %s", mode)
	log.Infof("────────────────────────────────────────")
}
