package app

import (
	"fmt"
	"io"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("app")

// SetupLogging configures every subsystem logger at level, writing plain
// text to stderr. When tee is non-nil every line is copied into it as well.
// The returned func detaches the tee.
func SetupLogging(level string, tee io.Writer) (func(), error) {
	lvl, err := logging.LevelFromString(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	logging.SetupLogging(logging.Config{
		Format: logging.PlaintextOutput,
		Stderr: true,
		Level:  lvl,
	})
	if tee == nil {
		return func() {}, nil
	}

	pr := logging.NewPipeReader(logging.PipeFormat(logging.PlaintextOutput), logging.PipeLevel(lvl))
	go func() { _, _ = io.Copy(tee, pr) }()
	return func() { _ = pr.Close() }, nil
}
