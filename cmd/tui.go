package main

import (
	"fmt"
	"os"
	"path/filepath"
)

const tuiLogFile = "discog.log"

// redirectLogs sends log output to a file in the config directory so it does not interfere with TUI rendering.
//
// The returned func points the logger back at stderr and closes the file.
func (r *Runner) redirectLogs() (func(), error) {
	path := filepath.Join(r.configDir(), tuiLogFile)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	r.logger.SetOutput(f)
	return func() {
		r.logger.SetOutput(os.Stderr)
		f.Close()
	}, nil
}
