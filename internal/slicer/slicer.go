package slicer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

const (
	// DefaultTimeout is the wall-clock limit for one slicer run
	DefaultTimeout = 15 * time.Second

	// waitDelay bounds how long Wait keeps draining pipes after the process was killed
	waitDelay = 2 * time.Second
)

var (
	ErrConversionFailed = errors.New("conversion failed")
	ErrTimeout          = fmt.Errorf("%w: slicer timed out", ErrConversionFailed)
	ErrExitStatus       = fmt.Errorf("%w: slicer exited with non-zero status", ErrConversionFailed)
	ErrStart            = fmt.Errorf("%w: slicer could not be started", ErrConversionFailed)
)

// Runner invokes an external slicer executable to export G-code
type Runner struct {
	Path    string
	Timeout time.Duration
}

// NewRunner creates a runner for the slicer at path. A non-positive timeout
// falls back to DefaultTimeout.
func NewRunner(path string, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Runner{Path: path, Timeout: timeout}
}

// Args builds the slicer command line
func Args(modelPath, outputPath, profilePath string) []string {
	return []string{
		modelPath,
		"--export-gcode",
		"--output", outputPath,
		"--load", profilePath,
	}
}

// Slice converts modelPath into G-code at outputPath using the given profile.
// On timeout the slicer and any children it spawned are killed. Slicer output
// is only logged, the returned error never carries it.
func (r *Runner) Slice(ctx context.Context, modelPath, outputPath, profilePath string) error {
	log := slog.With("component", "slicer", "model", modelPath)

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, r.Path, Args(modelPath, outputPath, profilePath)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	configureProcessGroup(cmd)

	started := time.Now()

	err := cmd.Run()

	elapsed := time.Since(started)

	if err == nil {
		log.Info("Slicer finished", "elapsed", elapsed)
		return nil
	}

	var exitErr *exec.ExitError

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		log.Error("Slicer timed out", "timeout", r.Timeout, "stderr", stderr.String())
		return fmt.Errorf("%w after %s", ErrTimeout, r.Timeout)
	case ctx.Err() != nil:
		log.Error("Slicer cancelled", "error", ctx.Err())
		return fmt.Errorf("%w: %w", ErrConversionFailed, ctx.Err())
	case errors.As(err, &exitErr):
		log.Error("Slicer failed",
			"exit_code", exitErr.ExitCode(),
			"elapsed", elapsed,
			"stdout", stdout.String(),
			"stderr", stderr.String())

		return fmt.Errorf("%w: exit code %d", ErrExitStatus, exitErr.ExitCode())
	default:
		log.Error("Slicer could not be started", "path", r.Path, "error", err)
		return fmt.Errorf("%w: %w", ErrStart, err)
	}
}
