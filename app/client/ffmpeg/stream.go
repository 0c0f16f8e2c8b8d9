package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// Stream is a running ffmpeg process whose stdout carries raw audio.
type Stream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser

	mu      sync.Mutex
	stopped bool
	lastErr string
}

func NewStream(ctx context.Context, binary string, args ...string) (*Stream, error) {
	if _, err := exec.LookPath(binary); err != nil {
		return nil, fmt.Errorf("%s is not installed or not in PATH: %w", binary, err)
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	slog.Debug("Running ffmpeg", "cmd", binary+" "+strings.Join(args, " "))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	return &Stream{
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

func (f *Stream) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", f.cmd.Path, err)
	}

	go f.logStderr()

	return nil
}

// Read reads raw audio from the process. A read error after the process died
// carries the last stderr line, which is usually the device error.
func (f *Stream) Read(p []byte) (int, error) {
	n, err := f.stdout.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, err
	}
	if errors.Is(err, io.EOF) {
		f.mu.Lock()
		lastErr := f.lastErr
		stopped := f.stopped
		f.mu.Unlock()

		if !stopped && lastErr != "" {
			slog.Debug("ffmpeg stream ended", "last_stderr", lastErr)
		}
	}
	return n, err
}

func (f *Stream) Wait() error {
	return f.cmd.Wait()
}

// Close kills the process and reaps it.
func (f *Stream) Close() error {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return nil
	}
	f.stopped = true
	f.mu.Unlock()

	if f.cmd.Process != nil {
		_ = f.cmd.Process.Kill()
		_ = f.cmd.Wait()
	}
	return nil
}

func (f *Stream) logStderr() {
	scanner := bufio.NewScanner(f.stderr)
	for scanner.Scan() {
		line := scanner.Text()

		f.mu.Lock()
		f.lastErr = line
		f.mu.Unlock()

		slog.Debug("ffmpeg", "stderr", line)
	}
}
