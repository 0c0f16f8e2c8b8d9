package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
)

// Player pipes 24kHz mono PCM16 into ffplay. The process is started lazily on the
// first write and restarted by Reset to drop anything it has buffered.
type Player struct {
	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func NewPlayer() *Player {
	return &Player{}
}

func playerArgs() []string {
	return []string{
		"-nodisp",
		"-autoexit",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(PlaybackSampleRate),
		"-ac", "1",
		"-i", "pipe:0",
	}
}

func (p *Player) startLocked() error {
	if _, err := exec.LookPath("ffplay"); err != nil {
		return errors.New("ffplay is required for audio playback (install ffmpeg and ensure ffplay is in PATH)")
	}

	cmd := exec.CommandContext(context.Background(), "ffplay", playerArgs()...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open ffplay stdin: %w", err)
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	if err = cmd.Start(); err != nil {
		return fmt.Errorf("start ffplay: %w", err)
	}

	p.cmd = cmd
	p.stdin = stdin
	return nil
}

// Write blocks while ffplay is not draining its input. The lock is released first so
// Reset can kill the process and unblock it.
func (p *Player) Write(data []byte) error {
	p.mu.Lock()
	if p.stdin == nil {
		if err := p.startLocked(); err != nil {
			p.mu.Unlock()
			return err
		}
	}
	stdin := p.stdin
	p.mu.Unlock()

	if _, err := stdin.Write(data); err != nil {
		return fmt.Errorf("write to ffplay: %w", err)
	}
	return nil
}

func (p *Player) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	return nil
}

func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	return nil
}

func (p *Player) stopLocked() {
	if p.stdin != nil {
		_ = p.stdin.Close()
	}
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
		_ = p.cmd.Wait()
	}
	p.cmd = nil
	p.stdin = nil
}
