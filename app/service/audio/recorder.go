package audio

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"meetassist/app/service/realtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// 100ms of 16kHz mono PCM16.
const DefaultFrameSize = 3200

var errStreamEnded = errors.New("audio stream ended")

type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Frame is one captured block of audio, ready to forward.
type Frame struct {
	Chunk realtime.AudioChunk
	Level float32
}

// Recorder captures audio from a Source and fans frames out to listeners in capture
// order. Listeners are called on the capture goroutine.
type Recorder struct {
	name      string
	source    Source
	frameSize int

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	nextID    int
	listeners []listener[func(Frame)]
	ended     []listener[func(error)]
}

type listener[T any] struct {
	id int
	fn T
}

func NewRecorder(name string, source Source) *Recorder {
	return &Recorder{
		name:      name,
		source:    source,
		frameSize: DefaultFrameSize,
	}
}

func (r *Recorder) Name() string {
	return r.name
}

func (r *Recorder) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.running
}

// Start opens the source. Calling Start on a running recorder does nothing.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)

	stream, err := r.source.Open(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to open %s: %w", r.name, err)
	}

	done := make(chan struct{})
	r.running = true
	r.cancel = cancel
	r.done = done

	go r.run(ctx, stream, done)

	slog.Debug("Recorder started", "recorder", r.name)

	return nil
}

// Stop closes the source and waits for the capture goroutine. Ended listeners are not
// called for an explicit stop.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	cancel()
	<-done

	slog.Debug("Recorder stopped", "recorder", r.name)
}

func (r *Recorder) run(ctx context.Context, stream io.ReadCloser, done chan struct{}) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		return stream.Close()
	})

	g.Go(func() error {
		return r.pump(stream)
	})

	err := g.Wait()
	stopped := ctx.Err() != nil

	r.mu.Lock()
	r.running = false
	r.cancel = nil
	r.done = nil
	ended := make([]func(error), 0, len(r.ended))
	for _, l := range r.ended {
		ended = append(ended, l.fn)
	}
	r.mu.Unlock()

	close(done)

	if stopped {
		return
	}

	slog.Info("Recorder stream ended", "recorder", r.name, "error", err)

	for _, fn := range ended {
		fn(err)
	}
}

func (r *Recorder) pump(stream io.Reader) error {
	buf := make([]byte, r.frameSize)

	for {
		n, err := io.ReadFull(stream, buf)
		if n > 0 {
			r.emit(buf[:n])
		}

		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return errStreamEnded
		}
		if err != nil {
			return fmt.Errorf("failed to read audio: %w", err)
		}
	}
}

func (r *Recorder) emit(pcm []byte) {
	frame := Frame{
		Chunk: realtime.AudioChunk{
			MIMEType: realtime.AudioMIMEType,
			Data:     base64.StdEncoding.EncodeToString(pcm),
		},
		Level: Level(pcm),
	}

	r.mu.Lock()
	fns := make([]func(Frame), 0, len(r.listeners))
	for _, l := range r.listeners {
		fns = append(fns, l.fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(frame)
	}
}

// OnData registers a frame listener and returns its unsubscribe func.
func (r *Recorder) OnData(fn func(Frame)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.listeners = append(r.listeners, listener[func(Frame)]{id: id, fn: fn})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.listeners = removeListener(r.listeners, id)
	}
}

// OnEnded registers a listener for streams that end without Stop, such as a revoked
// share or an unplugged device.
func (r *Recorder) OnEnded(fn func(error)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.ended = append(r.ended, listener[func(error)]{id: id, fn: fn})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.ended = removeListener(r.ended, id)
	}
}

func (r *Recorder) ListenerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.listeners)
}

func removeListener[T any](list []listener[T], id int) []listener[T] {
	for i, l := range list {
		if l.id == id {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
