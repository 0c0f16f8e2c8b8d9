package audio

import (
	"log/slog"
	"sync"
)

const playbackQueueSize = 256

type Sink interface {
	Write(data []byte) error
	Reset() error
	Close() error
}

type queuedChunk struct {
	gen  uint64
	data []byte
}

// Streamer plays PCM16 chunks in arrival order and reports a volume sample per chunk.
type Streamer struct {
	sink  Sink
	queue chan queuedChunk

	mu        sync.Mutex
	gen       uint64
	closed    bool
	onVolume  func(float32)
	closeOnce sync.Once
	done      chan struct{}
}

func NewStreamer(sink Sink) *Streamer {
	s := &Streamer{
		sink:  sink,
		queue: make(chan queuedChunk, playbackQueueSize),
		done:  make(chan struct{}),
	}

	go s.loop()

	return s
}

// OnVolume sets the volume-meter callback. It is called from the playback goroutine.
func (s *Streamer) OnVolume(fn func(float32)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onVolume = fn
}

func (s *Streamer) AddPCM16(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || len(data) == 0 {
		return
	}

	select {
	case s.queue <- queuedChunk{gen: s.gen, data: data}:
	default:
		slog.Warn("playback queue is full, dropping chunk", "bytes", len(data))
	}
}

// Stop drops everything queued and resets the sink, as on barge-in.
func (s *Streamer) Stop() {
	s.mu.Lock()
	s.gen++
	onVolume := s.onVolume
	s.mu.Unlock()

drain:
	for {
		select {
		case _, ok := <-s.queue:
			if !ok {
				break drain
			}
		default:
			break drain
		}
	}

	if err := s.sink.Reset(); err != nil {
		slog.Warn("Failed to reset playback sink", "error", err)
	}

	if onVolume != nil {
		onVolume(0)
	}
}

func (s *Streamer) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()

		<-s.done
	})

	return s.sink.Close()
}

func (s *Streamer) loop() {
	defer close(s.done)

	for chunk := range s.queue {
		s.mu.Lock()
		current := s.gen
		onVolume := s.onVolume
		s.mu.Unlock()

		if chunk.gen != current {
			continue
		}

		if onVolume != nil {
			onVolume(Level(chunk.data))
		}

		if err := s.sink.Write(chunk.data); err != nil {
			slog.Warn("Playback write failed", "error", err)
		}
	}
}
