package audio

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"meetassist/app/service/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	data []byte
	err  error
}

func (s *staticSource) Open(context.Context) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

// blockingSource produces nothing until closed, like an idle device.
type blockingSource struct{}

type blockingReader struct {
	closed chan struct{}
	once   sync.Once
}

func (blockingSource) Open(context.Context) (io.ReadCloser, error) {
	return &blockingReader{closed: make(chan struct{})}, nil
}

func (b *blockingReader) Read([]byte) (int, error) {
	<-b.closed
	return 0, io.ErrClosedPipe
}

func (b *blockingReader) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

func pcm(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestLevel(t *testing.T) {
	assert.Zero(t, Level(nil))
	assert.Zero(t, Level([]byte{1}))
	assert.Zero(t, Level(pcm(0, 0, 0)))
	assert.InDelta(t, 0.5, Level(pcm(16384, -16384)), 0.001)
	assert.InDelta(t, 1.0, Level(pcm(-32768)), 0.001)
}

func TestRecorderFramesInOrder(t *testing.T) {
	data := make([]byte, DefaultFrameSize*2+100)
	for i := range data {
		data[i] = byte(i)
	}

	rec := NewRecorder("mic", &staticSource{data: data})

	var (
		mu     sync.Mutex
		frames []Frame
	)
	rec.OnData(func(f Frame) {
		mu.Lock()
		frames = append(frames, f)
		mu.Unlock()
	})

	ended := make(chan error, 1)
	rec.OnEnded(func(err error) { ended <- err })

	require.NoError(t, rec.Start(context.Background()))

	select {
	case err := <-ended:
		assert.ErrorIs(t, err, errStreamEnded)
	case <-time.After(time.Second):
		t.Fatal("stream did not end")
	}

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, frames, 3)

	var joined []byte
	for _, f := range frames {
		assert.Equal(t, realtime.AudioMIMEType, f.Chunk.MIMEType)
		raw, err := base64.StdEncoding.DecodeString(f.Chunk.Data)
		require.NoError(t, err)
		joined = append(joined, raw...)
	}
	assert.Equal(t, data, joined)
	assert.False(t, rec.Running())
}

func TestRecorderStopDoesNotFireEnded(t *testing.T) {
	rec := NewRecorder("mic", blockingSource{})

	fired := false
	rec.OnEnded(func(error) { fired = true })

	require.NoError(t, rec.Start(context.Background()))
	require.NoError(t, rec.Start(context.Background()))
	assert.True(t, rec.Running())

	rec.Stop()
	rec.Stop()

	assert.False(t, rec.Running())
	assert.False(t, fired)
}

func TestRecorderOpenError(t *testing.T) {
	rec := NewRecorder("system audio", &staticSource{err: errors.New("permission denied")})

	err := rec.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.False(t, rec.Running())
}

func TestRecorderUnsubscribe(t *testing.T) {
	rec := NewRecorder("mic", blockingSource{})

	first := rec.OnData(func(Frame) {})
	second := rec.OnData(func(Frame) {})
	assert.Equal(t, 2, rec.ListenerCount())

	first()
	first()
	assert.Equal(t, 1, rec.ListenerCount())

	second()
	assert.Zero(t, rec.ListenerCount())
}

type recordingSink struct {
	mu     sync.Mutex
	writes [][]byte
	resets int
	closed bool
}

func (s *recordingSink) Write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, data)
	return nil
}

func (s *recordingSink) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestStreamerPlaysInOrder(t *testing.T) {
	sink := &recordingSink{}
	streamer := NewStreamer(sink)

	var volumes []float32
	var mu sync.Mutex
	streamer.OnVolume(func(v float32) {
		mu.Lock()
		volumes = append(volumes, v)
		mu.Unlock()
	})

	streamer.AddPCM16(pcm(100))
	streamer.AddPCM16(nil)
	streamer.AddPCM16(pcm(200))

	require.NoError(t, streamer.Close())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, [][]byte{pcm(100), pcm(200)}, sink.writes)
	assert.True(t, sink.closed)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, volumes, 2)

	streamer.AddPCM16(pcm(300))
}

func TestStreamerStopResetsSink(t *testing.T) {
	sink := &recordingSink{}
	streamer := NewStreamer(sink)

	var last float32 = -1
	streamer.OnVolume(func(v float32) { last = v })

	streamer.Stop()

	sink.mu.Lock()
	assert.Equal(t, 1, sink.resets)
	sink.mu.Unlock()
	assert.Zero(t, last)

	require.NoError(t, streamer.Close())
}
