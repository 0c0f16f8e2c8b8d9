package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strconv"
)

const (
	CaptureSampleRate  = 16000
	PlaybackSampleRate = 24000
)

type Kind string

const (
	KindMicrophone  Kind = "microphone"
	KindSystemAudio Kind = "system_audio"
)

// CaptureSource opens an ffmpeg process producing 16kHz mono PCM16 from an input device.
type CaptureSource struct {
	Kind   Kind
	Device string
	goos   string
}

func NewCaptureSource(kind Kind, device string) *CaptureSource {
	return &CaptureSource{
		Kind:   kind,
		Device: device,
		goos:   runtime.GOOS,
	}
}

func (s *CaptureSource) Open(ctx context.Context) (io.ReadCloser, error) {
	args, err := captureArgs(s.goos, s.Kind, s.Device)
	if err != nil {
		return nil, err
	}

	stream, err := NewStream(ctx, "ffmpeg", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stream: %w", err)
	}

	if err = stream.Start(); err != nil {
		return nil, err
	}

	return stream, nil
}

func captureArgs(goos string, kind Kind, device string) ([]string, error) {
	var input []string

	switch goos {
	case "linux":
		if device == "" {
			device = "default"
			if kind == KindSystemAudio {
				device = "@DEFAULT_MONITOR@"
			}
		}
		input = []string{"-f", "pulse", "-i", device}
	case "darwin":
		if device == "" {
			if kind == KindSystemAudio {
				return nil, fmt.Errorf("system audio capture on macOS needs a loopback device (for example BlackHole) set as live.system_audio_device")
			}
			device = "0"
		}
		input = []string{"-f", "avfoundation", "-i", ":" + device}
	case "windows":
		if device == "" {
			return nil, fmt.Errorf("%s capture on windows needs an explicit dshow device name", kind)
		}
		input = []string{"-f", "dshow", "-i", "audio=" + device}
	default:
		return nil, fmt.Errorf("audio capture is not implemented for %s", goos)
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, input...)
	args = append(args,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", strconv.Itoa(CaptureSampleRate),
		"-f", "s16le",
		"-",
	)

	return args, nil
}
