package audio

import (
	"encoding/binary"
	"math"
)

// Level returns the RMS level of little-endian PCM16 samples, normalized to [0, 1].
// A trailing odd byte is ignored.
func Level(pcm []byte) float32 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < samples; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
		sum += s * s
	}

	level := math.Sqrt(sum / float64(samples))
	if level > 1 {
		level = 1
	}

	return float32(level)
}
