// ABOUTME: Audio type definitions and sample conversions
// ABOUTME: Defines stream formats and float <-> 16-bit PCM helpers
package audio

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	// CaptureRate is the fixed rate of every outbound microphone frame
	CaptureRate = 16000

	// PlaybackRate is the fixed rate of every inbound narration frame
	PlaybackRate = 24000

	// 16-bit audio range constants
	MaxInt16 = 32767
	MinInt16 = -32768
)

// Format describes audio stream format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// CaptureFormat is the format of outbound microphone frames
func CaptureFormat(codec string) Format {
	return Format{Codec: codec, SampleRate: CaptureRate, Channels: 1, BitDepth: 16}
}

// PlaybackFormat is the format of inbound narration frames
func PlaybackFormat(codec string) Format {
	return Format{Codec: codec, SampleRate: PlaybackRate, Channels: 1, BitDepth: 16}
}

// FloatToInt16 converts a normalized sample to 16-bit PCM.
// Negative values scale by 32768 and non-negative values by 32767, so +1.0
// maps to 32767 and -1.0 to -32768 without overflow.
func FloatToInt16(s float32) int16 {
	if s != s {
		return 0
	}
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}

// Int16ToFloat converts 16-bit PCM to a normalized sample
func Int16ToFloat(s int16) float32 {
	return float32(s) / 32768
}

// PutInt16LE writes samples as little-endian 16-bit PCM into dst.
// dst must hold at least 2*len(samples) bytes.
func PutInt16LE(dst []byte, samples []int16) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(s))
	}
}

// Int16LE reads little-endian 16-bit PCM. A trailing odd byte is ignored.
func Int16LE(data []byte) []int16 {
	n := len(data) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// FramesToDuration converts a frame count at the given rate to a duration
func FramesToDuration(frames int64, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(frames * int64(time.Second) / int64(sampleRate))
}

// DurationToFrames converts a duration to a frame count at the given rate
func DurationToFrames(d time.Duration, sampleRate int) int64 {
	return int64(d) * int64(sampleRate) / int64(time.Second)
}

// RMS returns the root mean square of a block of normalized samples
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// LevelDB converts an RMS level to dBFS, floored at -96
func LevelDB(rms float64) float64 {
	if rms <= 0 {
		return -96
	}
	db := 20 * math.Log10(rms)
	if db < -96 {
		return -96
	}
	return db
}
