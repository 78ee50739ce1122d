package audio

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Format is the capture format: signed 16-bit little-endian PCM in
// fixed-size blocks.
type Format struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
}

// DefaultFormat is what the voice agent is configured to expect.
func DefaultFormat() Format {
	return Format{
		SampleRate:      16000,
		Channels:        1,
		FramesPerBuffer: 4096,
	}
}

// FrameBytes is the size of one emitted block.
func (f Format) FrameBytes() int {
	return f.FramesPerBuffer * f.Channels * 2
}

// FrameHandler receives each captured block. It runs on the capture pump
// goroutine and must not block for long.
type FrameHandler func(frame []byte)

// Capture defines the interface for microphone capture implementations
type Capture interface {
	// Start acquires the input device and begins delivering frames.
	Start(onFrame FrameHandler) error

	// Stop releases the device. Stopping a stopped capture is a no-op.
	Stop() error
}

// Platform selects the capture/playback backend pair.
type Platform string

const (
	// Graph uses a portaudio callback stream of float samples.
	Graph Platform = "graph"
	// Device uses a miniaudio capture device drained on a timer.
	Device Platform = "device"
)

func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case Graph, Device:
		return p, nil
	default:
		return "", fmt.Errorf("unknown audio platform %q", s)
	}
}

// New creates the capture variant for the platform.
func New(p Platform, f Format, logger zerolog.Logger) (Capture, error) {
	switch p {
	case Graph:
		return NewGraphCapture(f, logger), nil
	case Device:
		return NewDeviceCapture(f, logger), nil
	default:
		return nil, fmt.Errorf("unknown audio platform %q", p)
	}
}

// PermissionFunc checks that the microphone can be acquired.
type PermissionFunc func(ctx context.Context) error

// PermissionError means microphone access was denied or no input exists.
// The user may retry after fixing access.
type PermissionError struct {
	Err error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("microphone permission not granted: %v", e.Err)
}

func (e *PermissionError) Unwrap() error {
	return e.Err
}

// Prober returns the permission check for the platform.
func Prober(p Platform) PermissionFunc {
	switch p {
	case Device:
		return probeDevice
	default:
		return probeGraph
	}
}
