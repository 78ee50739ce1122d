package sound

import (
	"errors"
	"fmt"

	"github.com/d1nch8g/dialcoach/audio"
	"github.com/rs/zerolog"
)

// DefaultQueueSize bounds how many payloads may wait for playback.
const DefaultQueueSize = 64

var (
	ErrQueueFull    = errors.New("sound: playback queue full")
	ErrPlayerClosed = errors.New("sound: player closed")
)

// Player defines the interface for remote audio playback
type Player interface {
	// Play schedules one payload exactly as received from the agent.
	// It does not wait for playback.
	Play(payload []byte) error

	// Close stops playback and releases the output device.
	Close() error
}

// Format is the agent's negotiated output format.
type Format struct {
	Encoding   string
	Container  string
	SampleRate int
	Channels   int
}

func DefaultFormat() Format {
	return Format{
		Encoding:   "linear16",
		Container:  "none",
		SampleRate: 16000,
		Channels:   1,
	}
}

// sink renders decoded PCM16LE to an output device.
type sink interface {
	// Write blocks until pcm is handed to the device or stop is closed.
	Write(pcm []byte, stop <-chan struct{}) error
	Close() error
}

// flusher is a sink that holds back a partial block until it is flushed.
type flusher interface {
	Flush(stop <-chan struct{}) error
}

// New opens the output device for the platform and returns a queued player.
func New(p audio.Platform, f Format, logger zerolog.Logger) (Player, error) {
	if f.Channels == 0 {
		f.Channels = 1
	}
	decode, err := NewDecoder(f)
	if err != nil {
		return nil, err
	}

	var out sink
	switch p {
	case audio.Graph:
		out, err = newPortaudioSink(f)
	case audio.Device:
		out, err = newOtoSink(f)
	default:
		return nil, fmt.Errorf("unknown audio platform %q", p)
	}
	if err != nil {
		return nil, err
	}

	return newQueuedPlayer(out, decode, DefaultQueueSize, logger), nil
}
