package sound

import (
	"encoding/binary"
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// playbackFrames is the portaudio output block size in samples.
const playbackFrames = 1024

// outputStream is the part of *portaudio.Stream the sink drives. Write
// blocks until the shared buffer has been handed to the device.
type outputStream interface {
	Write() error
	Stop() error
	Close() error
}

// portaudioSink packs payloads into fixed size blocks. A partial block stays
// in audioBuffer until the next payload fills it or Flush pads it.
type portaudioSink struct {
	stream      outputStream
	terminate   func()
	audioBuffer []int16
	filled      int
	// odd holds the first byte of a sample split across payloads.
	odd []byte
}

func newPortaudioSink(f Format) (*portaudioSink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	p := &portaudioSink{
		audioBuffer: make([]int16, playbackFrames*f.Channels),
		terminate:   func() { _ = portaudio.Terminate() },
	}
	stream, err := portaudio.OpenDefaultStream(
		0,
		f.Channels,
		float64(f.SampleRate),
		playbackFrames,
		p.audioBuffer,
	)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to start output stream: %w", err)
	}
	p.stream = stream
	return p, nil
}

func (p *portaudioSink) Write(pcm []byte, stop <-chan struct{}) error {
	if len(p.odd) > 0 && len(pcm) > 0 {
		pcm = append(p.odd, pcm...)
		p.odd = nil
	}
	if len(pcm)%2 == 1 {
		p.odd = []byte{pcm[len(pcm)-1]}
		pcm = pcm[:len(pcm)-1]
	}

	samples := convertBytesToSamples(pcm)
	for len(samples) > 0 {
		n := copy(p.audioBuffer[p.filled:], samples)
		p.filled += n
		samples = samples[n:]
		if p.filled < len(p.audioBuffer) {
			return nil
		}

		select {
		case <-stop:
			p.filled = 0
			return nil
		default:
		}
		if err := p.writeBlock(); err != nil {
			return err
		}
	}
	return nil
}

// Flush pads a partial block with silence and plays it.
func (p *portaudioSink) Flush(stop <-chan struct{}) error {
	if p.filled == 0 {
		return nil
	}
	select {
	case <-stop:
		p.filled = 0
		return nil
	default:
	}
	clear(p.audioBuffer[p.filled:])
	return p.writeBlock()
}

func (p *portaudioSink) writeBlock() error {
	p.filled = 0
	if err := p.stream.Write(); err != nil {
		return fmt.Errorf("failed to write audio: %w", err)
	}
	return nil
}

func (p *portaudioSink) Close() error {
	var err error
	if p.stream != nil {
		p.filled = 0
		p.odd = nil
		if stopErr := p.stream.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop output stream: %w", stopErr)
		}
		if closeErr := p.stream.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output stream: %w", closeErr)
		}
		p.stream = nil
		if p.terminate != nil {
			p.terminate()
		}
	}
	return err
}

func convertBytesToSamples(audioBytes []byte) []int16 {
	samples := make([]int16, len(audioBytes)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(audioBytes[i*2 : i*2+2]))
	}
	return samples
}
