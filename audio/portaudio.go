package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

// GraphCapture runs a portaudio callback stream. Each callback converts the
// float block to PCM16 and hands it to a pump goroutine. A block the pump is
// not ready to take is dropped.
type GraphCapture struct {
	format Format
	log    zerolog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewGraphCapture(format Format, logger zerolog.Logger) *GraphCapture {
	return &GraphCapture{
		format: format,
		log:    logger.With().Str("component", "capture").Str("platform", string(Graph)).Logger(),
	}
}

func (g *GraphCapture) Start(onFrame FrameHandler) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stream != nil {
		return errors.New("capture already started")
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	blocks := make(chan []byte)
	process := func(in []float32) {
		offer(blocks, EncodeFloat32(make([]byte, 0, len(in)*2), in))
	}

	stream, err := portaudio.OpenDefaultStream(
		g.format.Channels,
		0,
		float64(g.format.SampleRate),
		g.format.FramesPerBuffer,
		process,
	)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	g.stream = stream
	g.done = make(chan struct{})
	g.wg.Add(1)
	go g.pump(blocks, g.done, onFrame)

	g.log.Info().Int("sample_rate", g.format.SampleRate).Int("frames", g.format.FramesPerBuffer).Msg("audio streaming started")
	return nil
}

// offer hands block to a waiting receiver and reports whether one was there.
func offer(blocks chan<- []byte, block []byte) bool {
	select {
	case blocks <- block:
		return true
	default:
		return false
	}
}

func (g *GraphCapture) pump(blocks <-chan []byte, done <-chan struct{}, onFrame FrameHandler) {
	defer g.wg.Done()
	for {
		select {
		case <-done:
			return
		case frame := <-blocks:
			onFrame(frame)
		}
	}
}

func (g *GraphCapture) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stream == nil {
		return nil
	}

	var errs []error
	if err := g.stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop input stream: %w", err))
	}
	if err := g.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close input stream: %w", err))
	}
	portaudio.Terminate()

	close(g.done)
	g.wg.Wait()
	g.stream = nil

	g.log.Info().Msg("audio streaming stopped")
	return errors.Join(errs...)
}

func probeGraph(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := portaudio.Initialize(); err != nil {
		return &PermissionError{Err: err}
	}
	defer portaudio.Terminate()

	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return &PermissionError{Err: err}
	}
	if dev == nil || dev.MaxInputChannels < 1 {
		return &PermissionError{Err: errors.New("no input device available")}
	}
	return nil
}
