package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"
)

const (
	// DefaultDrainInterval is how often buffered device audio is cut into frames.
	DefaultDrainInterval = 100 * time.Millisecond
	// maxBufferedSeconds caps the device buffer; older audio is discarded.
	maxBufferedSeconds = 2
)

// DeviceCapture records from a miniaudio capture device. The device only
// offers coarse start/stop, so frames are produced by draining its buffer on
// a ticker.
type DeviceCapture struct {
	format        Format
	DrainInterval time.Duration
	log           zerolog.Logger

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	stop   chan struct{}
	wg     sync.WaitGroup
}

func NewDeviceCapture(format Format, logger zerolog.Logger) *DeviceCapture {
	return &DeviceCapture{
		format:        format,
		DrainInterval: DefaultDrainInterval,
		log:           logger.With().Str("component", "capture").Str("platform", string(Device)).Logger(),
	}
}

func (d *DeviceCapture) Start(onFrame FrameHandler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device != nil {
		return errors.New("capture already started")
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to init audio context: %w", err)
	}

	buf := newFramer(d.format.FrameBytes(), d.format.SampleRate*d.format.Channels*2*maxBufferedSeconds)

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(d.format.Channels)
	cfg.SampleRate = uint32(d.format.SampleRate)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			buf.write(input)
		},
	}

	device, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("failed to init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	d.ctx = mctx
	d.device = device
	d.stop = make(chan struct{})

	interval := d.DrainInterval
	if interval <= 0 {
		interval = DefaultDrainInterval
	}
	d.wg.Add(1)
	go d.drainLoop(buf, interval, d.stop, onFrame)

	d.log.Info().Dur("drain_interval", interval).Msg("recording started")
	return nil
}

func (d *DeviceCapture) drainLoop(buf *framer, interval time.Duration, stop <-chan struct{}, onFrame FrameHandler) {
	defer d.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for _, frame := range buf.drain() {
				onFrame(frame)
			}
		}
	}
}

func (d *DeviceCapture) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return nil
	}

	close(d.stop)
	d.wg.Wait()

	var errs []error
	if err := d.device.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop capture device: %w", err))
	}
	d.device.Uninit()
	if err := d.ctx.Uninit(); err != nil {
		errs = append(errs, fmt.Errorf("failed to release audio context: %w", err))
	}
	d.ctx.Free()

	d.device = nil
	d.ctx = nil

	d.log.Info().Msg("recording stopped")
	return errors.Join(errs...)
}

// framer accumulates raw device bytes and cuts them into fixed-size frames.
type framer struct {
	mu         sync.Mutex
	buf        []byte
	frameBytes int
	maxBytes   int
}

func newFramer(frameBytes, maxBytes int) *framer {
	if maxBytes < frameBytes {
		maxBytes = frameBytes
	}
	return &framer{frameBytes: frameBytes, maxBytes: maxBytes}
}

func (f *framer) write(p []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.buf = append(f.buf, p...)
	if over := len(f.buf) - f.maxBytes; over > 0 {
		// Keep sample alignment when discarding the oldest audio.
		over += over % 2
		f.buf = append(f.buf[:0], f.buf[over:]...)
	}
}

// drain returns every complete frame and keeps the remainder buffered.
func (f *framer) drain() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	var frames [][]byte
	for len(f.buf) >= f.frameBytes {
		frame := make([]byte, f.frameBytes)
		copy(frame, f.buf[:f.frameBytes])
		frames = append(frames, frame)
		f.buf = f.buf[f.frameBytes:]
	}
	if len(frames) > 0 {
		f.buf = append([]byte(nil), f.buf...)
	}
	return frames
}

func probeDevice(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return &PermissionError{Err: err}
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	devices, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return &PermissionError{Err: err}
	}
	if len(devices) == 0 {
		return &PermissionError{Err: errors.New("no capture device available")}
	}
	return nil
}
