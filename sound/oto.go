package sound

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process.
var (
	otoOnce   sync.Once
	otoCtx    *oto.Context
	otoFormat Format
	otoErr    error
)

func sharedOtoContext(f Format) (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   f.SampleRate,
			ChannelCount: f.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   100 * time.Millisecond,
		})
		if err != nil {
			otoErr = fmt.Errorf("failed to init speaker: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
		otoFormat = f
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoFormat.SampleRate != f.SampleRate || otoFormat.Channels != f.Channels {
		return nil, fmt.Errorf("speaker already opened at %d Hz/%d ch", otoFormat.SampleRate, otoFormat.Channels)
	}
	return otoCtx, nil
}

// otoSink feeds an oto player from a pull buffer.
type otoSink struct {
	player *oto.Player
	buf    *pcmBuffer
}

func newOtoSink(f Format) (*otoSink, error) {
	ctx, err := sharedOtoContext(f)
	if err != nil {
		return nil, err
	}
	buf := newPCMBuffer()
	player := ctx.NewPlayer(buf)
	player.Play()
	return &otoSink{player: player, buf: buf}, nil
}

func (s *otoSink) Write(pcm []byte, _ <-chan struct{}) error {
	return s.buf.append(pcm)
}

func (s *otoSink) Close() error {
	s.buf.close()
	return s.player.Close()
}

// pcmBuffer is the io.Reader oto pulls from. Reads block until samples
// arrive; silence is not synthesized while open.
type pcmBuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

func newPCMBuffer() *pcmBuffer {
	b := &pcmBuffer{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *pcmBuffer) append(pcm []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrPlayerClosed
	}
	b.buf = append(b.buf, pcm...)
	b.cond.Signal()
	return nil
}

func (b *pcmBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.buf) == 0 && !b.closed {
		b.cond.Wait()
	}
	if len(b.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, b.buf)
	b.buf = b.buf[n:]
	return n, nil
}

func (b *pcmBuffer) close() {
	b.mu.Lock()
	b.closed = true
	b.buf = nil
	b.cond.Broadcast()
	b.mu.Unlock()
}
