package sound

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// idleFlush is how long the queue stays empty before a held back partial
// block is padded and played.
const idleFlush = 60 * time.Millisecond

// queuedPlayer plays payloads back to back in arrival order. A payload never
// truncates the one before it; when the queue is full new payloads are
// dropped.
type queuedPlayer struct {
	out    sink
	decode Decoder
	log    zerolog.Logger

	queue     chan []byte
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    atomic.Bool
}

func newQueuedPlayer(out sink, decode Decoder, size int, logger zerolog.Logger) *queuedPlayer {
	if size <= 0 {
		size = DefaultQueueSize
	}
	p := &queuedPlayer{
		out:    out,
		decode: decode,
		log:    logger.With().Str("component", "playback").Logger(),
		queue:  make(chan []byte, size),
		done:   make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *queuedPlayer) Play(payload []byte) error {
	if p.closed.Load() {
		return ErrPlayerClosed
	}
	select {
	case p.queue <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *queuedPlayer) run() {
	defer p.wg.Done()

	flush, _ := p.out.(flusher)
	idle := time.NewTimer(idleFlush)
	idle.Stop()
	defer idle.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-idle.C:
			if err := flush.Flush(p.done); err != nil {
				p.log.Error().Err(err).Msg("error flushing audio")
			}
		case payload := <-p.queue:
			pcm, err := p.decode(payload)
			if err != nil {
				p.log.Error().Err(err).Int("bytes", len(payload)).Msg("dropping undecodable payload")
				continue
			}
			if err := p.out.Write(pcm, p.done); err != nil {
				p.log.Error().Err(err).Msg("error writing audio")
			}
			if flush != nil {
				idle.Reset(idleFlush)
			}
		}
	}
}

func (p *queuedPlayer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.done)
		p.wg.Wait()
		err = p.out.Close()
	})
	return err
}
