package keepalive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSchedule pings often enough to keep a sleeping free-tier host awake.
const DefaultSchedule = "@every 5m"

const pingTimeout = 10 * time.Second

// Pinger hits the backend health endpoint.
type Pinger struct {
	URL    string
	Client *http.Client
	log    zerolog.Logger
}

// NewPinger creates a pinger for the backend at baseURL.
func NewPinger(baseURL string, logger zerolog.Logger) *Pinger {
	return &Pinger{
		URL:    strings.TrimSuffix(baseURL, "/") + "/health",
		Client: &http.Client{Timeout: pingTimeout},
		log:    logger.With().Str("component", "keepalive").Logger(),
	}
}

// Ping performs one health request.
func (p *Pinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to build ping request: %w", err)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to ping %s: %w", p.URL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping %s: unexpected status %d", p.URL, resp.StatusCode)
	}
	return nil
}

func (p *Pinger) run(ctx context.Context) {
	if err := p.Ping(ctx); err != nil {
		p.log.Warn().Err(err).Msg("keep-alive ping failed")
		return
	}
	p.log.Debug().Msg("keep-alive ping ok")
}

// Start pings baseURL immediately and then on schedule until ctx is done or
// the returned stop func is called. Ping failures are only logged.
func Start(ctx context.Context, baseURL, schedule string, logger zerolog.Logger) (stop func(), err error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	p := NewPinger(baseURL, logger)

	ctx, cancel := context.WithCancel(ctx)
	scheduler := cronlib.New()
	if _, err := scheduler.AddFunc(schedule, func() { p.run(ctx) }); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid keep-alive schedule %q: %w", schedule, err)
	}

	go p.run(ctx)
	scheduler.Start()
	p.log.Info().Str("url", p.URL).Str("schedule", schedule).Msg("keep-alive started")

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		<-ctx.Done()
		<-scheduler.Stop().Done()
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-finished
		})
	}, nil
}
