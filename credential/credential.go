package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ConfigPath is where the backend hands out the provider key.
const ConfigPath = "/api/config"

// FetchTimeout bounds one credential request, so a backend that accepts the
// connection but never answers still lets Init finish.
const FetchTimeout = 10 * time.Second

// Credential is the provider API key used to authenticate the agent socket.
type Credential struct {
	APIKey string
}

// Source hands out a Credential.
type Source interface {
	Fetch(ctx context.Context) (Credential, error)
}

// ConfigError means the credential could not be obtained. It blocks call
// start until a new engine is created.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	return e.Msg
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

type configResponse struct {
	DeepgramAPIKey string `json:"DEEPGRAM_API_KEY"`
}

// Client fetches the credential from the backend.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new credential client for the backend at baseURL.
func NewClient(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: FetchTimeout},
		log:        logger.With().Str("component", "credential").Logger(),
	}
}

// Fetch implements Source.
func (c *Client) Fetch(ctx context.Context) (Credential, error) {
	url := c.BaseURL + ConfigPath
	c.log.Info().Str("url", url).Msg("fetching agent credential")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Credential{}, &ConfigError{Msg: "invalid server address", Err: err}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Credential{}, &ConfigError{Msg: "cannot reach server - is it running?", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		c.log.Error().Int("status", resp.StatusCode).Str("body", string(body)).Msg("credential endpoint failed")
		return Credential{}, &ConfigError{Msg: fmt.Sprintf("server error (%d)", resp.StatusCode)}
	}

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		c.log.Error().Str("content_type", ct).Msg("credential endpoint returned non-JSON")
		return Credential{}, &ConfigError{Msg: "server returned invalid response"}
	}

	var payload configResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Credential{}, &ConfigError{Msg: "server returned invalid response", Err: err}
	}
	if strings.TrimSpace(payload.DeepgramAPIKey) == "" {
		return Credential{}, &ConfigError{Msg: "DEEPGRAM_API_KEY not set on server"}
	}

	c.log.Info().Msg("credential loaded")
	return Credential{APIKey: payload.DeepgramAPIKey}, nil
}

// Static is a Source that always returns the same key, for local runs
// without the backend.
type Static string

// Fetch implements Source.
func (s Static) Fetch(context.Context) (Credential, error) {
	if strings.TrimSpace(string(s)) == "" {
		return Credential{}, &ConfigError{Msg: "DEEPGRAM_API_KEY not set", Err: errors.New("empty static key")}
	}
	return Credential{APIKey: string(s)}, nil
}
