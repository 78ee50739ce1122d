package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL   = "http://localhost:3001"
	DefaultAgentURL = "wss://agent.deepgram.com/v1/agent/converse"
)

// AudioConfig describes local capture and the negotiated output format.
type AudioConfig struct {
	Platform         string
	SampleRate       int
	FramesPerBuffer  int
	OutputEncoding   string
	OutputContainer  string
	OutputSampleRate int
}

// AgentConfig selects the remote agent's listen/think/speak models.
type AgentConfig struct {
	ListenModel   string
	ThinkProvider string
	ThinkModel    string
	Voice         string
}

type Config struct {
	APIURL            string
	AgentURL          string
	DeepgramAPIKey    string
	Port              int
	GRPCPort          int
	LogLevel          string
	KeepAliveSchedule string
	Audio             AudioConfig
	Agent             AgentConfig
}

// LoadConfig reads .env (when present) and the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	var errs []error
	getInt := func(key string, def int) int {
		raw := get(key, "")
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid integer %q", key, raw))
			return def
		}
		return n
	}

	apiURL := get("API_URL", get("EXPO_PUBLIC_API_URL", DefaultAPIURL))

	cfg := &Config{
		APIURL:            strings.TrimSuffix(apiURL, "/"),
		AgentURL:          get("DEEPGRAM_AGENT_URL", DefaultAgentURL),
		DeepgramAPIKey:    get("DEEPGRAM_API_KEY", ""),
		Port:              getInt("PORT", 3001),
		GRPCPort:          getInt("GRPC_PORT", 0),
		LogLevel:          get("LOG_LEVEL", "info"),
		KeepAliveSchedule: "@every 5m",
		Audio: AudioConfig{
			Platform:         strings.ToLower(get("AUDIO_PLATFORM", "graph")),
			SampleRate:       getInt("AUDIO_SAMPLE_RATE", 16000),
			FramesPerBuffer:  getInt("AUDIO_FRAMES_PER_BUFFER", 4096),
			OutputEncoding:   get("AUDIO_OUTPUT_ENCODING", "linear16"),
			OutputContainer:  get("AUDIO_OUTPUT_CONTAINER", "none"),
			OutputSampleRate: getInt("AUDIO_OUTPUT_SAMPLE_RATE", 16000),
		},
		Agent: AgentConfig{
			ListenModel:   get("AGENT_LISTEN_MODEL", "nova-2"),
			ThinkProvider: get("AGENT_THINK_PROVIDER", "open_ai"),
			ThinkModel:    get("AGENT_THINK_MODEL", "gpt-4o-mini"),
			Voice:         get("AGENT_VOICE", "aura-asteria-en"),
		},
	}

	// An explicitly empty schedule disables the pinger.
	if v, ok := lookup("KEEPALIVE_SCHEDULE"); ok {
		cfg.KeepAliveSchedule = strings.TrimSpace(v)
	}

	switch cfg.Audio.Platform {
	case "graph", "device":
	default:
		errs = append(errs, fmt.Errorf("AUDIO_PLATFORM: unknown platform %q (want graph or device)", cfg.Audio.Platform))
	}
	if cfg.Audio.SampleRate == 0 {
		errs = append(errs, errors.New("AUDIO_SAMPLE_RATE must be positive"))
	}
	if cfg.Audio.FramesPerBuffer == 0 {
		errs = append(errs, errors.New("AUDIO_FRAMES_PER_BUFFER must be positive"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}
