package agent

// SettingsType is the type tag of the first message on every session.
const SettingsType = "SettingsConfiguration"

// Settings is the session configuration message. It must be the first thing
// written on the socket, before any audio.
type Settings struct {
	Type  string        `json:"type"`
	Audio AudioSettings `json:"audio"`
	Agent AgentSettings `json:"agent"`
}

type AudioSettings struct {
	Input  AudioInput  `json:"input"`
	Output AudioOutput `json:"output"`
}

type AudioInput struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type AudioOutput struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Container  string `json:"container"`
}

type AgentSettings struct {
	Listen Listen `json:"listen"`
	Think  Think  `json:"think"`
	Speak  Speak  `json:"speak"`
}

type Listen struct {
	Model string `json:"model"`
}

type Provider struct {
	Type string `json:"type"`
}

type Think struct {
	Provider     Provider `json:"provider"`
	Model        string   `json:"model"`
	Instructions string   `json:"instructions"`
}

type Speak struct {
	Model string `json:"model"`
}

// SettingsOptions carries everything in Settings that does not depend on
// the difficulty.
type SettingsOptions struct {
	InputSampleRate  int
	OutputEncoding   string
	OutputContainer  string
	OutputSampleRate int
	ListenModel      string
	ThinkProvider    string
	ThinkModel       string
	Voice            string
}

// DefaultSettingsOptions matches the 16 kHz linear16 capture format.
func DefaultSettingsOptions() SettingsOptions {
	return SettingsOptions{
		InputSampleRate:  16000,
		OutputEncoding:   "linear16",
		OutputContainer:  "none",
		OutputSampleRate: 16000,
		ListenModel:      "nova-2",
		ThinkProvider:    "open_ai",
		ThinkModel:       "gpt-4o-mini",
		Voice:            "aura-asteria-en",
	}
}

func (o SettingsOptions) withDefaults() SettingsOptions {
	def := DefaultSettingsOptions()
	if o.InputSampleRate == 0 {
		o.InputSampleRate = def.InputSampleRate
	}
	if o.OutputEncoding == "" {
		o.OutputEncoding = def.OutputEncoding
	}
	if o.OutputContainer == "" {
		o.OutputContainer = def.OutputContainer
	}
	if o.OutputSampleRate == 0 {
		o.OutputSampleRate = def.OutputSampleRate
	}
	if o.ListenModel == "" {
		o.ListenModel = def.ListenModel
	}
	if o.ThinkProvider == "" {
		o.ThinkProvider = def.ThinkProvider
	}
	if o.ThinkModel == "" {
		o.ThinkModel = def.ThinkModel
	}
	if o.Voice == "" {
		o.Voice = def.Voice
	}
	return o
}

// NewSettings builds the configuration message for a session at difficulty d.
func NewSettings(opts SettingsOptions, d Difficulty) Settings {
	opts = opts.withDefaults()
	return Settings{
		Type: SettingsType,
		Audio: AudioSettings{
			Input: AudioInput{
				Encoding:   "linear16",
				SampleRate: opts.InputSampleRate,
			},
			Output: AudioOutput{
				Encoding:   opts.OutputEncoding,
				SampleRate: opts.OutputSampleRate,
				Container:  opts.OutputContainer,
			},
		},
		Agent: AgentSettings{
			Listen: Listen{Model: opts.ListenModel},
			Think: Think{
				Provider:     Provider{Type: opts.ThinkProvider},
				Model:        opts.ThinkModel,
				Instructions: d.Instructions(),
			},
			Speak: Speak{Model: opts.Voice},
		},
	}
}
