package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/d1nch8g/dialcoach/agent"
	"github.com/d1nch8g/dialcoach/audio"
	"github.com/d1nch8g/dialcoach/callstate"
	"github.com/d1nch8g/dialcoach/config"
	"github.com/d1nch8g/dialcoach/contacts"
	"github.com/d1nch8g/dialcoach/credential"
	"github.com/d1nch8g/dialcoach/engine"
	"github.com/d1nch8g/dialcoach/keepalive"
	"github.com/d1nch8g/dialcoach/sound"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// endedLinger is how long the ended screen stays up before returning.
const endedLinger = 2 * time.Second

func newCallCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	var (
		difficulty string
		localKey   bool
	)

	cmd := &cobra.Command{
		Use:   "call [contact-id]",
		Short: "Start a practice call",
		Long: `Start a practice call with a prospect from the roster.

The call difficulty comes from the contact unless --difficulty is given;
with neither, a medium difficulty call is placed. Press Ctrl-C to hang up.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contact, d, err := resolveCall(args, difficulty)
			if err != nil {
				return err
			}
			return runCall(cmd.Context(), cfg, logger, cmd.OutOrStdout(), contact, d, localKey)
		},
	}

	cmd.Flags().StringVarP(&difficulty, "difficulty", "d", "", "call difficulty: easy, medium or hard")
	cmd.Flags().BoolVar(&localKey, "local-key", false, "use DEEPGRAM_API_KEY from the local environment instead of the backend")
	return cmd
}

func resolveCall(args []string, flag string) (*contacts.Contact, agent.Difficulty, error) {
	var contact *contacts.Contact
	d := agent.Medium

	if len(args) > 0 {
		c, err := contacts.Find(args[0])
		if err != nil {
			return nil, "", err
		}
		contact = &c
		d = c.Difficulty
	}
	if flag != "" {
		parsed, err := agent.ParseDifficulty(flag)
		if err != nil {
			return nil, "", err
		}
		d = parsed
	}
	return contact, d, nil
}

func runCall(
	ctx context.Context,
	cfg *config.Config,
	logger zerolog.Logger,
	out io.Writer,
	contact *contacts.Contact,
	d agent.Difficulty,
	localKey bool,
) error {
	platform, err := audio.ParsePlatform(cfg.Audio.Platform)
	if err != nil {
		return err
	}

	if cfg.KeepAliveSchedule != "" && !localKey {
		stopKeepAlive, err := keepalive.Start(ctx, cfg.APIURL, cfg.KeepAliveSchedule, logger)
		if err != nil {
			return err
		}
		defer stopKeepAlive()
	}

	var source credential.Source = credential.NewClient(cfg.APIURL, logger)
	if localKey {
		source = credential.Static(cfg.DeepgramAPIKey)
	}

	captureFormat := audio.Format{
		SampleRate:      cfg.Audio.SampleRate,
		Channels:        1,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
	}
	playbackFormat := sound.Format{
		Encoding:   cfg.Audio.OutputEncoding,
		Container:  cfg.Audio.OutputContainer,
		SampleRate: cfg.Audio.OutputSampleRate,
		Channels:   1,
	}

	store := callstate.New()
	eng := engine.NewEngine(
		engine.EngineConfig{
			AgentURL: cfg.AgentURL,
			Settings: agent.SettingsOptions{
				InputSampleRate:  cfg.Audio.SampleRate,
				OutputEncoding:   cfg.Audio.OutputEncoding,
				OutputContainer:  cfg.Audio.OutputContainer,
				OutputSampleRate: cfg.Audio.OutputSampleRate,
				ListenModel:      cfg.Agent.ListenModel,
				ThinkProvider:    cfg.Agent.ThinkProvider,
				ThinkModel:       cfg.Agent.ThinkModel,
				Voice:            cfg.Agent.Voice,
			},
		},
		store,
		source,
		agent.NewWSDialer(),
		engine.Platform{
			Permission: audio.Prober(platform),
			NewCapture: func() (audio.Capture, error) {
				return audio.New(platform, captureFormat, logger)
			},
			NewPlayer: func() (sound.Player, error) {
				return sound.New(platform, playbackFormat, logger)
			},
		},
		logger,
	)
	defer eng.Close()

	updates, unsubscribe := store.Subscribe()
	defer unsubscribe()

	view := &callView{out: out}
	view.header(contact, d)

	if err := eng.Init(ctx); err != nil {
		return fmt.Errorf("failed to load credential: %w", err)
	}
	if err := eng.StartCall(ctx, d); err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	hangup := sigCtx.Done()

	var lingering <-chan time.Time
	for {
		select {
		case <-hangup:
			hangup = nil
			stop()
			view.line("Hanging up...")
			eng.EndCall()

		case status := <-updates:
			view.status(status)
			switch {
			case status.State == callstate.Ended && lingering == nil:
				lingering = time.After(endedLinger)
			case status.State == callstate.Idle && status.Error != "":
				return fmt.Errorf("call failed: %s", status.Error)
			}

		case line := <-eng.Transcript():
			view.transcript(line)

		case <-lingering:
			return nil
		}
	}
}

// callView renders store changes and transcript lines as text.
type callView struct {
	out  io.Writer
	last callstate.Status
	seen bool
}

func (v *callView) header(contact *contacts.Contact, d agent.Difficulty) {
	if contact != nil {
		fmt.Fprintf(v.out, "%s %s, %s at %s\n", contact.Avatar, contact.Name, contact.Role, contact.Company)
		fmt.Fprintf(v.out, "  %s\n", contact.Description)
	}
	fmt.Fprintf(v.out, "Difficulty: %s\n", d)
}

func (v *callView) line(s string) {
	fmt.Fprintln(v.out, s)
}

func (v *callView) status(s callstate.Status) {
	prev := v.last
	first := !v.seen
	v.last, v.seen = s, true

	if s.Error != "" && (first || s.Error != prev.Error) {
		fmt.Fprintf(v.out, "Error: %s\n", s.Error)
	}
	if first || s.State != prev.State {
		switch s.State {
		case callstate.Connecting:
			v.line("Connecting...")
		case callstate.Connected:
			v.line("Connected. Start talking, press Ctrl-C to end the call.")
		case callstate.Ended:
			v.line("Call ended.")
		}
	}
	if s.State == callstate.Connected && (first || s.Speaking != prev.Speaking) {
		if s.Speaking {
			v.line("[prospect speaking]")
		} else {
			v.line("[listening]")
		}
	}
}

func (v *callView) transcript(l agent.ConversationLine) {
	who := "Prospect"
	if l.Role == "user" {
		who = "You"
	}
	fmt.Fprintf(v.out, "%s: %s\n", who, l.Content)
}
