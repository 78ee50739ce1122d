package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/d1nch8g/dialcoach/agent"
	"github.com/d1nch8g/dialcoach/audio"
	"github.com/d1nch8g/dialcoach/callstate"
	"github.com/d1nch8g/dialcoach/credential"
	"github.com/d1nch8g/dialcoach/sound"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrCallInProgress rejects StartCall while a call is connecting or connected.
	ErrCallInProgress = errors.New("call already in progress")
	// ErrEngineClosed rejects StartCall after Close.
	ErrEngineClosed = errors.New("engine closed")
)

// EngineConfig holds the configuration for the call engine
type EngineConfig struct {
	AgentURL string
	Settings agent.SettingsOptions
}

// Platform bundles the audio adapters selected for the host.
type Platform struct {
	Permission audio.PermissionFunc
	NewCapture func() (audio.Capture, error)
	NewPlayer  func() (sound.Player, error)
}

// session is the one live call. Its fields are guarded by Engine.mu.
type session struct {
	id         uuid.UUID
	difficulty agent.Difficulty
	state      callstate.State
	speaking   bool
	log        zerolog.Logger

	cancelDial context.CancelFunc
	conn       agent.Conn
	capture    audio.Capture
	player     sound.Player
	playerErr  error
}

// Engine is the call session controller. All state transitions happen under
// mu, so dial completion, inbound events and user intents are serialized.
type Engine struct {
	config      EngineConfig
	store       *callstate.Store
	credentials credential.Source
	dialer      agent.Dialer
	platform    Platform
	log         zerolog.Logger

	mu         sync.Mutex
	ready      bool
	credential *credential.Credential
	lastErr    error
	sess       *session
	closed     bool
	transcript chan agent.ConversationLine
}

// NewEngine creates a new call engine instance
func NewEngine(
	config EngineConfig,
	store *callstate.Store,
	credentials credential.Source,
	dialer agent.Dialer,
	platform Platform,
	logger zerolog.Logger,
) *Engine {
	if config.AgentURL == "" {
		config.AgentURL = "wss://agent.deepgram.com/v1/agent/converse"
	}
	if platform.Permission == nil {
		platform.Permission = func(context.Context) error { return nil }
	}

	return &Engine{
		config:      config,
		store:       store,
		credentials: credentials,
		dialer:      dialer,
		platform:    platform,
		log:         logger.With().Str("component", "engine").Logger(),
		transcript:  make(chan agent.ConversationLine, 32),
	}
}

// Init fetches the agent credential once. Ready reports true afterwards
// whether or not the fetch succeeded; a failure stays in LastError.
func (e *Engine) Init(ctx context.Context) error {
	cred, err := e.credentials.Fetch(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.ready = true
	if err != nil {
		e.log.Error().Err(err).Msg("credential fetch failed")
		e.setErrorLocked(err)
		return err
	}
	e.credential = &cred
	e.setErrorLocked(nil)
	return nil
}

// Ready reports whether Init has finished.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// LastError returns the most recent error surfaced to the user.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// State returns the current connection state.
func (e *Engine) State() callstate.State {
	return e.store.Snapshot().State
}

// Transcript yields conversation lines. Lines are dropped when the reader
// falls behind.
func (e *Engine) Transcript() <-chan agent.ConversationLine {
	return e.transcript
}

// StartCall begins a call at the given difficulty. It returns once the
// connection attempt is under way; progress is published to the store.
func (e *Engine) StartCall(ctx context.Context, difficulty agent.Difficulty) error {
	if !difficulty.Valid() {
		return fmt.Errorf("invalid difficulty %q", difficulty)
	}

	e.mu.Lock()
	if err := e.checkStartableLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.credential == nil {
		err := e.missingCredentialLocked()
		e.mu.Unlock()
		return err
	}
	cred := *e.credential
	e.mu.Unlock()

	if err := e.platform.Permission(ctx); err != nil {
		var permErr *audio.PermissionError
		if !errors.As(err, &permErr) {
			permErr = &audio.PermissionError{Err: err}
		}
		e.log.Warn().Err(err).Msg("microphone permission denied")

		e.mu.Lock()
		defer e.mu.Unlock()
		if err := e.checkStartableLocked(); err != nil {
			return err
		}
		e.setErrorLocked(permErr)
		return permErr
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkStartableLocked(); err != nil {
		return err
	}

	dialCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	id := uuid.New()
	sess := &session{
		id:         id,
		difficulty: difficulty,
		state:      callstate.Connecting,
		cancelDial: cancel,
		log:        e.log.With().Str("session", id.String()).Str("difficulty", difficulty.String()).Logger(),
	}
	e.sess = sess
	e.setErrorLocked(nil)
	e.store.Set(callstate.Connecting, false)

	sess.log.Info().Str("url", e.config.AgentURL).Msg("starting call")
	go e.connect(dialCtx, sess, cred)
	return nil
}

func (e *Engine) checkStartableLocked() error {
	if e.closed {
		return ErrEngineClosed
	}
	if e.sess != nil && e.sess.state.Active() {
		e.log.Debug().Str("state", string(e.sess.state)).Msg("start rejected, call in progress")
		return ErrCallInProgress
	}
	return nil
}

func (e *Engine) missingCredentialLocked() error {
	err := &credential.ConfigError{Msg: "not connected to server", Err: e.lastErr}
	var cfgErr *credential.ConfigError
	if errors.As(e.lastErr, &cfgErr) {
		err.Msg = "not connected to server: " + cfgErr.Msg
	}
	e.log.Error().Msg("agent credential not available")
	e.setErrorLocked(err)
	return err
}

func (e *Engine) connect(ctx context.Context, sess *session, cred credential.Credential) {
	conn, err := e.dialer.Dial(ctx, e.config.AgentURL, cred.APIKey)

	e.mu.Lock()
	if !e.connectingLocked(sess) {
		// Ended while dialing.
		e.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		e.failLocked(sess, asTransportError("dial", e.config.AgentURL, err))
		e.mu.Unlock()
		return
	}
	sess.conn = conn
	e.mu.Unlock()
	sess.log.Info().Msg("voice agent connected")

	// Blocking steps run unlocked so EndCall can close conn underneath them.
	settings := agent.NewSettings(e.config.Settings, sess.difficulty)
	if err := conn.WriteJSON(settings); err != nil {
		e.fail(sess, asTransportError("send", "", err))
		return
	}
	sess.log.Info().Msg("configuration sent")

	capture, err := e.platform.NewCapture()
	if err == nil {
		err = capture.Start(e.frameHandler(sess, conn))
	}
	if err != nil {
		capture = nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.connectingLocked(sess) {
		if capture != nil {
			e.safely(sess, "stop capture", capture.Stop)
		}
		return
	}
	if err != nil {
		e.failLocked(sess, fmt.Errorf("failed to start recording: %w", err))
		return
	}
	sess.capture = capture

	sess.state = callstate.Connected
	sess.speaking = false
	e.store.Set(callstate.Connected, false)

	go e.readLoop(sess, conn)
}

func (e *Engine) connectingLocked(sess *session) bool {
	return e.sess == sess && sess.state == callstate.Connecting
}

// frameHandler forwards captured frames while the channel is writable and
// drops them otherwise. It never takes e.mu: capture Stop waits for it.
func (e *Engine) frameHandler(sess *session, conn agent.Conn) audio.FrameHandler {
	return func(frame []byte) {
		if !conn.Open() {
			return
		}
		err := conn.WriteBinary(frame)
		if err == nil || errors.Is(err, agent.ErrClosed) {
			return
		}
		go e.fail(sess, asTransportError("send", "", err))
	}
}

func (e *Engine) readLoop(sess *session, conn agent.Conn) {
	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			e.handleReadError(sess, err)
			return
		}

		switch msg.Type {
		case agent.TextMessage:
			e.handleEvent(sess, msg.Data)
		case agent.BinaryMessage:
			e.handleAudio(sess, msg.Data)
		}
	}
}

func (e *Engine) handleEvent(sess *session, data []byte) {
	ev, err := agent.DecodeEvent(data)
	if err != nil {
		sess.log.Warn().Err(err).Msg("ignoring malformed control event")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess != sess || !sess.state.Active() {
		return
	}

	switch ev.Kind {
	case agent.KindUserStartedSpeaking:
		e.setSpeakingLocked(sess, false)
	case agent.KindAgentStartedSpeaking:
		e.setSpeakingLocked(sess, true)
	case agent.KindAgentAudioDone:
		e.setSpeakingLocked(sess, false)
	case agent.KindConversationText:
		sess.log.Info().Str("role", ev.Role).Msg(ev.Content)
		select {
		case e.transcript <- agent.ConversationLine{Role: ev.Role, Content: ev.Content}:
		default:
		}
	case agent.KindError:
		protoErr := ev.ProtocolError()
		sess.log.Error().Str("code", protoErr.Code).Msg(protoErr.Message)
		e.setErrorLocked(protoErr)
	case agent.KindWelcome:
		sess.log.Info().RawJSON("event", ev.Raw).Msg("agent welcome")
	case agent.KindSettingsApplied:
		sess.log.Info().Msg("agent applied configuration")
	default:
		sess.log.Debug().Str("type", string(ev.Kind)).RawJSON("event", ev.Raw).Msg("unhandled agent message")
	}
}

func (e *Engine) handleAudio(sess *session, payload []byte) {
	e.mu.Lock()
	if e.sess != sess || sess.state != callstate.Connected {
		e.mu.Unlock()
		return
	}
	if sess.player == nil && sess.playerErr == nil {
		player, err := e.platform.NewPlayer()
		if err != nil {
			sess.log.Error().Err(err).Msg("failed to open audio output")
			sess.playerErr = err
		}
		sess.player = player
	}
	player := sess.player
	e.mu.Unlock()

	if player == nil {
		return
	}
	if err := player.Play(payload); err != nil {
		sess.log.Debug().Err(err).Int("bytes", len(payload)).Msg("audio payload dropped")
	}
}

func (e *Engine) handleReadError(sess *session, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess != sess || !sess.state.Active() {
		return
	}

	var closeErr *agent.CloseError
	if errors.As(err, &closeErr) {
		sess.log.Info().Int("code", closeErr.Code).Str("reason", closeErr.Reason).Msg("connection closed")
		e.endLocked(sess)
		return
	}
	e.failLocked(sess, asTransportError("receive", "", err))
}

// EndCall hangs up. It is safe in any state and never fails; outside of a
// connecting or connected call it does nothing.
func (e *Engine) EndCall() {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess := e.sess
	if sess == nil || !sess.state.Active() {
		return
	}
	sess.log.Info().Msg("ending call")
	e.endLocked(sess)
}

// Close ends any active call and rejects further calls.
func (e *Engine) Close() error {
	e.EndCall()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *Engine) fail(sess *session, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess != sess || !sess.state.Active() {
		return
	}
	e.failLocked(sess, err)
}

// failLocked aborts the session back to idle with err surfaced to the user.
func (e *Engine) failLocked(sess *session, err error) {
	sess.log.Error().Err(err).Msg("call failed")
	e.releaseLocked(sess)
	sess.state = callstate.Idle
	e.setErrorLocked(err)
	e.store.Set(callstate.Idle, false)
}

func (e *Engine) endLocked(sess *session) {
	e.releaseLocked(sess)
	sess.state = callstate.Ended
	e.store.Set(callstate.Ended, false)
}

// releaseLocked frees everything the session owns. Every step runs even if
// an earlier one fails.
func (e *Engine) releaseLocked(sess *session) {
	if sess.cancelDial != nil {
		sess.cancelDial()
		sess.cancelDial = nil
	}
	// Closing the channel first unblocks a frame write stuck in the capture
	// pump, which capture Stop waits for.
	if sess.conn != nil {
		e.safely(sess, "close channel", sess.conn.Close)
		sess.conn = nil
	}
	if sess.capture != nil {
		e.safely(sess, "stop capture", sess.capture.Stop)
		sess.capture = nil
	}
	if sess.player != nil {
		e.safely(sess, "close playback", sess.player.Close)
		sess.player = nil
	}
	sess.speaking = false
}

func (e *Engine) safely(sess *session, step string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			sess.log.Error().Interface("panic", r).Str("step", step).Msg("release step panicked")
		}
	}()
	if err := fn(); err != nil {
		sess.log.Warn().Err(err).Str("step", step).Msg("release step failed")
	}
}

func (e *Engine) setSpeakingLocked(sess *session, speaking bool) {
	sess.speaking = speaking
	e.store.SetSpeaking(speaking)
}

func (e *Engine) setErrorLocked(err error) {
	e.lastErr = err
	if err == nil {
		e.store.SetError("")
		return
	}
	e.store.SetError(err.Error())
}

func asTransportError(op, url string, err error) error {
	var transportErr *agent.TransportError
	if errors.As(err, &transportErr) {
		return err
	}
	return &agent.TransportError{Op: op, URL: url, Err: err}
}
