package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDifficulty(t *testing.T) {
	for _, in := range []string{"easy", " Medium ", "HARD"} {
		d, err := ParseDifficulty(in)
		require.NoError(t, err, in)
		assert.True(t, d.Valid())
	}

	_, err := ParseDifficulty("impossible")
	assert.Error(t, err)
}

func TestInstructionsAreDistinct(t *testing.T) {
	seen := map[string]Difficulty{}
	for _, d := range Difficulties {
		text := d.Instructions()
		require.NotEmpty(t, strings.TrimSpace(text), d)
		if other, dup := seen[text]; dup {
			t.Fatalf("%s and %s share instructions", d, other)
		}
		seen[text] = d
	}
}

func TestSettingsWireFormat(t *testing.T) {
	settings := NewSettings(SettingsOptions{}, Hard)

	data, err := json.Marshal(settings)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, "SettingsConfiguration", got["type"])

	audio := got["audio"].(map[string]any)
	assert.Equal(t, map[string]any{"encoding": "linear16", "sample_rate": float64(16000)}, audio["input"])
	assert.Equal(t, map[string]any{"encoding": "linear16", "sample_rate": float64(16000), "container": "none"}, audio["output"])

	ag := got["agent"].(map[string]any)
	assert.Equal(t, map[string]any{"model": "nova-2"}, ag["listen"])
	assert.Equal(t, map[string]any{"model": "aura-asteria-en"}, ag["speak"])

	think := ag["think"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "open_ai"}, think["provider"])
	assert.Equal(t, "gpt-4o-mini", think["model"])
	assert.Equal(t, Hard.Instructions(), think["instructions"])
}

func TestSettingsOptionsOverride(t *testing.T) {
	settings := NewSettings(SettingsOptions{OutputEncoding: "mp3", Voice: "aura-orion-en"}, Easy)

	assert.Equal(t, "mp3", settings.Audio.Output.Encoding)
	assert.Equal(t, "none", settings.Audio.Output.Container)
	assert.Equal(t, "aura-orion-en", settings.Agent.Speak.Model)
	assert.Equal(t, Easy.Instructions(), settings.Agent.Think.Instructions)
}

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"ConversationText","role":"assistant","content":"Who is this?"}`))
	require.NoError(t, err)
	assert.Equal(t, KindConversationText, ev.Kind)
	assert.Equal(t, "assistant", ev.Role)
	assert.Equal(t, "Who is this?", ev.Content)

	ev, err = DecodeEvent([]byte(`{"type":"SomethingNew","extra":1}`))
	require.NoError(t, err)
	assert.Equal(t, Kind("SomethingNew"), ev.Kind)

	_, err = DecodeEvent([]byte(`{"type":`))
	assert.Error(t, err)
}

func TestProtocolErrorFallbacks(t *testing.T) {
	assert.Equal(t, "quota exceeded", Event{Kind: KindError, Message: "quota exceeded"}.ProtocolError().Error())

	withCode := Event{Kind: KindError, Description: "bad settings", Code: "INVALID"}.ProtocolError()
	assert.Equal(t, "bad settings", withCode.Error())
	assert.Equal(t, "INVALID", withCode.Code)

	assert.Equal(t, "connection error", Event{Kind: KindError}.ProtocolError().Error())
}

func newAgentServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) string {
	t.Helper()

	upgrader := websocket.Upgrader{
		Subprotocols: []string{"token"},
		CheckOrigin:  func(r *http.Request) bool { return true },
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn, r)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSDialerSendsTokenAndFrames(t *testing.T) {
	protocols := make(chan []string, 1)
	received := make(chan Message, 2)

	url := newAgentServer(t, func(conn *websocket.Conn, r *http.Request) {
		defer conn.Close()
		protocols <- websocket.Subprotocols(r)

		for i := 0; i < 2; i++ {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			typ := TextMessage
			if mt == websocket.BinaryMessage {
				typ = BinaryMessage
			}
			received <- Message{Type: typ, Data: data}
		}

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Welcome"}`))
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3, 4})
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, err := NewWSDialer().Dial(ctx, url, "dg-secret")
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, []string{"token", "dg-secret"}, <-protocols)
	require.True(t, conn.Open())

	require.NoError(t, conn.WriteJSON(NewSettings(SettingsOptions{}, Medium)))
	require.NoError(t, conn.WriteBinary([]byte{0, 1}))

	first := <-received
	assert.Equal(t, TextMessage, first.Type)
	assert.Contains(t, string(first.Data), SettingsType)
	assert.Equal(t, Message{Type: BinaryMessage, Data: []byte{0, 1}}, <-received)

	msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, TextMessage, msg.Type)

	msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, Message{Type: BinaryMessage, Data: []byte{1, 2, 3, 4}}, msg)

	_, err = conn.ReadMessage()
	var closeErr *CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
	assert.Equal(t, "bye", closeErr.Reason)
	assert.False(t, conn.Open())
}

func TestWSConnCloseIsIdempotent(t *testing.T) {
	url := newAgentServer(t, func(conn *websocket.Conn, r *http.Request) {
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	conn, err := NewWSDialer().Dial(context.Background(), url, "k")
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.False(t, conn.Open())
	assert.ErrorIs(t, conn.WriteBinary([]byte{1}), ErrClosed)
	assert.ErrorIs(t, conn.WriteJSON(map[string]string{}), ErrClosed)
}

func TestWSDialerFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewWSDialer().Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), "k")
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "dial", transportErr.Op)
	assert.Contains(t, err.Error(), "status 404")
}
