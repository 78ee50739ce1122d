package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the "type" field of an inbound control event.
type Kind string

const (
	KindUserStartedSpeaking  Kind = "UserStartedSpeaking"
	KindAgentStartedSpeaking Kind = "AgentStartedSpeaking"
	KindAgentAudioDone       Kind = "AgentAudioDone"
	KindConversationText     Kind = "ConversationText"
	KindError                Kind = "Error"
	KindWelcome              Kind = "Welcome"
	KindSettingsApplied      Kind = "SettingsApplied"
)

// Event is a decoded text frame. Only the fields used by the dispatch table
// are lifted out; Raw keeps the full payload for logging.
type Event struct {
	Kind        Kind
	Role        string
	Content     string
	Message     string
	Description string
	Code        string
	Raw         json.RawMessage
}

type wireEvent struct {
	Type        string `json:"type"`
	Role        string `json:"role"`
	Content     string `json:"content"`
	Message     string `json:"message"`
	Description string `json:"description"`
	Code        string `json:"code"`
}

// DecodeEvent parses one text frame.
func DecodeEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, fmt.Errorf("decode control event: %w", err)
	}
	return Event{
		Kind:        Kind(strings.TrimSpace(w.Type)),
		Role:        w.Role,
		Content:     w.Content,
		Message:     w.Message,
		Description: w.Description,
		Code:        w.Code,
		Raw:         append(json.RawMessage(nil), data...),
	}, nil
}

// ConversationLine is one transcript entry from a ConversationText event.
type ConversationLine struct {
	Role    string
	Content string
}

// ProtocolError converts an Error event into a RemoteProtocolError.
func (e Event) ProtocolError() *RemoteProtocolError {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = strings.TrimSpace(e.Description)
	}
	if msg == "" {
		msg = "connection error"
	}
	return &RemoteProtocolError{Code: e.Code, Message: msg}
}
