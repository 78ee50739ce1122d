package agent

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by writes on a channel that is no longer open.
var ErrClosed = errors.New("agent: channel closed")

// TransportError wraps a dial, send or receive failure.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Op != "" && e.URL != "":
		return fmt.Sprintf("transport error during %s %s: %v", e.Op, e.URL, e.Err)
	case e.Op != "":
		return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("transport error: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CloseError reports that the remote side closed the channel, cleanly or not.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("agent: channel closed by remote (code %d)", e.Code)
	}
	return fmt.Sprintf("agent: channel closed by remote (code %d): %s", e.Code, e.Reason)
}

// RemoteProtocolError is an Error event sent by the agent. It does not close
// the channel by itself.
type RemoteProtocolError struct {
	Code    string
	Message string
}

// Error returns the message only; Code is for logs.
func (e *RemoteProtocolError) Error() string {
	return e.Message
}
