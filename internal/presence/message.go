package presence

import (
	"encoding/json"
	"errors"
)

// ErrMalformedMessage indicates a broadcast payload that is neither variant.
var ErrMalformedMessage = errors.New("presence: malformed broadcast message")

// Message is the broadcast payload: exactly one of WindowInfo or RestartEpoch.
type Message struct {
	WindowInfo   *WindowInfo `json:"windowInfo,omitempty"`
	RestartEpoch int64       `json:"restartEpoch,omitempty"`
}

func InfoMessage(w WindowInfo) Message { return Message{WindowInfo: &w} }

func RestartMessage(epoch int64) Message { return Message{RestartEpoch: epoch} }

func (m Message) Encode() ([]byte, error) {
	if (m.WindowInfo == nil) == (m.RestartEpoch == 0) {
		return nil, ErrMalformedMessage
	}
	return json.Marshal(m)
}

func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, errors.Join(ErrMalformedMessage, err)
	}
	if (m.WindowInfo == nil) == (m.RestartEpoch == 0) {
		return Message{}, ErrMalformedMessage
	}
	return m, nil
}
