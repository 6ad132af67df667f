// Package protocol defines the messages exchanged between the coordinator, the
// processing engine and the control surface.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgnsrekt/tabvoice/internal/settings"
)

// Type names a message kind on the wire.
type Type string

const (
	// Coordinator → engine.
	TypeStartProcessing Type = "start-processing"
	TypeStopProcessing  Type = "stop-processing"
	TypeUpdateSettings  Type = "update-settings"

	// Engine → coordinator.
	TypeProcessingStarted Type = "processing-started"
	TypeProcessingStopped Type = "processing-stopped"
	TypeError             Type = "error"

	// Control surface ↔ coordinator.
	TypeGetStatus     Type = "get-status"
	TypeGetSettings   Type = "get-settings"
	TypeToggleCapture Type = "toggle-capture"
	TypeStatusUpdate  Type = "status-update"
)

// ErrMissingField reports a message lacking a field its type requires.
var ErrMissingField = errors.New("missing required field")

// Message is the envelope for every message kind. Which fields are meaningful
// depends on Type; Validate enforces the required ones.
type Message struct {
	Type     Type                        `json:"type"`
	TabID    settings.TabID              `json:"tabId"`
	StreamID string                      `json:"streamId,omitempty"`
	Settings *settings.EnhancementConfig `json:"settings,omitempty"`
	Status   string                      `json:"status,omitempty"`
	Error    string                      `json:"error,omitempty"`
}

func StartProcessing(tabID settings.TabID, streamID string, cfg settings.EnhancementConfig) Message {
	return Message{Type: TypeStartProcessing, TabID: tabID, StreamID: streamID, Settings: &cfg}
}

func StopProcessing(tabID settings.TabID) Message {
	return Message{Type: TypeStopProcessing, TabID: tabID}
}

func UpdateSettings(tabID settings.TabID, cfg settings.EnhancementConfig) Message {
	return Message{Type: TypeUpdateSettings, TabID: tabID, Settings: &cfg}
}

// ProcessingStarted announces a live session. streamID echoes the stream the
// session was built from and may be empty.
func ProcessingStarted(tabID settings.TabID, streamID string) Message {
	return Message{Type: TypeProcessingStarted, TabID: tabID, StreamID: streamID}
}

func ProcessingStopped(tabID settings.TabID, streamID string) Message {
	return Message{Type: TypeProcessingStopped, TabID: tabID, StreamID: streamID}
}

func Failure(tabID settings.TabID, streamID string, err error) Message {
	msg := Message{Type: TypeError, TabID: tabID, StreamID: streamID, Error: "unknown error"}
	if err != nil {
		msg.Error = err.Error()
	}
	return msg
}

func StatusUpdate(tabID settings.TabID, status string, errText string) Message {
	return Message{Type: TypeStatusUpdate, TabID: tabID, Status: status, Error: errText}
}

// Validate checks that msg carries every field its type requires.
func Validate(msg Message) error {
	if msg.Type == "" {
		return fmt.Errorf("type: %w", ErrMissingField)
	}
	if msg.TabID <= 0 {
		return fmt.Errorf("%s: tabId: %w", msg.Type, ErrMissingField)
	}
	switch msg.Type {
	case TypeStartProcessing:
		if msg.StreamID == "" {
			return fmt.Errorf("%s: streamId: %w", msg.Type, ErrMissingField)
		}
	case TypeUpdateSettings:
		if msg.Settings == nil {
			return fmt.Errorf("%s: settings: %w", msg.Type, ErrMissingField)
		}
	case TypeError:
		if msg.Error == "" {
			return fmt.Errorf("%s: error: %w", msg.Type, ErrMissingField)
		}
	case TypeStatusUpdate:
		if msg.Status == "" {
			return fmt.Errorf("%s: status: %w", msg.Type, ErrMissingField)
		}
	case TypeStopProcessing, TypeProcessingStarted, TypeProcessingStopped,
		TypeGetStatus, TypeGetSettings, TypeToggleCapture:
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return nil
}

func Encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", msg.Type, err)
	}
	return data, nil
}

// wireMessage reads settings as a Partial so fields a sender omitted take
// their declared defaults instead of zero values.
type wireMessage struct {
	Message
	Settings *settings.Partial `json:"settings,omitempty"`
}

// Decode parses a single envelope. Settings are resolved over
// settings.Defaults. It does not validate required fields.
func Decode(data []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return Message{}, fmt.Errorf("protocol: decode: %w", err)
	}
	msg := w.Message
	if w.Settings != nil {
		cfg := settings.Resolve(*w.Settings)
		msg.Settings = &cfg
	}
	return msg, nil
}
