// Package telephony adapts the provider's media-stream websocket: decoding
// inbound stream events, and writing audio and buffer-clear commands back
// through a dedicated writer with priority ordering.
package telephony

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/voxbridge/voxbridge/pkg/bridge/session"
)

// Inbound stream events.
type (
	// ConnectedEvent is the first frame after the websocket upgrade.
	ConnectedEvent struct {
		Protocol string
		Version  string
	}

	// StartEvent binds the stream id and carries the call metadata the
	// voice webhook received, relayed through the TwiML custom parameter.
	StartEvent struct {
		StreamSID string
		CallSID   string
		Incoming  session.IncomingCall
	}

	// MediaEvent is one chunk of caller audio. Payload stays base64; the
	// bridge never decodes audio.
	MediaEvent struct {
		Payload string
	}

	// StopEvent ends the stream.
	StopEvent struct {
		StreamSID string
	}

	// MarkEvent acknowledges a previously sent mark.
	MarkEvent struct {
		Name string
	}

	// UnknownEvent is any event name the bridge does not handle.
	UnknownEvent struct {
		Event string
	}
)

type rawFrame struct {
	Event    string `json:"event"`
	Protocol string `json:"protocol,omitempty"`
	Version  string `json:"version,omitempty"`
	Start    *struct {
		StreamSID        string            `json:"streamSid"`
		CallSID          string            `json:"callSid"`
		CustomParameters map[string]string `json:"customParameters"`
	} `json:"start,omitempty"`
	Media *struct {
		Payload string `json:"payload"`
	} `json:"media,omitempty"`
	Stop *struct {
		StreamSID string `json:"streamSid"`
	} `json:"stop,omitempty"`
	Mark *struct {
		Name string `json:"name"`
	} `json:"mark,omitempty"`
}

// DecodeEvent parses one inbound media-stream frame into a typed event.
func DecodeEvent(data []byte) (any, error) {
	var raw rawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode stream frame: %w", err)
	}

	switch raw.Event {
	case "connected":
		return ConnectedEvent{Protocol: raw.Protocol, Version: raw.Version}, nil
	case "start":
		if raw.Start == nil {
			return nil, fmt.Errorf("start frame missing start block")
		}
		ev := StartEvent{StreamSID: raw.Start.StreamSID, CallSID: raw.Start.CallSID}
		if blob, ok := raw.Start.CustomParameters["incomingCall"]; ok {
			incoming, err := decodeIncomingCallParam(blob)
			if err != nil {
				return nil, fmt.Errorf("decode incomingCall parameter: %w", err)
			}
			ev.Incoming = incoming
		}
		return ev, nil
	case "media":
		if raw.Media == nil {
			return nil, fmt.Errorf("media frame missing media block")
		}
		return MediaEvent{Payload: raw.Media.Payload}, nil
	case "stop":
		ev := StopEvent{}
		if raw.Stop != nil {
			ev.StreamSID = raw.Stop.StreamSID
		}
		return ev, nil
	case "mark":
		ev := MarkEvent{}
		if raw.Mark != nil {
			ev.Name = raw.Mark.Name
		}
		return ev, nil
	default:
		return UnknownEvent{Event: raw.Event}, nil
	}
}

// decodeIncomingCallParam unwraps the URL-encoded JSON blob from the TwiML
// parameter. The TwiML template prefixes the encoded value with a stray
// escape character, so anything before the encoded or literal opening brace
// is stripped first.
func decodeIncomingCallParam(blob string) (session.IncomingCall, error) {
	var incoming session.IncomingCall

	trimmed := blob
	if i := strings.Index(blob, "%7B"); i > 0 {
		trimmed = blob[i:]
	} else if i := strings.IndexByte(blob, '{'); i > 0 {
		trimmed = blob[i:]
	}

	decoded, err := url.QueryUnescape(trimmed)
	if err != nil {
		return incoming, err
	}
	if err := json.Unmarshal([]byte(decoded), &incoming); err != nil {
		return incoming, err
	}
	return incoming, nil
}

// EncodeMedia builds an outbound audio frame for the given stream.
func EncodeMedia(streamSID, payloadB64 string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"event":     "media",
		"streamSid": streamSID,
		"media":     map[string]string{"payload": payloadB64},
	})
}

// EncodeClear builds the command that drops all audio the provider has
// buffered but not yet played.
func EncodeClear(streamSID string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"event":     "clear",
		"streamSid": streamSID,
	})
}

// EncodeMark builds a playback marker frame.
func EncodeMark(streamSID, name string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"event":     "mark",
		"streamSid": streamSID,
		"mark":      map[string]string{"name": name},
	})
}

// EncodeIncomingCallParam is the inverse of decodeIncomingCallParam, used
// when rendering TwiML. The leading backslash reproduces the provider's
// escaping of the parameter value.
func EncodeIncomingCallParam(incoming session.IncomingCall) (string, error) {
	data, err := json.Marshal(incoming)
	if err != nil {
		return "", err
	}
	return `\` + url.QueryEscape(string(data)), nil
}
