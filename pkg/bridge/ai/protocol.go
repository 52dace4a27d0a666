// Package ai is the realtime-session client: it dials the provider's
// websocket, encodes session and conversation commands, and decodes server
// events into the types the call loop dispatches on.
package ai

import (
	"encoding/json"
	"fmt"
	"time"
)

// Server events the bridge reacts to. Everything else arrives as
// UnknownEvent so the call loop can log and move on.
type (
	// SessionReady confirms session.created / session.updated.
	SessionReady struct {
		Type string
	}

	// AudioDelta is one chunk of synthesized speech, base64 as received.
	AudioDelta struct {
		ItemID string
		Delta  string
	}

	// SpeechStarted signals the voice activity detector heard the caller
	// while audio may still be playing.
	SpeechStarted struct{}

	// TranscriptionCompleted carries the caller-side transcript of one
	// utterance.
	TranscriptionCompleted struct {
		Transcript string
	}

	// ToolCallRequested asks the bridge to run a function and report back.
	ToolCallRequested struct {
		CallID    string
		Name      string
		Arguments json.RawMessage
	}

	// ResponseCompleted closes one response turn. Text is the spoken
	// transcript when present; Status and ErrorCode describe failures.
	ResponseCompleted struct {
		Status    string
		Text      string
		ErrorCode string
	}

	// ServerError is an out-of-band error event.
	ServerError struct {
		Code    string
		Message string
	}

	// UnknownEvent is any type the bridge does not handle.
	UnknownEvent struct {
		Type string
	}
)

type rawServerEvent struct {
	Type       string `json:"type"`
	ItemID     string `json:"item_id,omitempty"`
	Delta      string `json:"delta,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	CallID     string `json:"call_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Arguments  string `json:"arguments,omitempty"`
	Response   *struct {
		Status        string `json:"status"`
		StatusDetails *struct {
			Error *struct {
				Code string `json:"code"`
			} `json:"error"`
		} `json:"status_details"`
		Output []struct {
			Content []struct {
				Transcript string `json:"transcript"`
			} `json:"content"`
		} `json:"output"`
	} `json:"response,omitempty"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// DecodeServerEvent parses one realtime server event.
func DecodeServerEvent(data []byte) (any, error) {
	var raw rawServerEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode server event: %w", err)
	}

	switch raw.Type {
	case "session.created", "session.updated":
		return SessionReady{Type: raw.Type}, nil
	case "response.audio.delta":
		return AudioDelta{ItemID: raw.ItemID, Delta: raw.Delta}, nil
	case "input_audio_buffer.speech_started":
		return SpeechStarted{}, nil
	case "conversation.item.input_audio_transcription.completed":
		return TranscriptionCompleted{Transcript: raw.Transcript}, nil
	case "response.function_call_arguments.done":
		return ToolCallRequested{
			CallID:    raw.CallID,
			Name:      raw.Name,
			Arguments: json.RawMessage(raw.Arguments),
		}, nil
	case "response.done":
		ev := ResponseCompleted{}
		if raw.Response != nil {
			ev.Status = raw.Response.Status
			if raw.Response.StatusDetails != nil && raw.Response.StatusDetails.Error != nil {
				ev.ErrorCode = raw.Response.StatusDetails.Error.Code
			}
			for _, out := range raw.Response.Output {
				for _, content := range out.Content {
					if content.Transcript != "" {
						ev.Text = content.Transcript
						break
					}
				}
				if ev.Text != "" {
					break
				}
			}
		}
		return ev, nil
	case "error":
		ev := ServerError{}
		if raw.Error != nil {
			ev.Code = raw.Error.Code
			ev.Message = raw.Error.Message
		}
		return ev, nil
	default:
		return UnknownEvent{Type: raw.Type}, nil
	}
}

// ToolDef is a function declaration in the session configuration.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// SessionSettings configures the realtime session: audio formats are fixed
// to the telephony codec, everything else is tunable.
type SessionSettings struct {
	Voice              string
	Instructions       string
	Temperature        float64
	TranscriptionModel string
	VADThreshold       float64
	VADPrefixPadding   time.Duration
	VADSilenceDuration time.Duration
	Tools              []ToolDef
}

func encodeSessionUpdate(s SessionSettings) map[string]any {
	temperature := s.Temperature
	if temperature == 0 {
		temperature = 0.8
	}

	tools := make([]map[string]any, 0, len(s.Tools))
	for _, tool := range s.Tools {
		params := tool.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		tools = append(tools, map[string]any{
			"type":        "function",
			"name":        tool.Name,
			"description": tool.Description,
			"parameters":  params,
		})
	}

	return map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"turn_detection": map[string]any{
				"type":                "server_vad",
				"threshold":           s.VADThreshold,
				"prefix_padding_ms":   s.VADPrefixPadding.Milliseconds(),
				"silence_duration_ms": s.VADSilenceDuration.Milliseconds(),
			},
			"input_audio_format":  "g711_ulaw",
			"output_audio_format": "g711_ulaw",
			"voice":               s.Voice,
			"instructions":        s.Instructions,
			"modalities":          []string{"text", "audio"},
			"temperature":         temperature,
			"tools":               tools,
			"tool_choice":         "auto",
			"input_audio_transcription": map[string]any{
				"model": s.TranscriptionModel,
			},
		},
	}
}

func encodeUserMessage(text string) map[string]any {
	return map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type": "message",
			"role": "user",
			"content": []map[string]any{
				{"type": "input_text", "text": text},
			},
		},
	}
}

func encodeToolResult(callID, output string) map[string]any {
	return map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  output,
		},
	}
}

func encodeAudioAppend(payloadB64 string) map[string]any {
	return map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": payloadB64,
	}
}
