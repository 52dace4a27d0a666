package ai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxbridge/voxbridge/pkg/bridge"
)

// Conn is the websocket surface the stream needs. *websocket.Conn satisfies
// it; tests substitute fakes.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type StreamConfig struct {
	URL              string
	Model            string
	APIKey           string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// Stream is one realtime session connection. Reads arrive on Events; writes
// are serialized with a mutex so the call loop and the tool dispatcher can
// both send.
type Stream struct {
	conn Conn
	log  *slog.Logger

	writeMu      sync.Mutex
	writeTimeout time.Duration

	events    chan any
	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects to the realtime endpoint and starts the read loop.
func Dial(ctx context.Context, cfg StreamConfig, log *slog.Logger) (*Stream, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("realtime api key is required")
	}
	wsURL, err := buildRealtimeURL(cfg.URL, cfg.Model)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, bridge.NewConnectionError(fmt.Sprintf("dial realtime session: %v", err))
	}

	s := NewStream(conn, cfg.WriteTimeout, log)
	go s.readLoop()
	return s, nil
}

// NewStream wraps an established connection. The caller owns starting the
// read loop when it does not come from Dial.
func NewStream(conn Conn, writeTimeout time.Duration, log *slog.Logger) *Stream {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Stream{
		conn:         conn,
		log:          log,
		writeTimeout: writeTimeout,
		events:       make(chan any, 256),
		closed:       make(chan struct{}),
	}
}

// Events delivers decoded server events. The channel closes when the
// connection's read side ends, which the call loop treats as session end.
func (s *Stream) Events() <-chan any {
	return s.events
}

func (s *Stream) SendSessionUpdate(ctx context.Context, settings SessionSettings) error {
	return s.writeJSON(ctx, encodeSessionUpdate(settings))
}

// SendUserMessage injects a user turn as text, used for conversation seeding.
func (s *Stream) SendUserMessage(ctx context.Context, text string) error {
	return s.writeJSON(ctx, encodeUserMessage(text))
}

func (s *Stream) CreateResponse(ctx context.Context) error {
	return s.writeJSON(ctx, map[string]any{"type": "response.create"})
}

func (s *Stream) CancelResponse(ctx context.Context) error {
	return s.writeJSON(ctx, map[string]any{"type": "response.cancel"})
}

// AppendAudio forwards one base64 chunk of caller audio.
func (s *Stream) AppendAudio(ctx context.Context, payloadB64 string) error {
	return s.writeJSON(ctx, encodeAudioAppend(payloadB64))
}

// SendToolResult reports a finished function call back into the conversation.
func (s *Stream) SendToolResult(ctx context.Context, callID, output string) error {
	return s.writeJSON(ctx, encodeToolResult(callID, output))
}

// Close tears the connection down. Safe to call more than once.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
	})
}

func (s *Stream) readLoop() {
	defer close(s.events)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		ev, err := DecodeServerEvent(data)
		if err != nil {
			s.log.Warn("skip malformed server event", "error", err)
			continue
		}
		select {
		case s.events <- ev:
		case <-s.closed:
			return
		}
	}
}

func (s *Stream) writeJSON(ctx context.Context, payload any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	select {
	case <-s.closed:
		return bridge.NewConnectionError("realtime session is closed")
	default:
	}

	deadline := time.Now().Add(s.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = s.conn.SetWriteDeadline(deadline)
	if err := s.conn.WriteJSON(payload); err != nil {
		return bridge.NewConnectionError(fmt.Sprintf("write realtime event: %v", err))
	}
	return nil
}

func buildRealtimeURL(base, model string) (string, error) {
	if strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("realtime url is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	q := u.Query()
	if strings.TrimSpace(model) != "" {
		q.Set("model", model)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
