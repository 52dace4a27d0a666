package telephony

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the websocket surface the stream needs. *websocket.Conn satisfies
// it; tests substitute fakes.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type StreamConfig struct {
	PingInterval      time.Duration
	WriteTimeout      time.Duration
	MediaQueueSize    int
	PriorityQueueSize int
}

// Stream owns one media-stream websocket. Inbound frames are decoded onto
// Events; outbound frames go through a single writer goroutine so clear
// commands always overtake queued audio.
type Stream struct {
	conn Conn
	cfg  StreamConfig
	log  *slog.Logger

	events   chan any
	priority chan []byte
	normal   chan []byte

	dropped atomic.Int64

	closeOnce sync.Once
	closed    chan struct{}
	writerErr chan error
}

func NewStream(conn Conn, cfg StreamConfig, log *slog.Logger) *Stream {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 20 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.MediaQueueSize <= 0 {
		cfg.MediaQueueSize = 64
	}
	if cfg.PriorityQueueSize <= 0 {
		cfg.PriorityQueueSize = 4
	}
	if log == nil {
		log = slog.Default()
	}
	return &Stream{
		conn:      conn,
		cfg:       cfg,
		log:       log,
		events:    make(chan any, cfg.MediaQueueSize),
		priority:  make(chan []byte, cfg.PriorityQueueSize),
		normal:    make(chan []byte, cfg.MediaQueueSize),
		closed:    make(chan struct{}),
		writerErr: make(chan error, 1),
	}
}

// Run starts the read and write loops and blocks until the peer disconnects
// or ctx is canceled. Events is closed before Run returns.
func (s *Stream) Run(ctx context.Context) {
	go s.writeLoop(ctx)
	s.readLoop()
	s.Close()
}

// Events delivers decoded inbound frames. The channel is closed when the
// websocket read side ends.
func (s *Stream) Events() <-chan any {
	return s.events
}

// SendMedia queues one audio frame. When the queue is full the frame is
// dropped; the provider tolerates gaps better than the bridge tolerates an
// unbounded buffer.
func (s *Stream) SendMedia(streamSID, payloadB64 string) {
	frame, err := EncodeMedia(streamSID, payloadB64)
	if err != nil {
		s.log.Error("encode media frame", "error", err)
		return
	}
	select {
	case s.normal <- frame:
	case <-s.closed:
	default:
		s.dropped.Add(1)
	}
}

// SendClear queues a buffer-clear command on the priority lane.
func (s *Stream) SendClear(streamSID string) {
	frame, err := EncodeClear(streamSID)
	if err != nil {
		s.log.Error("encode clear frame", "error", err)
		return
	}
	select {
	case s.priority <- frame:
	case <-s.closed:
	}
}

// SendMark queues a playback marker on the priority lane.
func (s *Stream) SendMark(streamSID, name string) {
	frame, err := EncodeMark(streamSID, name)
	if err != nil {
		s.log.Error("encode mark frame", "error", err)
		return
	}
	select {
	case s.priority <- frame:
	case <-s.closed:
	}
}

// DroppedMedia reports how many outbound audio frames were discarded because
// the queue was full.
func (s *Stream) DroppedMedia() int64 {
	return s.dropped.Load()
}

// Close tears the websocket down. Safe to call more than once.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		deadline := time.Now().Add(s.cfg.WriteTimeout)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = s.conn.Close()
	})
}

func (s *Stream) readLoop() {
	defer close(s.events)
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		ev, err := DecodeEvent(data)
		if err != nil {
			s.log.Warn("skip malformed stream frame", "error", err)
			continue
		}
		select {
		case s.events <- ev:
		case <-s.closed:
			return
		}
	}
}

func (s *Stream) writeLoop(ctx context.Context) {
	pingTicker := time.NewTicker(s.cfg.PingInterval)
	defer pingTicker.Stop()

	var pendingNormal []byte

	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-s.closed:
			return
		default:
		}

		// Hard priority: drain the clear lane before any audio.
		select {
		case frame := <-s.priority:
			if err := s.writeFrame(frame); err != nil {
				s.failWriter(err)
				return
			}
			continue
		default:
		}

		// A queued priority frame may still preempt a dequeued audio frame.
		if pendingNormal != nil {
			select {
			case frame := <-s.priority:
				if err := s.writeFrame(frame); err != nil {
					s.failWriter(err)
					return
				}
				continue
			default:
			}
			if err := s.writeFrame(pendingNormal); err != nil {
				s.failWriter(err)
				return
			}
			pendingNormal = nil
			continue
		}

		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-s.closed:
			return
		case <-pingTicker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				s.failWriter(err)
				return
			}
		case frame := <-s.priority:
			if err := s.writeFrame(frame); err != nil {
				s.failWriter(err)
				return
			}
		case frame := <-s.normal:
			pendingNormal = frame
		}
	}
}

func (s *Stream) writeFrame(frame []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *Stream) failWriter(err error) {
	select {
	case s.writerErr <- err:
	default:
	}
	s.Close()
}
