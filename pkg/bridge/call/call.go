// Package call wires one phone call end to end: the telephony media stream on
// one side, the realtime AI session on the other, with turn taking, tool
// dispatch and transcript accumulation in between.
package call

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/voxbridge/voxbridge/pkg/bridge/ai"
	"github.com/voxbridge/voxbridge/pkg/bridge/finalize"
	"github.com/voxbridge/voxbridge/pkg/bridge/session"
	"github.com/voxbridge/voxbridge/pkg/bridge/store"
	"github.com/voxbridge/voxbridge/pkg/bridge/tools"
	"github.com/voxbridge/voxbridge/pkg/bridge/turn"
)

// MediaStream is the telephony side the loop consumes.
type MediaStream interface {
	Events() <-chan any
	SendMedia(streamSID, payloadB64 string)
	SendClear(streamSID string)
	Close()
}

// AIStream is the realtime session side the loop consumes.
type AIStream interface {
	Events() <-chan any
	SendSessionUpdate(ctx context.Context, settings ai.SessionSettings) error
	SendUserMessage(ctx context.Context, text string) error
	CreateResponse(ctx context.Context) error
	CancelResponse(ctx context.Context) error
	AppendAudio(ctx context.Context, payloadB64 string) error
	SendToolResult(ctx context.Context, callID, output string) error
	Close()
}

// ToolDispatcher executes one tool invocation.
type ToolDispatcher interface {
	Invoke(ctx context.Context, inv tools.Invocation, sess *session.Session) tools.Result
}

// MemoryReader supplies prior-conversation memory for the seed message.
type MemoryReader interface {
	ReadMemory(ctx context.Context, appID, callerID, key string) ([]store.MemoryEntry, error)
}

// SessionFinalizer runs the end-of-call pipeline.
type SessionFinalizer interface {
	Finalize(ctx context.Context, sess *session.Session, reason string, closers ...io.Closer)
}

// Config is the per-call tuning shared by every call of one bridge instance.
type Config struct {
	AppName           string
	Settings          ai.SessionSettings
	ToolTimeout       time.Duration
	MaxToolRoundTrips int
}

// Deps are the collaborators one call runs against.
type Deps struct {
	Session    *session.Session
	Media      MediaStream
	AI         AIStream
	Dispatcher ToolDispatcher
	Memory     MemoryReader
	Finalizer  SessionFinalizer
	Log        *slog.Logger
}

type toolOutcome struct {
	callID string
	output string
}

// Call owns one phone call. All session mutation happens on the Run
// goroutine; the adapters deliver events through channels and tool
// invocations report back through toolResults.
type Call struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	turns   *turn.Controller
	limiter *tools.TurnLimiter

	toolResults chan toolOutcome

	sessionReady  bool
	streamStarted bool
	seeded        bool
	limitNotified bool
	lastItemID    string
	staleItemID   string
	reason        string
}

func New(cfg Config, deps Deps) *Call {
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = 10 * time.Second
	}
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &Call{
		cfg:         cfg,
		deps:        deps,
		log:         log.With("session_id", deps.Session.ID),
		turns:       turn.NewController(),
		limiter:     tools.NewTurnLimiter(cfg.MaxToolRoundTrips),
		toolResults: make(chan toolOutcome, 8),
		reason:      finalize.ReasonHangup,
	}
}

// Run is the call's single dispatch loop. It returns after finalization.
func (c *Call) Run(ctx context.Context) {
	defer func() {
		c.deps.AI.Close()
		c.deps.Media.Close()
		c.deps.Finalizer.Finalize(ctx, c.deps.Session, c.reason)
	}()

	for {
		select {
		case <-ctx.Done():
			c.reason = finalize.ReasonShutdown
			return

		case ev, ok := <-c.deps.Media.Events():
			if !ok {
				c.reason = finalize.ReasonHangup
				return
			}
			if done := c.handleMediaEvent(ctx, ev); done {
				return
			}

		case ev, ok := <-c.deps.AI.Events():
			if !ok {
				c.reason = finalize.ReasonError
				return
			}
			if done := c.handleAIEvent(ctx, ev); done {
				return
			}

		case out := <-c.toolResults:
			c.deliverToolResult(ctx, out)
		}
	}
}
