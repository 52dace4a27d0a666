package call

import (
	"context"
	"strings"

	"github.com/voxbridge/voxbridge/pkg/bridge/ai"
	"github.com/voxbridge/voxbridge/pkg/bridge/finalize"
	"github.com/voxbridge/voxbridge/pkg/bridge/telephony"
	"github.com/voxbridge/voxbridge/pkg/bridge/tools"
	"github.com/voxbridge/voxbridge/pkg/bridge/turn"
)

func (c *Call) handleMediaEvent(ctx context.Context, ev any) (done bool) {
	switch ev := ev.(type) {
	case telephony.ConnectedEvent:
		c.log.Info("media stream connected")

	case telephony.StartEvent:
		c.deps.Session.StartStream(ev.StreamSID, ev.Incoming, c.cfg.AppName)
		c.streamStarted = true
		c.log.Info("media stream started",
			"stream_sid", ev.StreamSID, "call_sid", ev.Incoming.CallSID,
			"caller_country", ev.Incoming.CallerCountry)
		c.maybeSeed(ctx)

	case telephony.MediaEvent:
		if err := c.deps.AI.AppendAudio(ctx, ev.Payload); err != nil {
			c.log.Warn("audio append failed", "error", err)
		}

	case telephony.StopEvent:
		c.log.Info("media stream stopped")
		c.reason = finalize.ReasonHangup
		return true

	case telephony.MarkEvent:
		c.log.Debug("playback mark", "name", ev.Name)

	default:
		c.log.Debug("unhandled media event")
	}
	return false
}

func (c *Call) handleAIEvent(ctx context.Context, ev any) (done bool) {
	switch ev := ev.(type) {
	case ai.SessionReady:
		c.sessionReady = true
		c.maybeSeed(ctx)

	case ai.AudioDelta:
		c.relayAudio(ctx, ev)

	case ai.SpeechStarted:
		c.handleBargeIn(ctx)

	case ai.TranscriptionCompleted:
		text := strings.TrimSpace(ev.Transcript)
		if text == "" {
			c.log.Debug("empty user transcript")
			return false
		}
		line := c.deps.Session.AddUserTranscript(text)
		c.log.Info("transcript", "line", line)

	case ai.ToolCallRequested:
		c.handleToolCall(ctx, ev)

	case ai.ResponseCompleted:
		return c.handleResponseCompleted(ev)

	case ai.ServerError:
		c.log.Error("realtime session error", "code", ev.Code, "message", ev.Message)

	case ai.UnknownEvent:
		c.log.Debug("unhandled realtime event", "type", ev.Type)
	}
	return false
}

// relayAudio forwards response audio to the caller. Deltas still streaming
// for a canceled response are dropped so playback does not overlap the
// caller's interruption.
func (c *Call) relayAudio(ctx context.Context, ev ai.AudioDelta) {
	if c.turns.State() == turn.UserInterrupting {
		if ev.ItemID == c.staleItemID {
			return
		}
		// A new item means the next response started before the cancel settled.
	}
	c.turns.BeginResponse()
	c.lastItemID = ev.ItemID
	c.deps.Media.SendMedia(c.deps.Session.StreamSID(), ev.Delta)
}

// handleBargeIn flushes queued playback and cancels the in-flight response,
// each exactly once per response.
func (c *Call) handleBargeIn(ctx context.Context) {
	clear, cancel := c.turns.Interrupt()
	if !clear && !cancel {
		return
	}
	c.staleItemID = c.lastItemID
	c.limiter.Reset()
	c.limitNotified = false

	c.deps.Media.SendClear(c.deps.Session.StreamSID())
	if err := c.deps.AI.CancelResponse(ctx); err != nil {
		c.log.Warn("response cancel failed", "error", err)
	}
	c.log.Info("barge-in: cleared playback and canceled response")
}

func (c *Call) handleResponseCompleted(ev ai.ResponseCompleted) (done bool) {
	c.turns.CompleteResponse()

	if text := strings.TrimSpace(ev.Text); text != "" {
		line := c.deps.Session.AddAgentTranscript(text)
		c.log.Info("transcript", "line", line)
	}

	if ev.Status == "failed" {
		if ev.ErrorCode == "insufficient_quota" {
			c.log.Error("provider quota exhausted, terminating call", "code", ev.ErrorCode)
			c.reason = finalize.ReasonQuota
			return true
		}
		c.log.Error("response failed", "code", ev.ErrorCode)
	}
	return false
}

func (c *Call) handleToolCall(ctx context.Context, ev ai.ToolCallRequested) {
	if !c.limiter.Allow() {
		c.log.Warn("tool round-trip budget exhausted",
			"tool", ev.Name, "used", c.limiter.Used(), "max", c.limiter.Max())
		out := toolOutcome{
			callID: ev.CallID,
			output: `{"success":false,"error":"tool call limit reached for this turn"}`,
		}
		if c.limitNotified {
			// Report the denial without another response cycle so a looping
			// model cannot ping-pong against the limiter.
			if err := c.deps.AI.SendToolResult(ctx, out.callID, out.output); err != nil {
				c.log.Warn("tool result send failed", "error", err)
			}
			return
		}
		c.limitNotified = true
		c.deliverToolResult(ctx, out)
		return
	}

	inv := tools.Invocation{CallID: ev.CallID, Name: ev.Name, Arguments: ev.Arguments}
	sess := c.deps.Session

	// Tool I/O must not stall audio relay; the invocation runs off-loop and
	// reports back through toolResults. A result arriving after teardown is
	// discarded with the loop.
	go func() {
		toolCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ToolTimeout)
		defer cancel()

		result := c.deps.Dispatcher.Invoke(toolCtx, inv, sess)
		select {
		case c.toolResults <- toolOutcome{callID: inv.CallID, output: result.Output()}:
		case <-ctx.Done():
		}
	}()
}

func (c *Call) deliverToolResult(ctx context.Context, out toolOutcome) {
	if err := c.deps.AI.SendToolResult(ctx, out.callID, out.output); err != nil {
		c.log.Warn("tool result send failed", "call_id", out.callID, "error", err)
		return
	}
	if err := c.deps.AI.CreateResponse(ctx); err != nil {
		c.log.Warn("response create after tool result failed", "error", err)
	}
}
