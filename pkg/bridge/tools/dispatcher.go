package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxbridge/voxbridge/pkg/bridge"
	"github.com/voxbridge/voxbridge/pkg/bridge/session"
)

// Invocation is one function-call request from the model.
type Invocation struct {
	CallID    string
	Name      string
	Arguments json.RawMessage
}

// Result is the outcome reported back into the conversation. A failed
// invocation is still a result; the model decides how to recover.
type Result struct {
	OK       bool
	Payload  any
	Err      string
	Duration time.Duration
}

// Output renders the result as the function_call_output payload.
func (r Result) Output() string {
	var body any
	if r.OK {
		body = r.Payload
		if body == nil {
			body = map[string]any{"success": true}
		}
	} else {
		body = map[string]any{"success": false, "error": r.Err}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return `{"success":false,"error":"unserializable tool result"}`
	}
	return string(data)
}

// Dispatcher resolves invocations against the registry and executes them.
// Invocation outcomes never abort the call: every path yields a Result.
type Dispatcher struct {
	registry *Registry
	webhook  *WebhookClient
	log      *slog.Logger
	now      func() time.Time
}

func NewDispatcher(registry *Registry, webhook *WebhookClient, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		webhook:  webhook,
		log:      log,
		now:      time.Now,
	}
}

func (d *Dispatcher) Invoke(ctx context.Context, inv Invocation, sess *session.Session) Result {
	start := d.now()
	result := d.invoke(ctx, inv, sess)
	result.Duration = d.now().Sub(start)

	if result.OK {
		d.log.Info("tool invocation",
			"tool", inv.Name, "call_id", inv.CallID, "session_id", sess.ID, "duration", result.Duration)
	} else {
		d.log.Warn("tool invocation failed",
			"tool", inv.Name, "call_id", inv.CallID, "session_id", sess.ID,
			"duration", result.Duration, "error", result.Err)
	}
	return result
}

func (d *Dispatcher) invoke(ctx context.Context, inv Invocation, sess *session.Session) Result {
	tool, ok := d.registry.Get(inv.Name)
	if !ok {
		return failure(bridge.NewToolNotFoundError(inv.Name))
	}

	args := map[string]any{}
	if len(inv.Arguments) > 0 {
		if err := json.Unmarshal(inv.Arguments, &args); err != nil {
			return failure(bridge.NewToolValidationError(inv.Name, fmt.Sprintf("arguments are not a JSON object: %v", err)))
		}
	}
	if err := tool.Parameters.Validate(args); err != nil {
		return failure(bridge.NewToolValidationError(inv.Name, fmt.Sprintf("invalid arguments: %v", err)))
	}

	switch tool.Kind {
	case KindLocal:
		return d.invokeLocal(ctx, tool, args, sess)
	case KindWebhook:
		return d.invokeWebhook(ctx, tool, args, sess)
	default:
		return failure(bridge.NewToolExecutionError(inv.Name, fmt.Errorf("unknown tool kind %q", tool.Kind)))
	}
}

func (d *Dispatcher) invokeLocal(ctx context.Context, tool Tool, args map[string]any, sess *session.Session) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = failure(bridge.NewToolExecutionError(tool.Name, fmt.Errorf("handler panic: %v", r)))
		}
	}()

	payload, err := tool.Func(ctx, args, sess)
	if err != nil {
		return failure(bridge.NewToolExecutionError(tool.Name, err))
	}
	return Result{OK: true, Payload: payload}
}

func (d *Dispatcher) invokeWebhook(ctx context.Context, tool Tool, args map[string]any, sess *session.Session) Result {
	reply, err := d.webhook.Call(ctx, tool.Name, sess.Snapshot(), args)
	if err != nil {
		return failure(err)
	}
	if err := tool.Response.Validate(reply.Response); err != nil {
		return failure(bridge.NewWebhookTransportError(tool.Name, fmt.Sprintf("response failed schema validation: %v", err)))
	}
	if tool.Response != nil {
		return Result{OK: true, Payload: reply.Response}
	}
	return Result{OK: true, Payload: map[string]any{"status": reply.Status, "message": reply.Message}}
}

func failure(err error) Result {
	return Result{OK: false, Err: err.Error()}
}
