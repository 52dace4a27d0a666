// Package tools holds the function-calling surface of the bridge: tool
// definitions, the registry the session advertises, and the dispatcher that
// runs invocations locally or over the configured webhook.
package tools

import (
	"context"

	"github.com/voxbridge/voxbridge/pkg/bridge/session"
)

// Kind separates tools executed in-process from tools forwarded to the
// webhook backend.
type Kind string

const (
	KindLocal   Kind = "local"
	KindWebhook Kind = "webhook"
)

// Func is a local tool handler. A nil result with nil error reports plain
// success.
type Func func(ctx context.Context, args map[string]any, sess *session.Session) (any, error)

// Tool is one callable function. Local tools carry Func; webhook tools are
// forwarded by name. Hidden tools are never advertised to the model but stay
// invocable in-process (the finalizer uses this for the summary hook).
type Tool struct {
	Kind        Kind
	Name        string
	Description string
	Parameters  *Schema
	Response    *Schema
	Hidden      bool
	Func        Func
}

// ParametersJSON renders the parameter schema for the session declaration.
// Tools without parameters declare an empty object.
func (t Tool) ParametersJSON() map[string]any {
	if t.Parameters == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return t.Parameters.JSONMap()
}
