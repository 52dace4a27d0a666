package tools

import (
	"context"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/voxbridge/voxbridge/pkg/bridge/session"
	"github.com/voxbridge/voxbridge/pkg/bridge/store"
	"github.com/voxbridge/voxbridge/pkg/bridge/telephony"
)

// MemoryStore is the slice of the persistence layer the memory tools need.
type MemoryStore interface {
	ReadMemory(ctx context.Context, appID, callerID, key string) ([]store.MemoryEntry, error)
	AddMemory(ctx context.Context, appID, callerID string, entry store.MemoryEntry) error
	RemoveMemory(ctx context.Context, appID, callerID, key string, isGlobal bool) error
}

// EndCallTool hangs up the current call through the provider's REST API.
func EndCallTool(control telephony.CallControl) Tool {
	return Tool{
		Kind:        KindLocal,
		Name:        "end_call",
		Description: "Ends the current call.",
		Func: func(ctx context.Context, args map[string]any, sess *session.Session) (any, error) {
			incoming := sess.Incoming()
			if incoming == nil || incoming.CallSID == "" {
				return nil, fmt.Errorf("no active call to end")
			}
			if err := control.EndCall(ctx, incoming.CallSID, incoming.CallerCountry); err != nil {
				return nil, err
			}
			return nil, nil
		},
	}
}

// MemoryTools expose the caller-scoped key-value memory. Entries marked
// global are shared across all callers of the app.
func MemoryTools(mem MemoryStore) []Tool {
	isGlobalSchema := openapi3.NewBoolSchema()
	isGlobalSchema.Description = "Whether the entry is global for all callers. Default: false."

	return []Tool{
		{
			Kind:        KindLocal,
			Name:        "read_memory",
			Description: "Returns the remembered entries for the caller.",
			Parameters: NewSchema(openapi3.NewObjectSchema().
				WithProperty("key", openapi3.NewStringSchema())),
			Func: func(ctx context.Context, args map[string]any, sess *session.Session) (any, error) {
				key, _ := args["key"].(string)
				entries, err := mem.ReadMemory(ctx, sess.AppID(), sess.CallerID(), key)
				if err != nil {
					return nil, err
				}
				if entries == nil {
					entries = []store.MemoryEntry{}
				}
				return entries, nil
			},
		},
		{
			Kind:        KindLocal,
			Name:        "add_memory",
			Description: "Adds a key-value pair to the memory.",
			Parameters: NewSchema(withRequired(openapi3.NewObjectSchema().
				WithProperty("key", openapi3.NewStringSchema()).
				WithProperty("value", openapi3.NewStringSchema()).
				WithProperty("isGlobal", isGlobalSchema), "key", "value")),
			Func: func(ctx context.Context, args map[string]any, sess *session.Session) (any, error) {
				entry := store.MemoryEntry{
					Key:   asString(args["key"]),
					Value: asString(args["value"]),
				}
				entry.IsGlobal, _ = args["isGlobal"].(bool)
				return nil, mem.AddMemory(ctx, sess.AppID(), sess.CallerID(), entry)
			},
		},
		{
			Kind:        KindLocal,
			Name:        "remove_memory",
			Description: "Removes a key-value pair from the memory.",
			Parameters: NewSchema(withRequired(openapi3.NewObjectSchema().
				WithProperty("key", openapi3.NewStringSchema()).
				WithProperty("isGlobal", isGlobalSchema), "key")),
			Func: func(ctx context.Context, args map[string]any, sess *session.Session) (any, error) {
				isGlobal, _ := args["isGlobal"].(bool)
				return nil, mem.RemoveMemory(ctx, sess.AppID(), sess.CallerID(), asString(args["key"]), isGlobal)
			},
		},
	}
}

// CalendarTools are forwarded to the webhook backend.
func CalendarTools() []Tool {
	appointmentTime := openapi3.NewObjectSchema().
		WithProperty("dateTime", openapi3.NewStringSchema()).
		WithProperty("timeZone", openapi3.NewStringSchema())

	return []Tool{
		{
			Kind:        KindWebhook,
			Name:        "calendar_check_availability",
			Description: "Checks if an appointment slot from 'startAt' to 'endAt' is available.",
			Parameters: NewSchema(withRequired(openapi3.NewObjectSchema().
				WithProperty("startAt", openapi3.NewStringSchema()).
				WithProperty("endAt", openapi3.NewStringSchema()), "startAt", "endAt")),
			Response: NewSchema(withRequired(openapi3.NewObjectSchema().
				WithProperty("available", openapi3.NewBoolSchema()), "available")),
		},
		{
			Kind:        KindWebhook,
			Name:        "calendar_schedule_appointment",
			Description: "Schedules an appointment in the calendar.",
			Parameters: NewSchema(withRequired(openapi3.NewObjectSchema().
				WithProperty("startAt", openapi3.NewStringSchema()).
				WithProperty("endAt", openapi3.NewStringSchema()).
				WithProperty("title", openapi3.NewStringSchema()).
				WithProperty("description", openapi3.NewStringSchema()),
				"startAt", "endAt", "title")),
		},
		{
			Kind:        KindWebhook,
			Name:        "calendar_get_user_appointments",
			Description: "Returns all appointments for the caller.",
			Response: NewSchema(openapi3.NewArraySchema().WithItems(
				withRequired(openapi3.NewObjectSchema().
					WithProperty("id", openapi3.NewStringSchema()).
					WithProperty("status", openapi3.NewStringSchema().WithEnum("confirmed", "tentative", "cancelled")).
					WithProperty("summary", openapi3.NewStringSchema()).
					WithProperty("description", openapi3.NewStringSchema()).
					WithProperty("start", appointmentTime).
					WithProperty("end", appointmentTime),
					"id", "status"))),
		},
	}
}

// WebScraperTool fetches website content through the webhook backend.
func WebScraperTool() Tool {
	mode := openapi3.NewStringSchema().WithEnum("text", "print", "article", "source", "screenshot")
	mode.Description = "The scraping mode. Default: text."

	return Tool{
		Kind:        KindWebhook,
		Name:        "web_scraper",
		Description: "Scrapes a website for information.",
		Parameters: NewSchema(withRequired(openapi3.NewObjectSchema().
			WithProperty("url", openapi3.NewStringSchema()).
			WithProperty("mode", mode), "url")),
		Response: NewSchema(withRequired(openapi3.NewObjectSchema().
			WithProperty("content", openapi3.NewStringSchema()), "content")),
	}
}

// CallSummaryTool is the hidden hook the finalizer posts summaries through.
// It is never advertised to the model.
func CallSummaryTool() Tool {
	return Tool{
		Kind:        KindWebhook,
		Name:        "call_summary",
		Description: "Returns a summary of the call.",
		Hidden:      true,
		Response: NewSchema(withRequired(openapi3.NewObjectSchema().
			WithProperty("customerName", openapi3.NewStringSchema()).
			WithProperty("customerLanguage", openapi3.NewStringSchema()).
			WithProperty("customerAvailability", openapi3.NewStringSchema()).
			WithProperty("specialNotes", openapi3.NewStringSchema()),
			"customerName", "customerLanguage")),
	}
}

func withRequired(s *openapi3.Schema, required ...string) *openapi3.Schema {
	s.Required = append(s.Required, required...)
	return s
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
