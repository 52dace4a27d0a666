package call

import (
	"context"
	"fmt"
	"strings"

	"github.com/voxbridge/voxbridge/pkg/bridge/store"
)

const greetingRequest = "Bitte starte jetzt das Gespräch indem du mich nun begrüßt."

const memoryPreamble = "Es folgen deine bisherigen Erinnerungen aus vorherigen " +
	"Konversationen mit mir, die dir als Kontext dienen können:"

// maybeSeed configures the realtime session and opens the conversation. It
// runs once the session is ready AND the stream has started; whichever event
// arrives second triggers it.
func (c *Call) maybeSeed(ctx context.Context) {
	if c.seeded || !c.sessionReady || !c.streamStarted {
		return
	}
	c.seeded = true

	settings := c.cfg.Settings
	settings.Instructions = c.instructionsWithCallDetails(settings.Instructions)
	if err := c.deps.AI.SendSessionUpdate(ctx, settings); err != nil {
		c.log.Error("session update failed", "error", err)
		return
	}

	if err := c.deps.AI.SendUserMessage(ctx, c.initialMessage(ctx)); err != nil {
		c.log.Error("conversation seed failed", "error", err)
		return
	}
	if err := c.deps.AI.CreateResponse(ctx); err != nil {
		c.log.Error("initial response create failed", "error", err)
		return
	}
	c.log.Info("conversation seeded")
}

func (c *Call) instructionsWithCallDetails(instructions string) string {
	incoming := c.deps.Session.Incoming()
	if incoming == nil {
		return instructions
	}
	return fmt.Sprintf("%s\n\nAnrufdetails:\n- Anrufnummer: %s\n- Land des Anrufers: %s",
		instructions, incoming.Caller, incoming.CallerCountry)
}

// initialMessage is the synthetic first user message: remembered context from
// earlier calls, then the request to greet. Memory failures degrade to a
// plain greeting request.
func (c *Call) initialMessage(ctx context.Context) string {
	var entries []store.MemoryEntry
	if c.deps.Memory != nil {
		var err error
		entries, err = c.deps.Memory.ReadMemory(ctx, c.deps.Session.AppID(), c.deps.Session.CallerID(), "")
		if err != nil {
			c.log.Warn("memory read failed, seeding without context", "error", err)
		}
	}
	if len(entries) == 0 {
		return greetingRequest
	}

	var b strings.Builder
	b.WriteString(memoryPreamble)
	b.WriteString("\n")
	for _, entry := range entries {
		b.WriteString(entry.Key)
		if entry.IsGlobal {
			b.WriteString(" (global)")
		}
		b.WriteString(": ")
		b.WriteString(entry.Value)
		b.WriteString("\n")
	}
	b.WriteString("\n\n")
	b.WriteString(greetingRequest)
	return b.String()
}
