package finalize

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/voxbridge/voxbridge/pkg/bridge/session"
	"github.com/voxbridge/voxbridge/pkg/bridge/tools"
)

// Notifier forwards the finished call's summary to an external consumer.
type Notifier interface {
	CallCompleted(ctx context.Context, sess session.Snapshot, summary *CallSummary) error
}

// WebhookNotifier posts the summary through the automation webhook as the
// hidden call_summary action.
type WebhookNotifier struct {
	client *tools.WebhookClient
}

func NewWebhookNotifier(client *tools.WebhookClient) *WebhookNotifier {
	return &WebhookNotifier{client: client}
}

func (n *WebhookNotifier) CallCompleted(ctx context.Context, sess session.Snapshot, summary *CallSummary) error {
	if !n.client.Configured() {
		return nil
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal call summary: %w", err)
	}
	var parameters map[string]any
	if err := json.Unmarshal(data, &parameters); err != nil {
		return fmt.Errorf("encode call summary parameters: %w", err)
	}

	_, err = n.client.Call(ctx, "call_summary", sess, parameters)
	return err
}
