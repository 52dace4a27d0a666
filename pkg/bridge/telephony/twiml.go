package telephony

import (
	"fmt"

	"github.com/voxbridge/voxbridge/pkg/bridge/session"
)

// StreamTwiML renders the voice-webhook response that connects the call to
// the media-stream websocket, relaying the call metadata as a custom
// parameter so the stream start event can rebuild it.
func StreamTwiML(wssURL string, incoming session.IncomingCall) (string, error) {
	param, err := EncodeIncomingCallParam(incoming)
	if err != nil {
		return "", fmt.Errorf("encode incomingCall parameter: %w", err)
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Connect>
        <Stream url="%s">
            <Parameter name="incomingCall" value="%s" />
        </Stream>
    </Connect>
</Response>`, wssURL, param), nil
}
