package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxbridge/voxbridge/pkg/bridge/session"
	"github.com/voxbridge/voxbridge/pkg/bridge/telephony"
)

type fakeRunner struct {
	mu   sync.Mutex
	sess *session.Session
	ran  chan struct{}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{ran: make(chan struct{})}
}

func (f *fakeRunner) Run(ctx context.Context, sess *session.Session, media *telephony.Stream) {
	f.mu.Lock()
	f.sess = sess
	f.mu.Unlock()
	close(f.ran)
	// Drain until Twilio hangs up or shutdown cancels us.
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-media.Events():
			if !ok {
				return
			}
		}
	}
}

func (f *fakeRunner) session() *session.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sess
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T) (*Handler, *fakeRunner, *session.Registry) {
	t.Helper()
	reg := session.NewRegistry()
	runner := newFakeRunner()
	h := New(Deps{
		Registry: reg,
		Runner:   runner,
		Log:      discardLogger(),
	})
	return h, runner, reg
}

func incomingCallForm() url.Values {
	return url.Values{
		"CallSid":       {"CA1234567890"},
		"AccountSid":    {"AC1"},
		"CallStatus":    {"ringing"},
		"Direction":     {"inbound"},
		"Caller":        {"+4915112345678"},
		"CallerCountry": {"DE"},
		"From":          {"+4915112345678"},
		"FromCountry":   {"DE"},
		"Called":        {"+4930111222"},
		"To":            {"+4930111222"},
		"ToCountry":     {"DE"},
	}
}

func TestIncomingCall_RespondsWithStreamTwiML(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/incoming-call",
		strings.NewReader(incomingCallForm().Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Host = "bridge.example.com"
	rec := httptest.NewRecorder()

	h.IncomingCall(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/xml", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, `url="wss://bridge.example.com/media-stream"`)
	assert.Contains(t, body, `name="incomingCall"`)

	// The embedded parameter must decode back to the original call metadata
	// when it comes around in the start event.
	frame := fmt.Sprintf(
		`{"event":"start","start":{"streamSid":"MZ1","customParameters":{"incomingCall":%q}}}`,
		paramValue(t, body))
	ev, err := telephony.DecodeEvent([]byte(frame))
	require.NoError(t, err)
	start, ok := ev.(telephony.StartEvent)
	require.True(t, ok)
	assert.Equal(t, "CA1234567890", start.Incoming.CallSID)
	assert.Equal(t, "DE", start.Incoming.CallerCountry)
	assert.Equal(t, "+4915112345678", start.Incoming.Caller)
}

func TestIncomingCall_PublicHostOverridesRequestHost(t *testing.T) {
	reg := session.NewRegistry()
	h := New(Deps{
		Registry:   reg,
		Runner:     newFakeRunner(),
		PublicHost: "voice.voxbridge.dev",
		Log:        discardLogger(),
	})

	req := httptest.NewRequest(http.MethodPost, "/incoming-call",
		strings.NewReader(incomingCallForm().Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Host = "10.0.0.5:8080"
	rec := httptest.NewRecorder()

	h.IncomingCall(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `url="wss://voice.voxbridge.dev/media-stream"`)
}

func TestMediaStream_RegistersSessionAndRunsCall(t *testing.T) {
	h, runner, reg := newTestHandler(t)

	srv := httptest.NewServer(http.HandlerFunc(h.MediaStream))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{"X-Twilio-Call-Sid": {"CA-ws-1"}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer resp.Body.Close()

	select {
	case <-runner.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("runner was never invoked")
	}

	sess := runner.session()
	require.NotNil(t, sess)
	assert.Equal(t, "CA-ws-1", sess.ID)
	assert.NotNil(t, reg.Get("CA-ws-1"))

	require.NoError(t, conn.Close())
}

func TestHealthz_ReportsSessionCount(t *testing.T) {
	h, _, reg := newTestHandler(t)
	reg.Start("CA-a")
	reg.Start("CA-b")

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","sessions":2}`, rec.Body.String())
}

// paramValue pulls the incomingCall parameter value out of rendered TwiML.
func paramValue(t *testing.T, twiml string) string {
	t.Helper()
	marker := `name="incomingCall" value="`
	idx := strings.Index(twiml, marker)
	require.GreaterOrEqual(t, idx, 0)
	rest := twiml[idx+len(marker):]
	end := strings.Index(rest, `"`)
	require.GreaterOrEqual(t, end, 0)
	return rest[:end]
}
