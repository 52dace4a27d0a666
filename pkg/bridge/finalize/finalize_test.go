package finalize

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voxbridge/voxbridge/pkg/bridge/session"
	"github.com/voxbridge/voxbridge/pkg/bridge/store"
	"github.com/voxbridge/voxbridge/pkg/bridge/tools"
)

type fakeSummarizer struct {
	summary *CallSummary
	err     error
	calls   int
	got     session.Snapshot
}

func (f *fakeSummarizer) Summarize(ctx context.Context, sess session.Snapshot) (*CallSummary, error) {
	f.calls++
	f.got = sess
	return f.summary, f.err
}

type fakeNotifier struct {
	calls   int
	summary *CallSummary
	err     error
}

func (f *fakeNotifier) CallCompleted(ctx context.Context, sess session.Snapshot, summary *CallSummary) error {
	f.calls++
	f.summary = summary
	return f.err
}

type fakeRecords struct {
	saved []store.CallRecord
	err   error
}

func (f *fakeRecords) SaveCallRecord(ctx context.Context, record store.CallRecord) error {
	f.saved = append(f.saved, record)
	return f.err
}

type fakeControl struct {
	calls   int
	callSID string
	country string
}

func (f *fakeControl) EndCall(ctx context.Context, callSID, callerCountry string) error {
	f.calls++
	f.callSID = callSID
	f.country = callerCountry
	return nil
}

type countingCloser struct{ closed int }

func (c *countingCloser) Close() error {
	c.closed++
	return nil
}

func startedSession(t *testing.T, reg *session.Registry) *session.Session {
	t.Helper()
	sess := reg.Start("CA1")
	sess.StartStream("MZ1", session.IncomingCall{
		CallSID:       "CA1",
		Caller:        "+491700000000",
		CallerCountry: "DE",
		Called:        "+4930111222",
	}, "voxbridge")
	sess.AddUserTranscript("Hallo")
	sess.AddAgentTranscript("Willkommen")
	return sess
}

func TestFinalize_HappyPath(t *testing.T) {
	reg := session.NewRegistry()
	sess := startedSession(t, reg)

	summarizer := &fakeSummarizer{summary: &CallSummary{CustomerName: "Ada", CustomerLanguage: "de"}}
	notifier := &fakeNotifier{}
	records := &fakeRecords{}
	control := &fakeControl{}
	closer := &countingCloser{}

	f := New(Deps{
		Summarizer: summarizer,
		Notifier:   notifier,
		Records:    records,
		Control:    control,
		Registry:   reg,
		Timeout:    time.Second,
	})
	f.Finalize(context.Background(), sess, ReasonHangup, closer)

	require.Equal(t, 1, closer.closed)
	require.Equal(t, 1, summarizer.calls)
	require.Len(t, summarizer.got.Transcript, 2)
	require.Equal(t, 1, notifier.calls)
	require.Equal(t, "Ada", notifier.summary.CustomerName)
	require.Zero(t, control.calls)

	require.Len(t, records.saved, 1)
	record := records.saved[0]
	require.Equal(t, "CA1", record.Session.ID)
	require.Equal(t, ReasonHangup, record.Reason)
	require.Equal(t, summarizer.summary, record.Summary)

	require.Nil(t, reg.Get("CA1"))
	require.Equal(t, 0, reg.Len())
}

func TestFinalize_QuotaEndsTheCallFirst(t *testing.T) {
	reg := session.NewRegistry()
	sess := startedSession(t, reg)
	control := &fakeControl{}

	f := New(Deps{Control: control, Registry: reg})
	f.Finalize(context.Background(), sess, ReasonQuota)

	require.Equal(t, 1, control.calls)
	require.Equal(t, "CA1", control.callSID)
	require.Equal(t, "DE", control.country)
	require.Nil(t, reg.Get("CA1"))
}

func TestFinalize_StepFailuresDoNotBlockCleanup(t *testing.T) {
	reg := session.NewRegistry()
	sess := startedSession(t, reg)

	summarizer := &fakeSummarizer{err: errors.New("summarizer down")}
	notifier := &fakeNotifier{}
	records := &fakeRecords{err: errors.New("persistence down")}

	f := New(Deps{
		Summarizer: summarizer,
		Notifier:   notifier,
		Records:    records,
		Registry:   reg,
	})
	f.Finalize(context.Background(), sess, ReasonError)

	require.Equal(t, 1, summarizer.calls)
	require.Zero(t, notifier.calls)
	require.Len(t, records.saved, 1)
	require.Nil(t, records.saved[0].Summary)
	require.Nil(t, reg.Get("CA1"))
}

func TestFinalize_SkipsSummaryForEmptyTranscript(t *testing.T) {
	reg := session.NewRegistry()
	sess := reg.Start("CA2")

	summarizer := &fakeSummarizer{summary: &CallSummary{}}
	f := New(Deps{Summarizer: summarizer, Registry: reg})
	f.Finalize(context.Background(), sess, ReasonHangup)

	require.Zero(t, summarizer.calls)
	require.Nil(t, reg.Get("CA2"))
}

func TestFinalize_OutlivesCallerCancellation(t *testing.T) {
	reg := session.NewRegistry()
	sess := startedSession(t, reg)

	summarizer := &fakeSummarizer{summary: &CallSummary{CustomerName: "Ada"}}
	f := New(Deps{Summarizer: summarizer, Registry: reg, Timeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.Finalize(ctx, sess, ReasonHangup)

	require.Equal(t, 1, summarizer.calls)
	require.Len(t, summarizer.got.Transcript, 2)
}

func TestChatSummarizer(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":` +
			`"{\"customerName\":\"Ada\",\"customerLanguage\":\"de\",\"customerAvailability\":\"mornings\",\"specialNotes\":\"none\"}"}}]}`))
	}))
	defer server.Close()

	s := NewChatSummarizer(server.URL, "sk-test", "gpt-4o-mini", time.Second)
	summary, err := s.Summarize(context.Background(), session.Snapshot{
		ID:         "CA1",
		Transcript: []string{"[00:00:01] User: Hallo"},
	})
	require.NoError(t, err)
	require.Equal(t, &CallSummary{
		CustomerName:         "Ada",
		CustomerLanguage:     "de",
		CustomerAvailability: "mornings",
		SpecialNotes:         "none",
	}, summary)

	require.Equal(t, "Bearer sk-test", gotAuth)
	require.Equal(t, "gpt-4o-mini", gotBody["model"])
	format := gotBody["response_format"].(map[string]any)
	require.Equal(t, "json_schema", format["type"])
	require.Equal(t, "call_summary", format["json_schema"].(map[string]any)["name"])
	messages := gotBody["messages"].([]any)
	require.Len(t, messages, 2)
	require.Contains(t, messages[1].(map[string]any)["content"], "User: Hallo")
}

func TestChatSummarizer_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	s := NewChatSummarizer(server.URL, "sk-test", "gpt-4o-mini", time.Second)
	_, err := s.Summarize(context.Background(), session.Snapshot{})
	require.ErrorContains(t, err, "status 401")
}

func TestWebhookNotifier(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"status":200,"message":"ok"}`))
	}))
	defer server.Close()

	n := NewWebhookNotifier(tools.NewWebhookClient(server.URL, "hook-token", nil))
	err := n.CallCompleted(context.Background(), session.Snapshot{ID: "CA1"}, &CallSummary{
		CustomerName:     "Ada",
		CustomerLanguage: "de",
	})
	require.NoError(t, err)

	require.Equal(t, "call_summary", gotBody["action"])
	params := gotBody["parameters"].(map[string]any)
	require.Equal(t, "Ada", params["customerName"])
	require.Equal(t, "CA1", gotBody["session"].(map[string]any)["id"])
}

func TestWebhookNotifier_UnconfiguredIsANoop(t *testing.T) {
	n := NewWebhookNotifier(tools.NewWebhookClient("", "", nil))
	require.NoError(t, n.CallCompleted(context.Background(), session.Snapshot{}, &CallSummary{}))
}
