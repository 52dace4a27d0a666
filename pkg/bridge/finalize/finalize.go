// Package finalize handles everything that happens once a call ends:
// summarization, notification, record persistence and registry cleanup.
package finalize

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/voxbridge/voxbridge/pkg/bridge/session"
	"github.com/voxbridge/voxbridge/pkg/bridge/store"
	"github.com/voxbridge/voxbridge/pkg/bridge/telephony"
)

// Session end reasons recorded on the persisted call record.
const (
	ReasonHangup   = "hangup"
	ReasonQuota    = "quota"
	ReasonError    = "error"
	ReasonShutdown = "shutdown"
)

// RecordStore is the slice of the persistence layer the finalizer needs.
type RecordStore interface {
	SaveCallRecord(ctx context.Context, record store.CallRecord) error
}

// Deps are the finalizer's collaborators. Any of them may be nil; the
// corresponding step is skipped.
type Deps struct {
	Summarizer Summarizer
	Notifier   Notifier
	Records    RecordStore
	Control    telephony.CallControl
	Registry   *session.Registry
	Timeout    time.Duration
	Log        *slog.Logger
}

// Finalizer runs the teardown pipeline for one finished session. Step
// failures are logged and never abort the remaining steps: the registry
// entry is always released.
type Finalizer struct {
	deps Deps
	now  func() time.Time
}

func New(deps Deps) *Finalizer {
	if deps.Timeout <= 0 {
		deps.Timeout = 30 * time.Second
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Finalizer{deps: deps, now: time.Now}
}

// Finalize tears the session down. Any closers are shut first so no more
// events arrive while the pipeline runs. The pipeline outlives the caller's
// cancellation but not the configured timeout.
func (f *Finalizer) Finalize(ctx context.Context, sess *session.Session, reason string, closers ...io.Closer) {
	for _, c := range closers {
		if c != nil {
			_ = c.Close()
		}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.deps.Timeout)
	defer cancel()

	snap := sess.Snapshot()
	log := f.deps.Log.With("session_id", snap.ID, "reason", reason)
	log.Info("finalizing session", "transcript_lines", len(snap.Transcript))

	if reason == ReasonQuota {
		f.endCall(ctx, snap, log)
	}

	var summary *CallSummary
	if f.deps.Summarizer != nil && len(snap.Transcript) > 0 {
		var err error
		summary, err = f.deps.Summarizer.Summarize(ctx, snap)
		if err != nil {
			log.Error("call summarization failed", "error", err)
		}
	}

	if summary != nil && f.deps.Notifier != nil {
		if err := f.deps.Notifier.CallCompleted(ctx, snap, summary); err != nil {
			log.Error("summary notification failed", "error", err)
		}
	}

	if f.deps.Records != nil {
		record := store.CallRecord{
			Session: snap,
			EndedAt: f.now().UTC(),
			Reason:  reason,
		}
		if summary != nil {
			record.Summary = summary
		}
		if err := f.deps.Records.SaveCallRecord(ctx, record); err != nil {
			log.Error("call record persistence failed", "error", err)
		}
	}

	if f.deps.Registry != nil {
		f.deps.Registry.Stop(snap.ID)
	}
}

func (f *Finalizer) endCall(ctx context.Context, snap session.Snapshot, log *slog.Logger) {
	if f.deps.Control == nil || snap.IncomingCall == nil || snap.IncomingCall.CallSID == "" {
		return
	}
	if err := f.deps.Control.EndCall(ctx, snap.IncomingCall.CallSID, snap.IncomingCall.CallerCountry); err != nil {
		log.Error("call termination failed", "call_sid", snap.IncomingCall.CallSID, "error", err)
	}
}
