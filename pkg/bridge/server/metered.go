package server

import (
	"context"
	"io"
	"time"

	"github.com/voxbridge/voxbridge/pkg/bridge/ai"
	"github.com/voxbridge/voxbridge/pkg/bridge/call"
	"github.com/voxbridge/voxbridge/pkg/bridge/metrics"
	"github.com/voxbridge/voxbridge/pkg/bridge/session"
	"github.com/voxbridge/voxbridge/pkg/bridge/telephony"
	"github.com/voxbridge/voxbridge/pkg/bridge/tools"
)

// The metered wrappers count relayed frames, tool latency and finalization
// reasons without the call loop knowing about metrics. A nil *Metrics turns
// them into plain pass-throughs.

type meteredMedia struct {
	*telephony.Stream
	m *metrics.Metrics
}

func (mm meteredMedia) SendMedia(streamSID, payloadB64 string) {
	if mm.m != nil {
		mm.m.FramesRelayed.WithLabelValues(metrics.DirectionOutbound).Inc()
	}
	mm.Stream.SendMedia(streamSID, payloadB64)
}

type meteredAI struct {
	*ai.Stream
	m *metrics.Metrics
}

func (ma meteredAI) AppendAudio(ctx context.Context, payloadB64 string) error {
	if ma.m != nil {
		ma.m.FramesRelayed.WithLabelValues(metrics.DirectionInbound).Inc()
	}
	return ma.Stream.AppendAudio(ctx, payloadB64)
}

type meteredDispatcher struct {
	next call.ToolDispatcher
	m    *metrics.Metrics
}

func (md meteredDispatcher) Invoke(ctx context.Context, inv tools.Invocation, sess *session.Session) tools.Result {
	started := time.Now()
	res := md.next.Invoke(ctx, inv, sess)
	if md.m != nil {
		md.m.ObserveTool(inv.Name, time.Since(started))
	}
	return res
}

type meteredFinalizer struct {
	next call.SessionFinalizer
	m    *metrics.Metrics
}

func (mf meteredFinalizer) Finalize(ctx context.Context, sess *session.Session, reason string, closers ...io.Closer) {
	if mf.m != nil {
		mf.m.CallsFinalized.WithLabelValues(reason).Inc()
	}
	mf.next.Finalize(ctx, sess, reason, closers...)
}
