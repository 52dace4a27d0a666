package server

import (
	"context"
	"log/slog"

	"github.com/voxbridge/voxbridge/pkg/bridge/ai"
	"github.com/voxbridge/voxbridge/pkg/bridge/call"
	"github.com/voxbridge/voxbridge/pkg/bridge/config"
	"github.com/voxbridge/voxbridge/pkg/bridge/finalize"
	"github.com/voxbridge/voxbridge/pkg/bridge/metrics"
	"github.com/voxbridge/voxbridge/pkg/bridge/session"
	"github.com/voxbridge/voxbridge/pkg/bridge/telephony"
	"github.com/voxbridge/voxbridge/pkg/bridge/tools"
)

type dialFunc func(ctx context.Context, cfg ai.StreamConfig, log *slog.Logger) (*ai.Stream, error)

// BridgeDeps are the shared collaborators every call runs against.
type BridgeDeps struct {
	Tools      *tools.Registry
	Dispatcher call.ToolDispatcher
	Memory     call.MemoryReader
	Finalizer  call.SessionFinalizer
	Metrics    *metrics.Metrics
	Log        *slog.Logger
}

// Bridge turns an accepted media stream into a running call: it dials the
// realtime session, assembles the call loop and blocks until finalization.
type Bridge struct {
	cfg      config.Config
	settings ai.SessionSettings
	deps     BridgeDeps
	dial     dialFunc
	log      *slog.Logger
}

func NewBridge(cfg config.Config, deps BridgeDeps) *Bridge {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{
		cfg:      cfg,
		settings: SessionSettingsFromConfig(cfg, deps.Tools),
		deps:     deps,
		dial:     ai.Dial,
		log:      log,
	}
}

// SessionSettingsFromConfig builds the realtime session settings, declaring
// every visible registry tool to the model.
func SessionSettingsFromConfig(cfg config.Config, registry *tools.Registry) ai.SessionSettings {
	settings := ai.SessionSettings{
		Voice:              cfg.Voice,
		Instructions:       cfg.Instructions,
		Temperature:        0.8,
		TranscriptionModel: cfg.TranscriptionModel,
		VADThreshold:       cfg.VADThreshold,
		VADPrefixPadding:   cfg.VADPrefixPadding,
		VADSilenceDuration: cfg.VADSilenceDuration,
	}
	if registry != nil {
		for _, t := range registry.Visible() {
			settings.Tools = append(settings.Tools, ai.ToolDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.ParametersJSON(),
			})
		}
	}
	return settings
}

// Run implements handlers.CallRunner for one accepted media stream.
func (b *Bridge) Run(ctx context.Context, sess *session.Session, media *telephony.Stream) {
	log := b.log.With("session_id", sess.ID)

	finalizer := meteredFinalizer{next: b.deps.Finalizer, m: b.deps.Metrics}
	aiStream, err := b.dial(ctx, ai.StreamConfig{
		URL:              b.cfg.RealtimeURL,
		Model:            b.cfg.RealtimeModel,
		APIKey:           b.cfg.OpenAIAPIKey,
		HandshakeTimeout: b.cfg.HandshakeTimeout,
		WriteTimeout:     b.cfg.WSWriteTimeout,
	}, log)
	if err != nil {
		log.Error("realtime dial failed", "error", err)
		media.Close()
		finalizer.Finalize(ctx, sess, finalize.ReasonError)
		return
	}

	c := call.New(call.Config{
		AppName:           b.cfg.AppName,
		Settings:          b.settings,
		MaxToolRoundTrips: b.cfg.MaxToolRoundTrips,
	}, call.Deps{
		Session:    sess,
		Media:      meteredMedia{Stream: media, m: b.deps.Metrics},
		AI:         meteredAI{Stream: aiStream, m: b.deps.Metrics},
		Dispatcher: meteredDispatcher{next: b.deps.Dispatcher, m: b.deps.Metrics},
		Memory:     b.deps.Memory,
		Finalizer:  finalizer,
		Log:        log,
	})
	c.Run(ctx)
}
