// Package handlers implements the bridge's web surface: the voice webhook
// answering with stream TwiML, the media-stream websocket endpoint, and
// health reporting.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/voxbridge/voxbridge/pkg/bridge/metrics"
	"github.com/voxbridge/voxbridge/pkg/bridge/session"
	"github.com/voxbridge/voxbridge/pkg/bridge/telephony"
)

// CallRunner drives one call over an upgraded media stream. It blocks until
// the call is finished and finalized.
type CallRunner interface {
	Run(ctx context.Context, sess *session.Session, media *telephony.Stream)
}

// Deps carries the handler collaborators.
type Deps struct {
	Registry   *session.Registry
	Runner     CallRunner
	Metrics    *metrics.Metrics
	PublicHost string
	StreamCfg  telephony.StreamConfig
	Upgrader   websocket.Upgrader
	Log        *slog.Logger
}

type Handler struct {
	deps Deps
	log  *slog.Logger
}

func New(deps Deps) *Handler {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &Handler{deps: deps, log: log}
}

// IncomingCall answers the provider's voice webhook with TwiML that connects
// the call to the media-stream websocket. The call metadata travels along as
// a custom parameter; the one-shot CallToken is deliberately left out.
func (h *Handler) IncomingCall(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	incoming := incomingFromForm(r)
	h.log.Info("incoming call",
		"call_sid", incoming.CallSID,
		"caller", incoming.Caller,
		"caller_country", incoming.CallerCountry)

	host := h.deps.PublicHost
	if host == "" {
		host = r.Host
	}
	twiml, err := telephony.StreamTwiML("wss://"+host+"/media-stream", incoming)
	if err != nil {
		h.log.Error("twiml render failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(twiml))
}

// MediaStream upgrades to the media-stream websocket and runs the call until
// it ends. The session is registered before the first frame so shutdown can
// find and cancel it.
func (h *Handler) MediaStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.deps.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("media-stream upgrade failed", "error", err)
		return
	}

	sess := h.deps.Registry.Start(strings.TrimSpace(r.Header.Get("X-Twilio-Call-Sid")))
	if h.deps.Metrics != nil {
		h.deps.Metrics.ActiveSessions.Inc()
		defer h.deps.Metrics.ActiveSessions.Dec()
	}
	h.log.Info("media stream accepted", "session_id", sess.ID, "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	h.deps.Registry.Attach(sess.ID, session.Handle{Cancel: cancel})

	media := telephony.NewStream(conn, h.deps.StreamCfg, h.log.With("session_id", sess.ID))
	go media.Run(ctx)

	h.deps.Runner.Run(ctx, sess, media)
	if h.deps.Metrics != nil {
		h.deps.Metrics.DroppedMedia.Add(float64(media.DroppedMedia()))
	}
}

// Healthz reports liveness and the current session count.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": h.deps.Registry.Len(),
	})
}

func incomingFromForm(r *http.Request) session.IncomingCall {
	get := func(key string) string { return strings.TrimSpace(r.PostFormValue(key)) }
	return session.IncomingCall{
		CallSID:       get("CallSid"),
		AccountSID:    get("AccountSid"),
		CallStatus:    get("CallStatus"),
		Direction:     get("Direction"),
		Caller:        get("Caller"),
		CallerCity:    get("CallerCity"),
		CallerCountry: get("CallerCountry"),
		From:          get("From"),
		FromCountry:   get("FromCountry"),
		Called:        get("Called"),
		CalledCountry: get("CalledCountry"),
		To:            get("To"),
		ToCountry:     get("ToCountry"),
	}
}
