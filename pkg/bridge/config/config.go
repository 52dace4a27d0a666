// Package config loads the bridge configuration from VOXBRIDGE_* environment
// variables. Every knob has a default; LoadFromEnv validates the combined
// result so misconfiguration fails at startup, not mid-call.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr string

	// PublicHost is the externally reachable host used in the TwiML stream
	// URL. Empty means derive it from the incoming request's Host header.
	PublicHost string

	// AppName prefixes the per-tenant memory scope id.
	AppName string

	// AI realtime session.
	RealtimeURL        string
	RealtimeModel      string
	OpenAIAPIKey       string
	Voice              string
	Instructions       string
	TranscriptionModel string

	// Server-side voice activity detection.
	VADThreshold        float64
	VADPrefixPadding    time.Duration
	VADSilenceDuration  time.Duration

	// Post-call summarization (chat completions).
	CompletionsURL string
	SummaryModel   string

	// Telephony provider REST API, used to end calls with a spoken goodbye.
	TwilioBaseURL    string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioTimeout    time.Duration

	// Webhook tool backend.
	WebhookURL     string
	WebhookToken   string
	WebhookTimeout time.Duration

	// Optional YAML file declaring additional webhook tools.
	ToolsFile string

	// Per-turn bound on tool round trips.
	MaxToolRoundTrips int

	// Redis-backed memory and call records. Empty addr disables persistence.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// WebSocket plumbing, both legs.
	WSPingInterval     time.Duration
	WSWriteTimeout     time.Duration
	HandshakeTimeout   time.Duration
	MediaQueueSize     int
	PriorityQueueSize  int

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration
	FinalizeTimeout     time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("VOXBRIDGE_ADDR", ":8080"),
		PublicHost:          envOr("VOXBRIDGE_PUBLIC_HOST", ""),
		AppName:             envOr("VOXBRIDGE_APP_NAME", "voxbridge"),
		RealtimeURL:         envOr("VOXBRIDGE_REALTIME_URL", "wss://api.openai.com/v1/realtime"),
		RealtimeModel:       envOr("VOXBRIDGE_REALTIME_MODEL", "gpt-4o-realtime-preview-2024-10-01"),
		OpenAIAPIKey:        strings.TrimSpace(os.Getenv("VOXBRIDGE_OPENAI_API_KEY")),
		Voice:               envOr("VOXBRIDGE_VOICE", "echo"),
		Instructions:        envOr("VOXBRIDGE_INSTRUCTIONS", defaultInstructions),
		TranscriptionModel:  envOr("VOXBRIDGE_TRANSCRIPTION_MODEL", "whisper-1"),
		VADThreshold:        envFloat64Or("VOXBRIDGE_VAD_THRESHOLD", 0.6),
		VADPrefixPadding:    envDurationOr("VOXBRIDGE_VAD_PREFIX_PADDING", 500*time.Millisecond),
		VADSilenceDuration:  envDurationOr("VOXBRIDGE_VAD_SILENCE_DURATION", 1000*time.Millisecond),
		CompletionsURL:      envOr("VOXBRIDGE_COMPLETIONS_URL", "https://api.openai.com/v1/chat/completions"),
		SummaryModel:        envOr("VOXBRIDGE_SUMMARY_MODEL", "gpt-4o-mini"),
		TwilioBaseURL:       envOr("VOXBRIDGE_TWILIO_BASE_URL", "https://api.twilio.com"),
		TwilioAccountSID:    strings.TrimSpace(os.Getenv("VOXBRIDGE_TWILIO_ACCOUNT_SID")),
		TwilioAuthToken:     strings.TrimSpace(os.Getenv("VOXBRIDGE_TWILIO_AUTH_TOKEN")),
		TwilioTimeout:       envDurationOr("VOXBRIDGE_TWILIO_TIMEOUT", 10*time.Second),
		WebhookURL:          strings.TrimSpace(os.Getenv("VOXBRIDGE_WEBHOOK_URL")),
		WebhookToken:        strings.TrimSpace(os.Getenv("VOXBRIDGE_WEBHOOK_TOKEN")),
		WebhookTimeout:      envDurationOr("VOXBRIDGE_WEBHOOK_TIMEOUT", 10*time.Second),
		ToolsFile:           envOr("VOXBRIDGE_TOOLS_FILE", ""),
		MaxToolRoundTrips:   envIntOr("VOXBRIDGE_MAX_TOOL_ROUND_TRIPS", 3),
		RedisAddr:           envOr("VOXBRIDGE_REDIS_ADDR", ""),
		RedisPassword:       os.Getenv("VOXBRIDGE_REDIS_PASSWORD"),
		RedisDB:             envIntOr("VOXBRIDGE_REDIS_DB", 0),
		WSPingInterval:      envDurationOr("VOXBRIDGE_WS_PING_INTERVAL", 20*time.Second),
		WSWriteTimeout:      envDurationOr("VOXBRIDGE_WS_WRITE_TIMEOUT", 5*time.Second),
		HandshakeTimeout:    envDurationOr("VOXBRIDGE_HANDSHAKE_TIMEOUT", 10*time.Second),
		MediaQueueSize:      envIntOr("VOXBRIDGE_MEDIA_QUEUE_SIZE", 64),
		PriorityQueueSize:   envIntOr("VOXBRIDGE_PRIORITY_QUEUE_SIZE", 4),
		ReadHeaderTimeout:   envDurationOr("VOXBRIDGE_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:         envDurationOr("VOXBRIDGE_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod: envDurationOr("VOXBRIDGE_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		FinalizeTimeout:     envDurationOr("VOXBRIDGE_FINALIZE_TIMEOUT", 30*time.Second),
	}

	if cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("VOXBRIDGE_OPENAI_API_KEY must be set")
	}
	if err := requireURL("VOXBRIDGE_REALTIME_URL", cfg.RealtimeURL, "ws", "wss"); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.RealtimeModel) == "" {
		return Config{}, fmt.Errorf("VOXBRIDGE_REALTIME_MODEL must not be empty")
	}
	if cfg.VADThreshold < 0 || cfg.VADThreshold > 1 {
		return Config{}, fmt.Errorf("VOXBRIDGE_VAD_THRESHOLD must be within [0,1]")
	}
	if cfg.VADPrefixPadding < 0 {
		return Config{}, fmt.Errorf("VOXBRIDGE_VAD_PREFIX_PADDING must be >= 0")
	}
	if cfg.VADSilenceDuration <= 0 {
		return Config{}, fmt.Errorf("VOXBRIDGE_VAD_SILENCE_DURATION must be > 0")
	}
	if err := requireURL("VOXBRIDGE_COMPLETIONS_URL", cfg.CompletionsURL, "http", "https"); err != nil {
		return Config{}, err
	}
	if err := requireURL("VOXBRIDGE_TWILIO_BASE_URL", cfg.TwilioBaseURL, "http", "https"); err != nil {
		return Config{}, err
	}
	if (cfg.TwilioAccountSID == "") != (cfg.TwilioAuthToken == "") {
		return Config{}, fmt.Errorf("VOXBRIDGE_TWILIO_ACCOUNT_SID and VOXBRIDGE_TWILIO_AUTH_TOKEN must be set together")
	}
	if cfg.TwilioTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXBRIDGE_TWILIO_TIMEOUT must be > 0")
	}
	if cfg.WebhookURL != "" {
		if err := requireURL("VOXBRIDGE_WEBHOOK_URL", cfg.WebhookURL, "http", "https"); err != nil {
			return Config{}, err
		}
	}
	if cfg.WebhookTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXBRIDGE_WEBHOOK_TIMEOUT must be > 0")
	}
	if cfg.MaxToolRoundTrips <= 0 {
		return Config{}, fmt.Errorf("VOXBRIDGE_MAX_TOOL_ROUND_TRIPS must be > 0")
	}
	if cfg.RedisDB < 0 {
		return Config{}, fmt.Errorf("VOXBRIDGE_REDIS_DB must be >= 0")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("VOXBRIDGE_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXBRIDGE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.HandshakeTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXBRIDGE_HANDSHAKE_TIMEOUT must be > 0")
	}
	if cfg.MediaQueueSize <= 0 {
		return Config{}, fmt.Errorf("VOXBRIDGE_MEDIA_QUEUE_SIZE must be > 0")
	}
	if cfg.PriorityQueueSize <= 0 {
		return Config{}, fmt.Errorf("VOXBRIDGE_PRIORITY_QUEUE_SIZE must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXBRIDGE_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXBRIDGE_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("VOXBRIDGE_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.FinalizeTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXBRIDGE_FINALIZE_TIMEOUT must be > 0")
	}

	return cfg, nil
}

const defaultInstructions = "You are a friendly phone assistant. Keep answers short and conversational; the caller hears them as speech."

func requireURL(key, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %v", key, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("%s must include a host", key)
			}
			return nil
		}
	}
	return fmt.Errorf("%s must use one of the schemes %s", key, strings.Join(schemes, "|"))
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
