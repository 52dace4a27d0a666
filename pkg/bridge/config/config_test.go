package config

import (
	"strings"
	"testing"
	"time"
)

var bridgeEnvKeys = []string{
	"VOXBRIDGE_ADDR",
	"VOXBRIDGE_PUBLIC_HOST",
	"VOXBRIDGE_APP_NAME",
	"VOXBRIDGE_REALTIME_URL",
	"VOXBRIDGE_REALTIME_MODEL",
	"VOXBRIDGE_OPENAI_API_KEY",
	"VOXBRIDGE_VOICE",
	"VOXBRIDGE_INSTRUCTIONS",
	"VOXBRIDGE_TRANSCRIPTION_MODEL",
	"VOXBRIDGE_VAD_THRESHOLD",
	"VOXBRIDGE_VAD_PREFIX_PADDING",
	"VOXBRIDGE_VAD_SILENCE_DURATION",
	"VOXBRIDGE_COMPLETIONS_URL",
	"VOXBRIDGE_SUMMARY_MODEL",
	"VOXBRIDGE_TWILIO_BASE_URL",
	"VOXBRIDGE_TWILIO_ACCOUNT_SID",
	"VOXBRIDGE_TWILIO_AUTH_TOKEN",
	"VOXBRIDGE_TWILIO_TIMEOUT",
	"VOXBRIDGE_WEBHOOK_URL",
	"VOXBRIDGE_WEBHOOK_TOKEN",
	"VOXBRIDGE_WEBHOOK_TIMEOUT",
	"VOXBRIDGE_TOOLS_FILE",
	"VOXBRIDGE_MAX_TOOL_ROUND_TRIPS",
	"VOXBRIDGE_REDIS_ADDR",
	"VOXBRIDGE_REDIS_PASSWORD",
	"VOXBRIDGE_REDIS_DB",
	"VOXBRIDGE_WS_PING_INTERVAL",
	"VOXBRIDGE_WS_WRITE_TIMEOUT",
	"VOXBRIDGE_HANDSHAKE_TIMEOUT",
	"VOXBRIDGE_MEDIA_QUEUE_SIZE",
	"VOXBRIDGE_PRIORITY_QUEUE_SIZE",
	"VOXBRIDGE_READ_HEADER_TIMEOUT",
	"VOXBRIDGE_READ_TIMEOUT",
	"VOXBRIDGE_SHUTDOWN_GRACE_PERIOD",
	"VOXBRIDGE_FINALIZE_TIMEOUT",
}

func clearBridgeEnv(t *testing.T) {
	t.Helper()
	for _, key := range bridgeEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearBridgeEnv(t)
	t.Setenv("VOXBRIDGE_OPENAI_API_KEY", "sk-test")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.AppName != "voxbridge" {
		t.Fatalf("AppName = %q", cfg.AppName)
	}
	if cfg.RealtimeURL != "wss://api.openai.com/v1/realtime" {
		t.Fatalf("RealtimeURL = %q", cfg.RealtimeURL)
	}
	if cfg.Voice != "echo" {
		t.Fatalf("Voice = %q, want echo", cfg.Voice)
	}
	if cfg.TranscriptionModel != "whisper-1" {
		t.Fatalf("TranscriptionModel = %q, want whisper-1", cfg.TranscriptionModel)
	}
	if cfg.VADThreshold != 0.6 {
		t.Fatalf("VADThreshold = %v, want 0.6", cfg.VADThreshold)
	}
	if cfg.VADPrefixPadding != 500*time.Millisecond {
		t.Fatalf("VADPrefixPadding = %v, want 500ms", cfg.VADPrefixPadding)
	}
	if cfg.VADSilenceDuration != time.Second {
		t.Fatalf("VADSilenceDuration = %v, want 1s", cfg.VADSilenceDuration)
	}
	if cfg.MaxToolRoundTrips != 3 {
		t.Fatalf("MaxToolRoundTrips = %d, want 3", cfg.MaxToolRoundTrips)
	}
	if cfg.WebhookTimeout != 10*time.Second {
		t.Fatalf("WebhookTimeout = %v, want 10s", cfg.WebhookTimeout)
	}
	if cfg.WSPingInterval != 20*time.Second {
		t.Fatalf("WSPingInterval = %v, want 20s", cfg.WSPingInterval)
	}
	if cfg.WSWriteTimeout != 5*time.Second {
		t.Fatalf("WSWriteTimeout = %v, want 5s", cfg.WSWriteTimeout)
	}
	if cfg.MediaQueueSize != 64 {
		t.Fatalf("MediaQueueSize = %d, want 64", cfg.MediaQueueSize)
	}
	if cfg.PriorityQueueSize != 4 {
		t.Fatalf("PriorityQueueSize = %d, want 4", cfg.PriorityQueueSize)
	}
	if cfg.RedisAddr != "" {
		t.Fatalf("RedisAddr = %q, want empty", cfg.RedisAddr)
	}
	if cfg.Instructions == "" {
		t.Fatal("Instructions empty")
	}
}

func TestLoadFromEnv_MissingAPIKey(t *testing.T) {
	clearBridgeEnv(t)

	_, err := LoadFromEnv()
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "VOXBRIDGE_OPENAI_API_KEY") {
		t.Fatalf("error = %v", err)
	}
}

func TestLoadFromEnv_RejectsBadRealtimeScheme(t *testing.T) {
	clearBridgeEnv(t)
	t.Setenv("VOXBRIDGE_OPENAI_API_KEY", "sk-test")
	t.Setenv("VOXBRIDGE_REALTIME_URL", "https://api.openai.com/v1/realtime")

	_, err := LoadFromEnv()
	if err == nil || !strings.Contains(err.Error(), "VOXBRIDGE_REALTIME_URL") {
		t.Fatalf("error = %v", err)
	}
}

func TestLoadFromEnv_TwilioCredsMustPair(t *testing.T) {
	clearBridgeEnv(t)
	t.Setenv("VOXBRIDGE_OPENAI_API_KEY", "sk-test")
	t.Setenv("VOXBRIDGE_TWILIO_ACCOUNT_SID", "ACxxxx")

	_, err := LoadFromEnv()
	if err == nil || !strings.Contains(err.Error(), "must be set together") {
		t.Fatalf("error = %v", err)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearBridgeEnv(t)
	t.Setenv("VOXBRIDGE_OPENAI_API_KEY", "sk-test")
	t.Setenv("VOXBRIDGE_ADDR", ":9090")
	t.Setenv("VOXBRIDGE_VAD_THRESHOLD", "0.4")
	t.Setenv("VOXBRIDGE_MAX_TOOL_ROUND_TRIPS", "5")
	t.Setenv("VOXBRIDGE_WEBHOOK_URL", "https://hooks.example.com/tools")
	t.Setenv("VOXBRIDGE_REDIS_ADDR", "localhost:6379")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.VADThreshold != 0.4 {
		t.Fatalf("VADThreshold = %v", cfg.VADThreshold)
	}
	if cfg.MaxToolRoundTrips != 5 {
		t.Fatalf("MaxToolRoundTrips = %d", cfg.MaxToolRoundTrips)
	}
	if cfg.WebhookURL != "https://hooks.example.com/tools" {
		t.Fatalf("WebhookURL = %q", cfg.WebhookURL)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("RedisAddr = %q", cfg.RedisAddr)
	}
}

func TestLoadFromEnv_RejectsOutOfRangeThreshold(t *testing.T) {
	clearBridgeEnv(t)
	t.Setenv("VOXBRIDGE_OPENAI_API_KEY", "sk-test")
	t.Setenv("VOXBRIDGE_VAD_THRESHOLD", "1.5")

	_, err := LoadFromEnv()
	if err == nil || !strings.Contains(err.Error(), "VOXBRIDGE_VAD_THRESHOLD") {
		t.Fatalf("error = %v", err)
	}
}
