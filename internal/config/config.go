package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port     int
	LogLevel string

	// Zoom credentials and event stream.
	ZoomWebSocketURL   string
	ZoomSubscriptionID string
	ZoomTokenURL       string
	ZoomClientID       string
	ZoomClientSecret   string
	ZoomAccountID      string

	HeartbeatInterval    time.Duration
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration

	// Outbound dispatcher.
	RateWindow      time.Duration
	RateMaxRequests int
	RetryDelay      time.Duration
	MaxRetries      int

	// Event processing.
	InterTaskDelay  time.Duration
	InterGroupDelay time.Duration
	DefaultProject  string

	// Task board (Trello-style API).
	BoardBaseURL string
	BoardAPIKey  string
	BoardToken   string
	BoardListID  string

	// Transcription and interpretation services.
	SpeechEndpoint string
	SpeechAPIKey   string
	LLMEndpoint    string
	LLMAPIKey      string
	LLMModel       string

	// Media workspace.
	MediaDir   string
	FFmpegPath string

	// Optional integrations.
	DatabaseURL string
	NatsURL     string
}

func Load() Config {
	return Config{
		Port:     envInt("PORT", 3000),
		LogLevel: envStr("LOG_LEVEL", "info"),

		ZoomWebSocketURL:   envStr("ZOOM_WS_URL", "wss://ws.zoom.us/ws"),
		ZoomSubscriptionID: envStr("ZOOM_SUBSCRIPTION_ID", ""),
		ZoomTokenURL:       envStr("ZOOM_TOKEN_URL", "https://zoom.us/oauth/token"),
		ZoomClientID:       envStr("ZOOM_CLIENT_ID", ""),
		ZoomClientSecret:   envStr("ZOOM_CLIENT_SECRET", ""),
		ZoomAccountID:      envStr("ZOOM_ACCOUNT_ID", ""),

		HeartbeatInterval:    envDur("HEARTBEAT_INTERVAL_MS", 30_000),
		MaxReconnectAttempts: envInt("MAX_RECONNECT_ATTEMPTS", 10),
		ReconnectBaseDelay:   envDur("RECONNECT_BASE_DELAY_MS", 1_000),
		ReconnectMaxDelay:    envDur("RECONNECT_MAX_DELAY_MS", 60_000),

		RateWindow:      envDur("DISPATCH_WINDOW_MS", 10_000),
		RateMaxRequests: envInt("DISPATCH_MAX_REQUESTS", 80),
		RetryDelay:      envDur("DISPATCH_RETRY_DELAY_MS", 2_000),
		MaxRetries:      envInt("DISPATCH_MAX_RETRIES", 3),

		InterTaskDelay:  envDur("INTER_TASK_DELAY_MS", 1_500),
		InterGroupDelay: envDur("INTER_GROUP_DELAY_MS", 3_000),
		DefaultProject:  envStr("DEFAULT_PROJECT", "General"),

		BoardBaseURL: envStr("BOARD_BASE_URL", "https://api.trello.com/1"),
		BoardAPIKey:  envStr("BOARD_API_KEY", ""),
		BoardToken:   envStr("BOARD_TOKEN", ""),
		BoardListID:  envStr("BOARD_LIST_ID", ""),

		SpeechEndpoint: envStr("SPEECH_ENDPOINT", "https://api.assemblyai.com/v2"),
		SpeechAPIKey:   envStr("SPEECH_API_KEY", ""),
		LLMEndpoint:    envStr("LLM_ENDPOINT", "https://api.anthropic.com/v1/messages"),
		LLMAPIKey:      envStr("LLM_API_KEY", ""),
		LLMModel:       envStr("LLM_MODEL", "claude-3-5-haiku-20241022"),

		MediaDir:   envStr("MEDIA_DIR", os.TempDir()),
		FFmpegPath: envStr("FFMPEG_PATH", "ffmpeg"),

		DatabaseURL: envStr("DATABASE_URL", ""),
		NatsURL:     envStr("NATS_URL", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDur(key string, fallbackMS int) time.Duration {
	return time.Duration(envInt(key, fallbackMS)) * time.Millisecond
}
