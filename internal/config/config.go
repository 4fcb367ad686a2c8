package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Dispatch  DispatchConfig
	Synthesis SynthesisConfig
	Notify    NotifyConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type DispatchConfig struct {
	VoiceConcurrency int
	MaxRetry         int
	RetryBaseMs      int
	RetentionHours   int
}

type SynthesisConfig struct {
	APIKey           string
	RealtimeURL      string // websocket base endpoint; model appended as query param
	SpeechURL        string // request/response synthesis endpoint
	SampleRate       int
	SessionTimeoutMs int
}

type NotifyConfig struct {
	CallbackURL string // empty disables job lifecycle notifications
	Secret      string
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	voiceConc, err := getEnvInt("DISPATCH_VOICE_CONCURRENCY", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DISPATCH_VOICE_CONCURRENCY: %w", err)
	}

	maxRetry, err := getEnvInt("DISPATCH_MAX_RETRY", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DISPATCH_MAX_RETRY: %w", err)
	}

	retryBase, err := getEnvInt("DISPATCH_RETRY_BASE_MS", 2000)
	if err != nil {
		return nil, fmt.Errorf("invalid DISPATCH_RETRY_BASE_MS: %w", err)
	}

	retention, err := getEnvInt("DISPATCH_RETENTION_HOURS", 24)
	if err != nil {
		return nil, fmt.Errorf("invalid DISPATCH_RETENTION_HOURS: %w", err)
	}

	sampleRate, err := getEnvInt("SYNTH_SAMPLE_RATE", 24000)
	if err != nil {
		return nil, fmt.Errorf("invalid SYNTH_SAMPLE_RATE: %w", err)
	}

	sessionTimeout, err := getEnvInt("SYNTH_SESSION_TIMEOUT_MS", 45000)
	if err != nil {
		return nil, fmt.Errorf("invalid SYNTH_SESSION_TIMEOUT_MS: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Dispatch: DispatchConfig{
			VoiceConcurrency: voiceConc,
			MaxRetry:         maxRetry,
			RetryBaseMs:      retryBase,
			RetentionHours:   retention,
		},
		Synthesis: SynthesisConfig{
			APIKey:           getEnv("SYNTH_API_KEY", ""),
			RealtimeURL:      getEnv("SYNTH_REALTIME_URL", "wss://api.voice.example.com/v1/realtime"),
			SpeechURL:        getEnv("SYNTH_SPEECH_URL", "https://api.voice.example.com/v1/speech"),
			SampleRate:       sampleRate,
			SessionTimeoutMs: sessionTimeout,
		},
		Notify: NotifyConfig{
			CallbackURL: getEnv("NOTIFY_CALLBACK_URL", ""),
			Secret:      getEnv("NOTIFY_SECRET", ""),
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Synthesis.APIKey == "" {
		missing = append(missing, "SYNTH_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
