package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Voice backends selectable through VOICE_BACKEND.
const (
	BackendHume   = "hume"
	BackendGemini = "gemini"
)

const defaultSystemPrompt = "You are a concise, friendly voice assistant. Keep answers short and conversational."

// Config holds all server configuration
type Config struct {
	Port            int
	RedisURL        string
	RedisPassword   string
	MaxSessions     int
	SessionTimeout  time.Duration
	AllowedOrigins  []string
	KeepAlivePeriod time.Duration

	VoiceBackend string // "hume" or "gemini"
	HumeAPIKey   string // fallback when the host sends none
	HumeConfigID string
	EVIURL       string
	GeminiAPIKey string
	GeminiModel  string
	GeminiTools  string // path to a JSON file of tool declarations
	SystemPrompt string

	ClearAudioEcho string // user_message content swallowed after clearAudioQueue
	MailboxSize    int    // bridge mailbox size per session
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	config := &Config{
		Port:            8080,
		RedisURL:        "localhost:6379",
		RedisPassword:   "",
		MaxSessions:     100,
		SessionTimeout:  30 * time.Minute,
		AllowedOrigins:  []string{"*"},
		KeepAlivePeriod: 30 * time.Second,
		VoiceBackend:    BackendHume,
		EVIURL:          "wss://api.hume.ai/v0/evi/chat",
		SystemPrompt:    defaultSystemPrompt,
		ClearAudioEcho:  ".",
		MailboxSize:     256,
	}

	// Optional: PORT
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		config.Port = p
	}

	// Optional: REDIS_URL
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.RedisURL = redisURL
	}

	// Optional: REDIS_PASSWORD
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.RedisPassword = redisPassword
	}

	// Optional: MAX_SESSIONS
	if maxSessions := os.Getenv("MAX_SESSIONS"); maxSessions != "" {
		m, err := strconv.Atoi(maxSessions)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_SESSIONS: %w", err)
		}
		config.MaxSessions = m
	}

	// Optional: SESSION_TIMEOUT (in minutes)
	if timeout := os.Getenv("SESSION_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TIMEOUT: %w", err)
		}
		config.SessionTimeout = time.Duration(t) * time.Minute
	}

	// Optional: ALLOWED_ORIGINS (comma-separated)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	// Optional: KEEPALIVE_PERIOD (in seconds)
	if keepalive := os.Getenv("KEEPALIVE_PERIOD"); keepalive != "" {
		k, err := strconv.Atoi(keepalive)
		if err != nil {
			return nil, fmt.Errorf("invalid KEEPALIVE_PERIOD: %w", err)
		}
		config.KeepAlivePeriod = time.Duration(k) * time.Second
	}

	// Optional: VOICE_BACKEND ("hume" or "gemini")
	if backend := os.Getenv("VOICE_BACKEND"); backend != "" {
		switch backend {
		case BackendHume, BackendGemini:
			config.VoiceBackend = backend
		default:
			return nil, fmt.Errorf("invalid VOICE_BACKEND: must be 'hume' or 'gemini'")
		}
	}

	config.HumeAPIKey = os.Getenv("HUME_API_KEY")
	config.HumeConfigID = os.Getenv("HUME_CONFIG_ID")

	// Optional: EVI_URL
	if eviURL := os.Getenv("EVI_URL"); eviURL != "" {
		config.EVIURL = eviURL
	}

	// Required for the gemini backend: GEMINI_API_KEY
	config.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if config.VoiceBackend == BackendGemini && config.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	config.GeminiModel = os.Getenv("GEMINI_MODEL")
	config.GeminiTools = os.Getenv("GEMINI_TOOLS_FILE")

	// Optional: SYSTEM_PROMPT
	if prompt := os.Getenv("SYSTEM_PROMPT"); prompt != "" {
		config.SystemPrompt = prompt
	}

	// Optional: CLEAR_AUDIO_ECHO (set but empty means only empty echoes are swallowed)
	if echo, ok := os.LookupEnv("CLEAR_AUDIO_ECHO"); ok {
		config.ClearAudioEcho = echo
	}

	// Optional: MAILBOX_SIZE
	if mailbox := os.Getenv("MAILBOX_SIZE"); mailbox != "" {
		m, err := strconv.Atoi(mailbox)
		if err != nil {
			return nil, fmt.Errorf("invalid MAILBOX_SIZE: %w", err)
		}
		if m <= 0 {
			return nil, fmt.Errorf("invalid MAILBOX_SIZE: must be positive")
		}
		config.MailboxSize = m
	}

	return config, nil
}
