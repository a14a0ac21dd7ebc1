package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress    string
	ICEServersJSON string
	Production     bool
	LogLevel       string
	LogFile        string

	// Provider selection.
	STTProvider string // deepgram | scripted
	LLMProvider string // cerebras | gemini | scripted
	TTSProvider string // deepgram | elevenlabs | none
	StoreDriver string // memory | firestore

	DeepgramKey       string
	DeepgramSTTModel  string
	DeepgramTTSModel  string
	CerebrasKey       string
	CerebrasModelID   string
	GeminiKey         string
	GeminiModel       string
	ElevenLabsKey     string
	ElevenLabsVoiceID string

	GCPProject string

	SupabaseURL            string
	SupabaseServiceRoleKey string
	SupabaseBucket         string

	Language            string
	ConfidenceThreshold float64
	AcquireTimeout      time.Duration
	GenerateTimeout     time.Duration
	TranscribeTimeout   time.Duration
	WithCamera          bool

	// Warnings lists missing or invalid settings that were replaced by defaults
	// or disable a feature.
	Warnings []string
}

// ArchiveEnabled reports whether recordings should be uploaded.
func (c Config) ArchiveEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceRoleKey != ""
}

// Load reads environment variables (and .env when present) and returns
// Config with sane defaults.
func Load() Config {
	var cfg Config
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		cfg.warn("error loading .env file: " + err.Error())
	}

	cfg.HTTPAddress = getEnv("HTTP_ADDRESS", ":8080")
	cfg.ICEServersJSON = getEnv("ICE_SERVERS_JSON", `[{"urls":["stun:stun.l.google.com:19302"]}]`)
	cfg.Production = strings.EqualFold(os.Getenv("APP_ENV"), "production")
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	cfg.LogFile = os.Getenv("LOG_FILE")

	cfg.STTProvider = strings.ToLower(getEnv("STT_PROVIDER", "deepgram"))
	cfg.LLMProvider = strings.ToLower(getEnv("LLM_PROVIDER", "cerebras"))
	cfg.TTSProvider = strings.ToLower(getEnv("TTS_PROVIDER", "deepgram"))
	cfg.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", "memory"))

	cfg.DeepgramKey = os.Getenv("DEEPGRAM_API_KEY")
	cfg.DeepgramSTTModel = getEnv("DEEPGRAM_STT_MODEL", "nova-2")
	cfg.DeepgramTTSModel = getEnv("DEEPGRAM_TTS_MODEL", "aura-2-thalia-en")
	cfg.CerebrasKey = os.Getenv("CEREBRAS_API_KEY")
	cfg.CerebrasModelID = getEnv("CEREBRAS_MODEL_ID", "gpt-oss-120b")
	cfg.GeminiKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = getEnv("GEMINI_MODEL", "gemini-2.5-flash")
	cfg.ElevenLabsKey = os.Getenv("ELEVENLABS_API_KEY")
	cfg.ElevenLabsVoiceID = os.Getenv("ELEVENLABS_VOICE_ID")
	cfg.GCPProject = os.Getenv("GCP_PROJECT")

	cfg.SupabaseURL = os.Getenv("SUPABASE_URL")
	cfg.SupabaseServiceRoleKey = os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
	cfg.SupabaseBucket = getEnv("SUPABASE_BUCKET", "interview-recordings")

	cfg.Language = getEnv("STT_LANGUAGE", "en-US")
	cfg.ConfidenceThreshold = cfg.getFloat("CONFIDENCE_THRESHOLD", 0.7)
	cfg.AcquireTimeout = cfg.getDuration("DEVICE_ACQUIRE_TIMEOUT", 10*time.Second)
	cfg.GenerateTimeout = cfg.getDuration("GENERATE_TIMEOUT", 30*time.Second)
	cfg.TranscribeTimeout = cfg.getDuration("TRANSCRIBE_TIMEOUT", 30*time.Second)
	cfg.WithCamera = os.Getenv("WITH_CAMERA") == "true"

	if cfg.STTProvider == "deepgram" && cfg.DeepgramKey == "" {
		cfg.warn("DEEPGRAM_API_KEY not set - transcription will not work")
	}
	if cfg.TTSProvider == "deepgram" && cfg.DeepgramKey == "" {
		cfg.warn("DEEPGRAM_API_KEY not set - TTS will not work")
	}
	switch cfg.LLMProvider {
	case "cerebras":
		if cfg.CerebrasKey == "" {
			cfg.warn("CEREBRAS_API_KEY not set - LLM will not work")
		}
	case "gemini":
		if cfg.GeminiKey == "" {
			cfg.warn("GEMINI_API_KEY not set - LLM will not work")
		}
	}
	if cfg.TTSProvider == "elevenlabs" && (cfg.ElevenLabsKey == "" || cfg.ElevenLabsVoiceID == "") {
		cfg.warn("ELEVENLABS_API_KEY or ELEVENLABS_VOICE_ID not set - TTS will not work")
	}
	if cfg.StoreDriver == "firestore" && cfg.GCPProject == "" {
		cfg.warn("GCP_PROJECT not set - falling back to the in-memory store")
		cfg.StoreDriver = "memory"
	}
	return cfg
}

func (c *Config) warn(msg string) { c.Warnings = append(c.Warnings, msg) }

func (c *Config) getFloat(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		c.warn(key + " must be a number between 0 and 1, using default")
		return def
	}
	return v
}

func (c *Config) getDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		c.warn(key + " must be a positive duration, using default")
		return def
	}
	return v
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
