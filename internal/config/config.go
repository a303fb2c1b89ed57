package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bobarin/speakrelay/internal/models"
	"github.com/joho/godotenv"
)

// Supported TTS providers.
const (
	ProviderGoogle     = "google"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderElevenLabs = "elevenlabs"
)

type Config struct {
	// Server
	Port               string
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)
	MetricsEnabled     bool

	// Provider
	TTSProvider      string        // google, openai, gemini or elevenlabs
	SynthesisTimeout time.Duration // 0 = no timeout on top of the provider's own

	// Google Cloud Text-to-Speech (empty file = application default credentials)
	GoogleCredentialsFile string

	// OpenAI speech
	OpenAIKey      string
	OpenAITTSModel string
	OpenAITTSVoice string

	// Gemini native TTS
	GeminiKey      string
	GeminiTTSModel string
	GeminiTTSVoice string

	// ElevenLabs
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	ElevenLabsModel   string

	// Synthesis defaults applied to every request
	Synthesis models.SynthesisDefaults

	// Audio files
	AudioDir         string        // Directory for unique per-request files
	AudioFixedPath   string        // Legacy single shared file (empty = unique files)
	AudioDeleteAfter time.Duration // Delay before a played file is removed

	// Playback
	PlayerCommand string // Overrides the per-platform default player
	PlayerDevice  string // Output device passed to the Linux player
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	encoding, err := models.ParseAudioEncoding(getEnv("AUDIO_ENCODING", "mp3"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                  getEnv("PORT", "3000"),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		MetricsEnabled:        getEnvBool("METRICS_ENABLED", true),
		TTSProvider:           strings.ToLower(getEnv("TTS_PROVIDER", ProviderGoogle)),
		SynthesisTimeout:      getEnvDuration("SYNTHESIS_TIMEOUT", 0),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		OpenAIKey:             getEnv("OPENAI_API_KEY", ""),
		OpenAITTSModel:        getEnv("OPENAI_TTS_MODEL", "tts-1"),
		OpenAITTSVoice:        getEnv("OPENAI_TTS_VOICE", "alloy"),
		GeminiKey:             getEnv("GEMINI_API_KEY", ""),
		GeminiTTSModel:        getEnv("GEMINI_TTS_MODEL", "gemini-2.5-flash-preview-tts"),
		GeminiTTSVoice:        getEnv("GEMINI_TTS_VOICE", "Kore"),
		ElevenLabsKey:         getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:     getEnv("ELEVENLABS_VOICE_ID", ""),
		ElevenLabsModel:       getEnv("ELEVENLABS_MODEL", "eleven_flash_v2_5"),
		Synthesis: models.SynthesisDefaults{
			Voice: models.VoiceParams{
				LanguageCode: getEnv("DEFAULT_LANGUAGE_CODE", models.DefaultLanguageCode),
				Name:         getEnv("DEFAULT_VOICE_NAME", ""),
				SSMLGender:   strings.ToUpper(getEnv("DEFAULT_VOICE_GENDER", models.DefaultSSMLGender)),
			},
			Encoding:        encoding,
			SampleRateHertz: getEnvInt("AUDIO_SAMPLE_RATE", 0),
		},
		AudioDir:         getEnv("AUDIO_DIR", os.TempDir()),
		AudioFixedPath:   getEnv("AUDIO_FIXED_PATH", ""),
		AudioDeleteAfter: getEnvDuration("AUDIO_DELETE_AFTER", 60*time.Second),
		PlayerCommand:    getEnv("PLAYER_COMMAND", ""),
		PlayerDevice:     getEnv("PLAYER_DEVICE", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}

	switch c.TTSProvider {
	case ProviderGoogle:
		// Credentials come from GOOGLE_CREDENTIALS_FILE or the environment's ADC.
	case ProviderOpenAI:
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when TTS_PROVIDER=openai")
		}
	case ProviderGemini:
		if c.GeminiKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when TTS_PROVIDER=gemini")
		}
		// Gemini only returns raw PCM.
		if c.Synthesis.Encoding != models.EncodingLinear16 {
			return fmt.Errorf("TTS_PROVIDER=gemini requires AUDIO_ENCODING=linear16")
		}
	case ProviderElevenLabs:
		if c.ElevenLabsKey == "" {
			return fmt.Errorf("ELEVENLABS_API_KEY is required when TTS_PROVIDER=elevenlabs")
		}
		// pcm_<rate> output only exists at these rates.
		if c.Synthesis.Encoding == models.EncodingLinear16 {
			switch c.Synthesis.SampleRateHertz {
			case 0, 16000, 22050, 24000, 44100:
			default:
				return fmt.Errorf("TTS_PROVIDER=elevenlabs supports AUDIO_SAMPLE_RATE 16000, 22050, 24000 or 44100 with linear16, got %d", c.Synthesis.SampleRateHertz)
			}
		}
	default:
		return fmt.Errorf("unknown TTS_PROVIDER %q (allowed: google, openai, gemini, elevenlabs)", c.TTSProvider)
	}

	if c.Synthesis.SampleRateHertz < 0 {
		return fmt.Errorf("AUDIO_SAMPLE_RATE must be >= 0")
	}
	if c.AudioDeleteAfter <= 0 {
		return fmt.Errorf("AUDIO_DELETE_AFTER must be positive")
	}
	if c.SynthesisTimeout < 0 {
		return fmt.Errorf("SYNTHESIS_TIMEOUT must be >= 0")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
