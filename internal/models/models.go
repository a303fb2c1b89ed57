package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Enums
type InputMode string

const (
	InputModeText InputMode = "text"
	InputModeSSML InputMode = "ssml"
)

type AudioEncoding string

const (
	EncodingMP3      AudioEncoding = "mp3"      // compressed, plays everywhere
	EncodingLinear16 AudioEncoding = "linear16" // 16-bit PCM in a WAV container
)

// ParseAudioEncoding accepts the config spellings of an encoding.
func ParseAudioEncoding(s string) (AudioEncoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mp3":
		return EncodingMP3, nil
	case "linear16", "wav", "pcm":
		return EncodingLinear16, nil
	}
	return "", fmt.Errorf("unknown audio encoding %q (allowed: mp3, linear16)", s)
}

// Extension returns the file extension used for temp audio files.
func (e AudioEncoding) Extension() string {
	if e == EncodingLinear16 {
		return ".wav"
	}
	return ".mp3"
}

// Errors
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnsupportedInput    = errors.New("input not supported by provider")
	ErrProviderUnavailable = errors.New("speech provider unavailable")
	ErrEmptyResponse       = errors.New("speech provider returned no audio")
	ErrWriteFailed         = errors.New("audio file write failed")
	ErrPlaybackFailed      = errors.New("audio playback failed")
)

// Defaults
const (
	DefaultLanguageCode = "en-US"
	DefaultSSMLGender   = "NEUTRAL"
	DefaultSpeakingRate = 1.0
)

// Models

// VoiceParams selects the provider voice. Field names follow the provider's
// own request shape so callers can pass a voice object through unchanged.
type VoiceParams struct {
	LanguageCode string `json:"languageCode,omitempty"`
	Name         string `json:"name,omitempty"`
	SSMLGender   string `json:"ssmlGender,omitempty"`
}

// MergeOver fills every empty field of v from def.
func (v *VoiceParams) MergeOver(def VoiceParams) VoiceParams {
	if v == nil {
		return def
	}
	merged := *v
	if merged.LanguageCode == "" {
		merged.LanguageCode = def.LanguageCode
	}
	if merged.Name == "" {
		merged.Name = def.Name
	}
	if merged.SSMLGender == "" {
		merged.SSMLGender = def.SSMLGender
	}
	return merged
}

// SynthesisDefaults is the deployment-time half of a SynthesisConfig.
type SynthesisDefaults struct {
	Voice           VoiceParams
	Encoding        AudioEncoding
	SampleRateHertz int // 0 = provider default
}

// SynthesisConfig is the fully resolved provider request for one speak call.
type SynthesisConfig struct {
	Mode            InputMode
	Input           string
	Voice           VoiceParams
	Encoding        AudioEncoding
	SampleRateHertz int
	SpeakingRate    float64
}

// AudioArtifact is the audio returned by a provider.
type AudioArtifact struct {
	Data       []byte
	Encoding   AudioEncoding
	SampleRate int
	Channels   int
	RawPCM     bool // headerless 16-bit little-endian PCM, needs a WAV container
}

// TempAudioFile is a written audio file awaiting playback and deletion.
type TempAudioFile struct {
	Path      string
	CreatedAt time.Time
}

// API Request/Response types

type SpeakRequest struct {
	Text         string       `json:"text,omitempty"`
	SSML         string       `json:"ssml,omitempty"`
	Voice        *VoiceParams `json:"voice,omitempty"`
	SpeakingRate *float64     `json:"speakingRate,omitempty"`
}

// Validate rejects requests that carry neither text nor ssml.
func (r *SpeakRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" && strings.TrimSpace(r.SSML) == "" {
		return fmt.Errorf("%w: neither text nor ssml provided", ErrInvalidInput)
	}
	return nil
}

// Mode reports which input the provider will receive. SSML wins when both are set.
func (r *SpeakRequest) Mode() InputMode {
	if strings.TrimSpace(r.SSML) != "" {
		return InputModeSSML
	}
	return InputModeText
}

// Resolve resolves the request against the deployment defaults.
func (r *SpeakRequest) Resolve(def SynthesisDefaults) SynthesisConfig {
	cfg := SynthesisConfig{
		Mode:            r.Mode(),
		Input:           r.Text,
		Voice:           r.Voice.MergeOver(def.Voice),
		Encoding:        def.Encoding,
		SampleRateHertz: def.SampleRateHertz,
		SpeakingRate:    DefaultSpeakingRate,
	}
	if cfg.Mode == InputModeSSML {
		cfg.Input = r.SSML
	}
	if r.SpeakingRate != nil && *r.SpeakingRate != 0 {
		cfg.SpeakingRate = *r.SpeakingRate
	}
	return cfg
}

type SpeakResponse struct {
	OK      bool      `json:"ok"`
	Status  string    `json:"status"`
	Mode    InputMode `json:"mode"`
	Message string    `json:"message"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`
}
