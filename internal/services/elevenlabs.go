package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/bobarin/speakrelay/internal/models"
)

// ---------------------------------------------------------------------------
// ElevenLabs Text-to-Speech Service
// Uses the ElevenLabs REST API. MP3 is requested as mp3_44100_128; LINEAR16 is
// requested as headerless pcm_<rate> and wrapped in WAV by the store.
// ---------------------------------------------------------------------------

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io"
	elevenLabsDefaultModel = "eleven_flash_v2_5"
	elevenLabsDefaultVoice = "pNInz6obpgDQGcFmaJgB"
	elevenLabsMP3Format    = "mp3_44100_128"
	elevenLabsPCMRate      = 24000
)

// elevenLabsPCMRates are the rates the API accepts for pcm_<rate> output.
var elevenLabsPCMRates = map[int]bool{16000: true, 22050: true, 24000: true, 44100: true}

// Voice IDs go into the request path and must be alphanumeric.
var elevenLabsVoiceID = regexp.MustCompile(`^[A-Za-z0-9]{1,64}$`)

// ElevenLabsTTSService handles text-to-speech via ElevenLabs.
type ElevenLabsTTSService struct {
	apiKey  string
	voiceID string
	modelID string
	baseURL string
	client  *http.Client
}

// Ensure ElevenLabsTTSService implements Synthesizer at compile time.
var _ Synthesizer = (*ElevenLabsTTSService)(nil)

// NewElevenLabsTTSService creates an ElevenLabs service. Empty voiceID or
// modelID fall back to the defaults.
func NewElevenLabsTTSService(apiKey, voiceID, modelID string) *ElevenLabsTTSService {
	if voiceID == "" {
		voiceID = elevenLabsDefaultVoice
	}
	if modelID == "" {
		modelID = elevenLabsDefaultModel
	}
	return &ElevenLabsTTSService{
		apiKey:  apiKey,
		voiceID: voiceID,
		modelID: modelID,
		baseURL: elevenLabsBaseURL,
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type elevenLabsRequest struct {
	Text         string   `json:"text"`
	ModelID      string   `json:"model_id"`
	LanguageCode string   `json:"language_code,omitempty"`
	Speed        *float64 `json:"speed,omitempty"`
}

func (s *ElevenLabsTTSService) Name() string { return "elevenlabs" }

// Synthesize converts text to speech using ElevenLabs.
// cfg.Voice.Name, when set, is used as the voice ID.
func (s *ElevenLabsTTSService) Synthesize(ctx context.Context, cfg models.SynthesisConfig) (*models.AudioArtifact, error) {
	if cfg.Mode == models.InputModeSSML {
		return nil, unsupportedSSML("elevenlabs")
	}

	voiceID := s.voiceID
	if cfg.Voice.Name != "" {
		voiceID = cfg.Voice.Name
	}
	if !elevenLabsVoiceID.MatchString(voiceID) {
		return nil, fmt.Errorf("%w: elevenlabs voice ID %q must be alphanumeric", models.ErrInvalidInput, voiceID)
	}

	format, sampleRate := elevenLabsFormat(cfg)

	reqBody := elevenLabsRequest{
		Text:         cfg.Input,
		ModelID:      s.modelID,
		LanguageCode: languageOnly(cfg.Voice.LanguageCode),
	}
	if cfg.SpeakingRate != 0 && cfg.SpeakingRate != 1.0 {
		speed := cfg.SpeakingRate
		reqBody.Speed = &speed
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ElevenLabs request: %w", err)
	}

	// POST /v1/text-to-speech/{voice_id}?output_format=...
	query := url.Values{"output_format": {format}}
	endpoint := s.baseURL + "/v1/text-to-speech/" + url.PathEscape(voiceID) + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create ElevenLabs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)

	log.Printf("[ElevenLabs] Synthesizing (voiceID=%s, model=%s, format=%s, len=%d)",
		voiceID, s.modelID, format, len(cfg.Input))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, providerError("elevenlabs", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, providerError("elevenlabs", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providerError("elevenlabs", fmt.Errorf("read audio: %w", err))
	}
	if len(audioData) == 0 {
		return nil, emptyResponse("elevenlabs")
	}

	log.Printf("[ElevenLabs] Speech generated (%d bytes)", len(audioData))

	return &models.AudioArtifact{
		Data:       audioData,
		Encoding:   cfg.Encoding,
		SampleRate: sampleRate,
		Channels:   1,
		RawPCM:     cfg.Encoding == models.EncodingLinear16,
	}, nil
}

func (s *ElevenLabsTTSService) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func elevenLabsFormat(cfg models.SynthesisConfig) (string, int) {
	if cfg.Encoding != models.EncodingLinear16 {
		return elevenLabsMP3Format, 44100
	}
	rate := elevenLabsPCMRate
	if elevenLabsPCMRates[cfg.SampleRateHertz] {
		rate = cfg.SampleRateHertz
	}
	return fmt.Sprintf("pcm_%d", rate), rate
}

// languageOnly turns "en-US" into "en".
func languageOnly(code string) string {
	lang, _, _ := strings.Cut(code, "-")
	return strings.ToLower(lang)
}
