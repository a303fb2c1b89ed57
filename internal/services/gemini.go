package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/bobarin/speakrelay/internal/models"
	"google.golang.org/genai"
)

const (
	geminiDefaultModel      = "gemini-2.5-flash-preview-tts"
	geminiDefaultVoice      = "Kore"
	geminiDefaultSampleRate = 24000 // Gemini TTS emits 24 kHz mono L16
)

// contentGenerator is the subset of genai's Models service used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiTTSService uses Gemini's native audio output. The model returns
// headerless PCM, so artifacts are flagged RawPCM and wrapped on write.
type GeminiTTSService struct {
	models contentGenerator
	model  string
	voice  string
}

var _ Synthesizer = (*GeminiTTSService)(nil)

func NewGeminiTTSService(ctx context.Context, apiKey, model, voice string) (*GeminiTTSService, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return newGeminiTTSServiceWithClient(client.Models, model, voice), nil
}

func newGeminiTTSServiceWithClient(gen contentGenerator, model, voice string) *GeminiTTSService {
	if model == "" {
		model = geminiDefaultModel
	}
	if voice == "" {
		voice = geminiDefaultVoice
	}
	return &GeminiTTSService{models: gen, model: model, voice: voice}
}

func (s *GeminiTTSService) Name() string { return "gemini" }

func (s *GeminiTTSService) Synthesize(ctx context.Context, cfg models.SynthesisConfig) (*models.AudioArtifact, error) {
	if cfg.Mode == models.InputModeSSML {
		return nil, unsupportedSSML("gemini")
	}
	// The prebuilt voices have no rate control.
	if cfg.SpeakingRate != 0 && cfg.SpeakingRate != models.DefaultSpeakingRate {
		return nil, fmt.Errorf("%w: gemini does not support speakingRate %.2f", models.ErrUnsupportedInput, cfg.SpeakingRate)
	}

	voice := s.voice
	if cfg.Voice.Name != "" {
		voice = cfg.Voice.Name
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			LanguageCode: cfg.Voice.LanguageCode,
			VoiceConfig:  &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}

	log.Printf("[Gemini TTS] Synthesizing (model=%s, voice=%s, lang=%s, len=%d)", s.model, voice, cfg.Voice.LanguageCode, len(cfg.Input))

	resp, err := s.models.GenerateContent(ctx, s.model, genai.Text(cfg.Input), config)
	if err != nil {
		return nil, providerError("gemini", err)
	}

	blob := firstAudioBlob(resp)
	if blob == nil || len(blob.Data) == 0 {
		return nil, emptyResponse("gemini")
	}

	sampleRate := pcmRate(blob.MIMEType, geminiDefaultSampleRate)
	log.Printf("[Gemini TTS] Speech generated (%d bytes, mime=%s)", len(blob.Data), blob.MIMEType)

	return &models.AudioArtifact{
		Data:       blob.Data,
		Encoding:   models.EncodingLinear16,
		SampleRate: sampleRate,
		Channels:   1,
		RawPCM:     true,
	}, nil
}

func (s *GeminiTTSService) Close() error { return nil }

func firstAudioBlob(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData
			}
		}
	}
	return nil
}

// pcmRate reads the rate parameter of a MIME type like "audio/L16;codec=pcm;rate=24000".
func pcmRate(mimeType string, fallback int) int {
	for _, param := range strings.Split(mimeType, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if ok && strings.EqualFold(key, "rate") {
			if rate, err := strconv.Atoi(value); err == nil && rate > 0 {
				return rate
			}
		}
	}
	return fallback
}
