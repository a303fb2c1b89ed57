package services

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/bobarin/speakrelay/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

// speechCreator is the subset of *openai.Client used here.
type speechCreator interface {
	CreateSpeech(ctx context.Context, request openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// OpenAITTSService handles text-to-speech via the OpenAI speech endpoint.
// It has no SSML support.
type OpenAITTSService struct {
	client speechCreator
	model  string
	voice  string
}

var _ Synthesizer = (*OpenAITTSService)(nil)

func NewOpenAITTSService(apiKey, model, voice string) *OpenAITTSService {
	return newOpenAITTSServiceWithClient(openai.NewClient(apiKey), model, voice)
}

func newOpenAITTSServiceWithClient(client speechCreator, model, voice string) *OpenAITTSService {
	if model == "" {
		model = string(openai.TTSModel1)
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &OpenAITTSService{client: client, model: model, voice: voice}
}

func (s *OpenAITTSService) Name() string { return "openai" }

func (s *OpenAITTSService) Synthesize(ctx context.Context, cfg models.SynthesisConfig) (*models.AudioArtifact, error) {
	if cfg.Mode == models.InputModeSSML {
		return nil, unsupportedSSML("openai")
	}

	voice := s.voice
	if cfg.Voice.Name != "" {
		voice = cfg.Voice.Name
	}

	format := openai.SpeechResponseFormatMp3
	if cfg.Encoding == models.EncodingLinear16 {
		format = openai.SpeechResponseFormatWav
	}

	log.Printf("[OpenAI TTS] Synthesizing (model=%s, voice=%s, format=%s, len=%d, speed=%.2f)",
		s.model, voice, format, len(cfg.Input), cfg.SpeakingRate)

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          cfg.Input,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: format,
		Speed:          cfg.SpeakingRate,
	})
	if err != nil {
		return nil, providerError("openai", err)
	}
	defer resp.Close()

	// The response body IS the audio file
	audioData, err := io.ReadAll(resp)
	if err != nil {
		return nil, providerError("openai", fmt.Errorf("read audio: %w", err))
	}
	if len(audioData) == 0 {
		return nil, emptyResponse("openai")
	}

	log.Printf("[OpenAI TTS] Speech generated (%d bytes)", len(audioData))

	return &models.AudioArtifact{
		Data:     audioData,
		Encoding: cfg.Encoding,
		Channels: 1,
	}, nil
}

func (s *OpenAITTSService) Close() error { return nil }
