package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/bobarin/speakrelay/internal/models"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
)

// ---------------------------------------------------------------------------
// Google Cloud Text-to-Speech Service
// One SynthesizeSpeech call per request. The gRPC client is created once at
// startup and held for the life of the process.
// ---------------------------------------------------------------------------

// speechClient is the subset of *texttospeech.Client used here.
type speechClient interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
	Close() error
}

// GoogleTTSService handles text-to-speech via Google Cloud.
type GoogleTTSService struct {
	client speechClient
}

// Ensure GoogleTTSService implements Synthesizer at compile time.
var _ Synthesizer = (*GoogleTTSService)(nil)

// NewGoogleTTSService dials Google Cloud TTS. With an empty credentialsFile
// the client falls back to application default credentials
// (GOOGLE_APPLICATION_CREDENTIALS).
func NewGoogleTTSService(ctx context.Context, credentialsFile string) (*GoogleTTSService, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google TTS client: %w", err)
	}
	return &GoogleTTSService{client: client}, nil
}

func newGoogleTTSServiceWithClient(client speechClient) *GoogleTTSService {
	return &GoogleTTSService{client: client}
}

func (s *GoogleTTSService) Name() string { return "google" }

// Synthesize converts text or SSML to audio using Google Cloud TTS.
func (s *GoogleTTSService) Synthesize(ctx context.Context, cfg models.SynthesisConfig) (*models.AudioArtifact, error) {
	req := buildGoogleRequest(cfg)

	log.Printf("[GoogleTTS] Synthesizing (mode=%s, len=%d, lang=%s, voice=%q, gender=%s, encoding=%s, rate=%.2f)",
		cfg.Mode, len(cfg.Input), cfg.Voice.LanguageCode, cfg.Voice.Name, cfg.Voice.SSMLGender, cfg.Encoding, cfg.SpeakingRate)

	resp, err := s.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, providerError("google", err)
	}
	if len(resp.GetAudioContent()) == 0 {
		return nil, emptyResponse("google")
	}

	log.Printf("[GoogleTTS] Speech generated (%d bytes)", len(resp.GetAudioContent()))

	return &models.AudioArtifact{
		Data:       resp.GetAudioContent(),
		Encoding:   cfg.Encoding,
		SampleRate: cfg.SampleRateHertz,
		Channels:   1,
	}, nil
}

func (s *GoogleTTSService) Close() error {
	return s.client.Close()
}

func buildGoogleRequest(cfg models.SynthesisConfig) *texttospeechpb.SynthesizeSpeechRequest {
	input := &texttospeechpb.SynthesisInput{}
	if cfg.Mode == models.InputModeSSML {
		input.InputSource = &texttospeechpb.SynthesisInput_Ssml{Ssml: cfg.Input}
	} else {
		input.InputSource = &texttospeechpb.SynthesisInput_Text{Text: cfg.Input}
	}

	// LINEAR16 responses already carry a WAV header.
	encoding := texttospeechpb.AudioEncoding_MP3
	if cfg.Encoding == models.EncodingLinear16 {
		encoding = texttospeechpb.AudioEncoding_LINEAR16
	}

	return &texttospeechpb.SynthesizeSpeechRequest{
		Input: input,
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: cfg.Voice.LanguageCode,
			Name:         cfg.Voice.Name,
			SsmlGender:   googleGender(cfg.Voice.SSMLGender),
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   encoding,
			SampleRateHertz: int32(cfg.SampleRateHertz),
			SpeakingRate:    cfg.SpeakingRate,
		},
	}
}

// googleGender maps "FEMALE"/"male"/... to the enum; unknown values are unspecified.
func googleGender(gender string) texttospeechpb.SsmlVoiceGender {
	if v, ok := texttospeechpb.SsmlVoiceGender_value[strings.ToUpper(strings.TrimSpace(gender))]; ok {
		return texttospeechpb.SsmlVoiceGender(v)
	}
	return texttospeechpb.SsmlVoiceGender_SSML_VOICE_GENDER_UNSPECIFIED
}
