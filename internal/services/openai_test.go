package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/bobarin/speakrelay/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

type fakeSpeechCreator struct {
	requests []openai.CreateSpeechRequest
	body     string
	err      error
}

func (f *fakeSpeechCreator) CreateSpeech(ctx context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openai.RawResponse{}, f.err
	}
	return openai.RawResponse{ReadCloser: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestOpenAISynthesize(t *testing.T) {
	client := &fakeSpeechCreator{body: "mp3-bytes"}
	svc := newOpenAITTSServiceWithClient(client, "", "")

	artifact, err := svc.Synthesize(context.Background(), textConfig("Hello world"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(artifact.Data) != "mp3-bytes" {
		t.Errorf("unexpected audio %q", artifact.Data)
	}

	if len(client.requests) != 1 {
		t.Fatalf("expected one call, got %d", len(client.requests))
	}
	req := client.requests[0]
	if req.Input != "Hello world" || req.Model != openai.TTSModel1 || req.Voice != openai.VoiceAlloy {
		t.Errorf("unexpected request %+v", req)
	}
	if req.ResponseFormat != openai.SpeechResponseFormatMp3 || req.Speed != 1.0 {
		t.Errorf("unexpected format/speed %s %v", req.ResponseFormat, req.Speed)
	}
}

func TestOpenAIWavAndVoiceOverride(t *testing.T) {
	client := &fakeSpeechCreator{body: "RIFF"}
	svc := newOpenAITTSServiceWithClient(client, "tts-1-hd", "alloy")

	cfg := textConfig("hi")
	cfg.Encoding = models.EncodingLinear16
	cfg.Voice.Name = "nova"
	if _, err := svc.Synthesize(context.Background(), cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := client.requests[0]
	if req.ResponseFormat != openai.SpeechResponseFormatWav {
		t.Errorf("expected wav format, got %s", req.ResponseFormat)
	}
	if req.Voice != "nova" || req.Model != "tts-1-hd" {
		t.Errorf("unexpected voice/model %s/%s", req.Voice, req.Model)
	}
}

func TestOpenAIRejectsSSML(t *testing.T) {
	client := &fakeSpeechCreator{body: "x"}
	svc := newOpenAITTSServiceWithClient(client, "", "")

	cfg := textConfig("<speak>hi</speak>")
	cfg.Mode = models.InputModeSSML
	if _, err := svc.Synthesize(context.Background(), cfg); !errors.Is(err, models.ErrUnsupportedInput) {
		t.Errorf("expected ErrUnsupportedInput, got %v", err)
	}
	if len(client.requests) != 0 {
		t.Errorf("expected no provider call for ssml")
	}
}

func TestOpenAIErrors(t *testing.T) {
	svc := newOpenAITTSServiceWithClient(&fakeSpeechCreator{err: errors.New("401 unauthorized")}, "", "")
	if _, err := svc.Synthesize(context.Background(), textConfig("hi")); !errors.Is(err, models.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}

	svc = newOpenAITTSServiceWithClient(&fakeSpeechCreator{}, "", "")
	if _, err := svc.Synthesize(context.Background(), textConfig("hi")); !errors.Is(err, models.ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}
