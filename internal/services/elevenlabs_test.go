package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bobarin/speakrelay/internal/models"
)

func newTestElevenLabs(t *testing.T, handler http.HandlerFunc) *ElevenLabsTTSService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc := NewElevenLabsTTSService("test-key", "", "")
	svc.baseURL = srv.URL
	return svc
}

func TestElevenLabsSynthesize(t *testing.T) {
	var got elevenLabsRequest
	var gotPath, gotFormat, gotKey string

	svc := newTestElevenLabs(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFormat = r.URL.Query().Get("output_format")
		gotKey = r.Header.Get("xi-api-key")
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte("mp3-bytes"))
	})

	artifact, err := svc.Synthesize(context.Background(), textConfig("Hello world"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(artifact.Data) != "mp3-bytes" || artifact.RawPCM {
		t.Errorf("unexpected artifact %+v", artifact)
	}

	if gotPath != "/v1/text-to-speech/"+elevenLabsDefaultVoice {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotFormat != elevenLabsMP3Format || gotKey != "test-key" {
		t.Errorf("unexpected format/key %s/%s", gotFormat, gotKey)
	}
	if got.Text != "Hello world" || got.ModelID != elevenLabsDefaultModel || got.LanguageCode != "en" {
		t.Errorf("unexpected body %+v", got)
	}
	if got.Speed != nil {
		t.Errorf("expected no speed at the default rate, got %v", *got.Speed)
	}
}

func TestElevenLabsPCM(t *testing.T) {
	var gotFormat string
	svc := newTestElevenLabs(t, func(w http.ResponseWriter, r *http.Request) {
		gotFormat = r.URL.Query().Get("output_format")
		w.Write(make([]byte, 32))
	})

	cfg := textConfig("hi")
	cfg.Encoding = models.EncodingLinear16
	cfg.SampleRateHertz = 16000
	artifact, err := svc.Synthesize(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotFormat != "pcm_16000" {
		t.Errorf("expected pcm_16000, got %s", gotFormat)
	}
	if !artifact.RawPCM || artifact.SampleRate != 16000 {
		t.Errorf("unexpected artifact %+v", artifact)
	}
}

func TestElevenLabsErrors(t *testing.T) {
	svc := newTestElevenLabs(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid api key"}`, http.StatusUnauthorized)
	})
	if _, err := svc.Synthesize(context.Background(), textConfig("hi")); !errors.Is(err, models.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}

	svc = newTestElevenLabs(t, func(w http.ResponseWriter, r *http.Request) {})
	if _, err := svc.Synthesize(context.Background(), textConfig("hi")); !errors.Is(err, models.ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}

	cfg := textConfig("<speak>hi</speak>")
	cfg.Mode = models.InputModeSSML
	if _, err := svc.Synthesize(context.Background(), cfg); !errors.Is(err, models.ErrUnsupportedInput) {
		t.Errorf("expected ErrUnsupportedInput, got %v", err)
	}
}

func TestElevenLabsRejectsUnsafeVoiceID(t *testing.T) {
	calls := 0
	svc := newTestElevenLabs(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte("mp3-bytes"))
	})

	for _, name := range []string{
		"../../v1/user?output_format=mp3_44100_128#",
		"voice/other",
		"voice?output_format=mp3_44100_128",
		"voice#frag",
		"voice id",
	} {
		cfg := textConfig("hi")
		cfg.Encoding = models.EncodingLinear16
		cfg.Voice.Name = name

		if _, err := svc.Synthesize(context.Background(), cfg); !errors.Is(err, models.ErrInvalidInput) {
			t.Errorf("voice %q: expected ErrInvalidInput, got %v", name, err)
		}
	}
	if calls != 0 {
		t.Errorf("expected no upstream call for rejected voices, got %d", calls)
	}
}

func TestElevenLabsVoiceOverrideKeepsFormat(t *testing.T) {
	var gotPath, gotQuery string
	svc := newTestElevenLabs(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write(make([]byte, 32))
	})

	cfg := textConfig("hi")
	cfg.Encoding = models.EncodingLinear16
	cfg.Voice.Name = "21m00Tcm4TlvDq8ikWAM"
	artifact, err := svc.Synthesize(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/v1/text-to-speech/21m00Tcm4TlvDq8ikWAM" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotQuery != "output_format=pcm_24000" {
		t.Errorf("unexpected query %s", gotQuery)
	}
	if !artifact.RawPCM || artifact.SampleRate != 24000 {
		t.Errorf("unexpected artifact %+v", artifact)
	}
}
