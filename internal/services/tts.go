package services

import (
	"context"
	"fmt"

	"github.com/bobarin/speakrelay/internal/models"
)

// ---------------------------------------------------------------------------
// Synthesizer: common interface for text-to-speech providers
// Google, OpenAI, Gemini and ElevenLabs implement this interface so the speak handler
// can use whichever is configured without knowing the underlying provider.
// ---------------------------------------------------------------------------

// Synthesizer is the interface that any TTS provider must implement.
type Synthesizer interface {
	// Name identifies the provider in logs, metrics and /health.
	Name() string

	// Synthesize performs exactly one provider call for cfg. Transport or auth
	// failures wrap models.ErrProviderUnavailable; a successful call without
	// audio wraps models.ErrEmptyResponse.
	Synthesize(ctx context.Context, cfg models.SynthesisConfig) (*models.AudioArtifact, error)

	// Close releases the provider client at process exit.
	Close() error
}

func providerError(provider string, err error) error {
	return fmt.Errorf("%w: %s: %v", models.ErrProviderUnavailable, provider, err)
}

func emptyResponse(provider string) error {
	return fmt.Errorf("%w: %s", models.ErrEmptyResponse, provider)
}

func unsupportedSSML(provider string) error {
	return fmt.Errorf("%w: %s does not accept SSML, send \"text\" instead", models.ErrUnsupportedInput, provider)
}
