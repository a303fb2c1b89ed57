package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/bobarin/speakrelay/internal/models"
	"github.com/bobarin/speakrelay/internal/services"
	"github.com/bobarin/speakrelay/internal/telemetry"
)

const rootMessage = "Speech relay is running. POST JSON to /speak or /say."

// AudioStore persists synthesized audio and returns where it was written.
type AudioStore interface {
	Write(artifact *models.AudioArtifact) (models.TempAudioFile, error)
}

// Dispatcher hands a written file off to background playback.
type Dispatcher interface {
	Dispatch(path string)
}

type Handler struct {
	tts      services.Synthesizer
	store    AudioStore
	playback Dispatcher
	defaults models.SynthesisDefaults
	timeout  time.Duration
	metrics  *telemetry.Metrics
}

func NewHandler(
	tts services.Synthesizer,
	store AudioStore,
	playback Dispatcher,
	defaults models.SynthesisDefaults,
	timeout time.Duration,
	metrics *telemetry.Metrics,
) *Handler {
	return &Handler{
		tts:      tts,
		store:    store,
		playback: playback,
		defaults: defaults,
		timeout:  timeout,
		metrics:  metrics,
	}
}

// Speak handles POST /speak and POST /say
func (h *Handler) Speak(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.SpeakRequest
	if err := decodeBody(r.Body, &req); err != nil {
		h.metrics.RecordRequest(ctx, "unknown", "invalid")
		respondErrorDetail(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	if err := req.Validate(); err != nil {
		h.metrics.RecordRequest(ctx, "unknown", "invalid")
		respondError(w, http.StatusBadRequest, `Provide either "text" or "ssml" in the JSON body.`)
		return
	}

	mode := req.Mode()
	cfg := req.Resolve(h.defaults)
	log.Printf("[API] Speak request received (mode=%s, len=%d)", mode, len(cfg.Input))

	synthCtx := ctx
	if h.timeout > 0 {
		var cancel context.CancelFunc
		synthCtx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	artifact, err := h.tts.Synthesize(synthCtx, cfg)
	if err == nil && (artifact == nil || len(artifact.Data) == 0) {
		err = models.ErrEmptyResponse
	}
	if err != nil {
		h.metrics.RecordSynthesis(ctx, h.tts.Name(), "error", time.Since(start))
		log.Printf("[API] Synthesis failed (provider=%s): %v", h.tts.Name(), err)

		status := http.StatusInternalServerError
		if errors.Is(err, models.ErrUnsupportedInput) || errors.Is(err, models.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		h.metrics.RecordRequest(ctx, string(mode), "synthesis_failed")
		respondErrorDetail(w, status, "Speech synthesis failed", err)
		return
	}
	h.metrics.RecordSynthesis(ctx, h.tts.Name(), "ok", time.Since(start))

	file, err := h.store.Write(artifact)
	if err != nil {
		log.Printf("[API] Failed to write audio file: %v", err)
		h.metrics.RecordRequest(ctx, string(mode), "write_failed")
		respondErrorDetail(w, http.StatusInternalServerError, "Failed to write audio file", err)
		return
	}
	log.Printf("[API] Audio saved to %s (%d bytes)", file.Path, len(artifact.Data))

	h.playback.Dispatch(file.Path)

	h.metrics.RecordRequest(ctx, string(mode), "ok")
	respondJSON(w, http.StatusOK, models.SpeakResponse{
		OK:      true,
		Status:  "ok",
		Mode:    mode,
		Message: "Speech synthesized; playback started on the host.",
	})
}

// Root handles GET /
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, rootMessage)
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.HealthResponse{Status: "ok", Provider: h.tts.Name()})
}

// decodeBody reads exactly one JSON value. An empty body leaves v untouched.
func decodeBody(body io.Reader, v interface{}) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}

func respondErrorDetail(w http.ResponseWriter, status int, message string, err error) {
	respondJSON(w, status, models.ErrorResponse{Error: message, Detail: err.Error()})
}
