package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/bobarin/speakrelay/internal/models"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// Storage writes synthesized audio to local temp files and removes them
// once playback has had time to finish.
//
// By default every write gets its own file in dir. When fixedPath is set the
// legacy behaviour is used instead: one shared file, overwritten on each write
// and never scheduled for deletion. Concurrent requests race on that file.
type Storage struct {
	dir       string
	fixedPath string

	// Swappable in tests.
	now       func() time.Time
	afterFunc func(d time.Duration, f func())
	onDeleted func(path string, err error)
}

func New(dir, fixedPath string) *Storage {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Storage{
		dir:       dir,
		fixedPath: fixedPath,
		now:       time.Now,
		afterFunc: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

// SetAfterFunc replaces the timer used by ScheduleDelete.
func (s *Storage) SetAfterFunc(fn func(d time.Duration, f func())) {
	s.afterFunc = fn
}

// OnDeleted registers a hook called after every scheduled deletion.
func (s *Storage) OnDeleted(fn func(path string, err error)) {
	s.onDeleted = fn
}

// Write saves the artifact and returns the file it was written to.
func (s *Storage) Write(artifact *models.AudioArtifact) (models.TempAudioFile, error) {
	if artifact == nil || len(artifact.Data) == 0 {
		return models.TempAudioFile{}, fmt.Errorf("%w: no audio data", models.ErrWriteFailed)
	}

	created := s.now()
	path := s.fixedPath
	if path == "" {
		name := fmt.Sprintf("tts-%d-%s%s", created.UnixMilli(), uuid.New().String(), artifact.Encoding.Extension())
		path = filepath.Join(s.dir, name)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return models.TempAudioFile{}, fmt.Errorf("%w: create dir: %v", models.ErrWriteFailed, err)
		}
	}

	var err error
	if artifact.RawPCM {
		err = writeWAV(path, artifact)
	} else {
		err = os.WriteFile(path, artifact.Data, 0o644)
	}
	if err != nil {
		return models.TempAudioFile{}, fmt.Errorf("%w: %v", models.ErrWriteFailed, err)
	}

	log.Printf("[Storage] Saved audio to %s (%d bytes, %s)", path, len(artifact.Data), artifact.Encoding)
	return models.TempAudioFile{Path: path, CreatedAt: created}, nil
}

// ScheduleDelete arms a one-shot timer that removes path after delay.
// Deletion is best-effort; failures are only logged.
func (s *Storage) ScheduleDelete(path string, delay time.Duration) {
	if s.fixedPath != "" && path == s.fixedPath {
		log.Printf("[Storage] Keeping shared file %s (overwritten by the next request)", path)
		return
	}

	s.afterFunc(delay, func() {
		err := s.Delete(path)
		if err != nil {
			log.Printf("[Storage] Could not delete temp file %s: %v", path, err)
		}
		if s.onDeleted != nil {
			s.onDeleted(path, err)
		}
	})
}

// Delete removes path. A file that is already gone is not an error.
func (s *Storage) Delete(path string) error {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Printf("[Storage] Temp file already gone: %s", path)
			return nil
		}
		return err
	}
	log.Printf("[Storage] Deleted temp file %s", path)
	return nil
}

// writeWAV wraps headerless 16-bit little-endian PCM in a WAV container.
func writeWAV(path string, artifact *models.AudioArtifact) error {
	if len(artifact.Data)%2 != 0 {
		return fmt.Errorf("pcm payload not aligned")
	}

	channels := artifact.Channels
	if channels <= 0 {
		channels = 1
	}
	sampleRate := artifact.SampleRate
	if sampleRate <= 0 {
		sampleRate = 24000
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	samples := make([]int, len(artifact.Data)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(artifact.Data[i*2:])))
	}
	buffer := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}

	enc := wav.NewEncoder(file, sampleRate, 16, channels, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
