package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bobarin/speakrelay/internal/models"
)

// manualTimers captures scheduled callbacks so tests can fire them on demand.
type manualTimers struct {
	delays []time.Duration
	funcs  []func()
}

func (m *manualTimers) afterFunc(d time.Duration, f func()) {
	m.delays = append(m.delays, d)
	m.funcs = append(m.funcs, f)
}

func (m *manualTimers) fireAll() {
	for _, f := range m.funcs {
		f()
	}
}

func TestWriteUniquePaths(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "")
	artifact := &models.AudioArtifact{Data: []byte("ID3fake"), Encoding: models.EncodingMP3}

	first, err := s.Write(artifact)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	second, err := s.Write(artifact)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if first.Path == second.Path {
		t.Fatalf("expected unique paths, got %s twice", first.Path)
	}
	if filepath.Dir(first.Path) != dir {
		t.Errorf("expected file in %s, got %s", dir, first.Path)
	}
	if !strings.HasPrefix(filepath.Base(first.Path), "tts-") || filepath.Ext(first.Path) != ".mp3" {
		t.Errorf("unexpected file name %s", first.Path)
	}

	data, err := os.ReadFile(first.Path)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if !bytes.Equal(data, artifact.Data) {
		t.Errorf("file contents differ from artifact")
	}
}

func TestWriteFixedPathOverwrites(t *testing.T) {
	fixed := filepath.Join(t.TempDir(), "output.wav")
	s := New("", fixed)

	if _, err := s.Write(&models.AudioArtifact{Data: []byte("first"), Encoding: models.EncodingLinear16}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	file, err := s.Write(&models.AudioArtifact{Data: []byte("second"), Encoding: models.EncodingLinear16})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if file.Path != fixed {
		t.Errorf("expected fixed path %s, got %s", fixed, file.Path)
	}
	data, _ := os.ReadFile(fixed)
	if string(data) != "second" {
		t.Errorf("expected overwrite, got %q", data)
	}
}

func TestWriteRawPCMProducesWAV(t *testing.T) {
	s := New(t.TempDir(), "")
	pcm := make([]byte, 480) // 240 silent samples
	artifact := &models.AudioArtifact{Data: pcm, Encoding: models.EncodingLinear16, SampleRate: 24000, Channels: 1, RawPCM: true}

	file, err := s.Write(artifact)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	data, err := os.ReadFile(file.Path)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("expected WAV header, got % x", data[:min(len(data), 12)])
	}
	if filepath.Ext(file.Path) != ".wav" {
		t.Errorf("expected .wav extension, got %s", file.Path)
	}
}

func TestWriteFailure(t *testing.T) {
	// A regular file where the directory should be makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(filepath.Join(blocker, "audio"), "")

	_, err := s.Write(&models.AudioArtifact{Data: []byte("x"), Encoding: models.EncodingMP3})
	if !errors.Is(err, models.ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
}

func TestWriteEmptyArtifact(t *testing.T) {
	s := New(t.TempDir(), "")
	if _, err := s.Write(&models.AudioArtifact{}); !errors.Is(err, models.ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
}

func TestScheduleDeleteRemovesFile(t *testing.T) {
	timers := &manualTimers{}
	s := New(t.TempDir(), "")
	s.SetAfterFunc(timers.afterFunc)

	var deleted []string
	s.OnDeleted(func(path string, err error) {
		if err != nil {
			t.Errorf("unexpected delete error: %v", err)
		}
		deleted = append(deleted, path)
	})

	file, err := s.Write(&models.AudioArtifact{Data: []byte("x"), Encoding: models.EncodingMP3})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	s.ScheduleDelete(file.Path, time.Minute)

	if len(timers.delays) != 1 || timers.delays[0] != time.Minute {
		t.Fatalf("expected one 1m timer, got %v", timers.delays)
	}
	if _, err := os.Stat(file.Path); err != nil {
		t.Fatalf("file removed before timer fired: %v", err)
	}

	timers.fireAll()

	if _, err := os.Stat(file.Path); !os.IsNotExist(err) {
		t.Errorf("expected file to be removed, stat err=%v", err)
	}
	if len(deleted) != 1 || deleted[0] != file.Path {
		t.Errorf("expected delete hook for %s, got %v", file.Path, deleted)
	}
}

func TestDeleteMissingFileIsNotAnError(t *testing.T) {
	s := New(t.TempDir(), "")
	if err := s.Delete(filepath.Join(t.TempDir(), "gone.mp3")); err != nil {
		t.Errorf("expected nil for missing file, got %v", err)
	}
}

func TestScheduleDeleteSkipsFixedPath(t *testing.T) {
	timers := &manualTimers{}
	fixed := filepath.Join(t.TempDir(), "output.mp3")
	s := New("", fixed)
	s.SetAfterFunc(timers.afterFunc)

	s.ScheduleDelete(fixed, time.Minute)

	if len(timers.funcs) != 0 {
		t.Errorf("expected no deletion timer for the shared file")
	}
}
