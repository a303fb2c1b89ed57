package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bobarin/speakrelay/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// Launcher starts playback of a file and returns a function that waits for
// the player to exit.
type Launcher interface {
	Start(path string) (wait func() error, err error)
}

// Scheduler removes a file after a delay.
type Scheduler interface {
	ScheduleDelete(path string, delay time.Duration)
}

// Worker runs playback in the background so the speak handler can respond
// as soon as the audio file is on disk.
type Worker struct {
	player      Launcher
	store       Scheduler
	deleteAfter time.Duration
	metrics     *telemetry.Metrics

	group  errgroup.Group
	onDone func(path string, err error)
}

func New(player Launcher, store Scheduler, deleteAfter time.Duration, metrics *telemetry.Metrics) *Worker {
	return &Worker{
		player:      player,
		store:       store,
		deleteAfter: deleteAfter,
		metrics:     metrics,
	}
}

// OnDone registers a hook called when a playback task finishes. Set it
// before the first Dispatch.
func (w *Worker) OnDone(fn func(path string, err error)) {
	w.onDone = fn
}

// Dispatch plays path in the background and schedules its deletion. It
// never blocks on the player.
func (w *Worker) Dispatch(path string) {
	w.group.Go(func() error {
		err := w.play(path)
		if w.onDone != nil {
			w.onDone(path, err)
		}
		// Failures are logged per task; returning nil keeps one bad
		// playback from surfacing in Wait.
		return nil
	})
}

// Wait blocks until every dispatched task has finished.
func (w *Worker) Wait() error {
	return w.group.Wait()
}

func (w *Worker) play(path string) (err error) {
	ctx := context.Background()

	scheduled := false
	scheduleDelete := func() {
		if !scheduled {
			scheduled = true
			w.store.ScheduleDelete(path, w.deleteAfter)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("playback task panicked: %v", r)
			log.Printf("[Worker] %v (path=%s)", err, path)
			w.metrics.RecordPlayback(ctx, "panic")
			scheduleDelete()
		}
	}()

	wait, err := w.player.Start(path)
	if err != nil {
		log.Printf("[Worker] Failed to launch player for %s: %v", path, err)
		w.metrics.RecordPlayback(ctx, "failed")
		scheduleDelete()
		return err
	}
	w.metrics.RecordPlayback(ctx, "started")

	// Deletion is timed from launch, not from exit.
	scheduleDelete()
	log.Printf("[Worker] Playback started for %s, deleting in %s", path, w.deleteAfter)

	if err := wait(); err != nil {
		log.Printf("[Worker] Player exited with error for %s: %v", path, err)
		return err
	}

	log.Printf("[Worker] Playback completed for %s", path)
	return nil
}
