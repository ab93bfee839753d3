package library

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/glebovdev/cookie-player/internal/track"
	"github.com/rs/zerolog/log"
)

// DefaultSettle is how long the watcher waits after the last event before
// re-listing, so a burst of copies produces one reload.
const DefaultSettle = 250 * time.Millisecond

type watchState struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stop    chan struct{}
	wg      sync.WaitGroup
	settle  time.Duration
}

// Watch re-lists a local directory whenever files are added, removed or
// renamed in it, and hands the new list to callback. Remote libraries are
// not watched.
func (l *Library) Watch(callback func([]track.Track)) error {
	if l.remote {
		return nil
	}

	l.StopWatch()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(l.location); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", l.location, err)
	}

	w := &l.watch
	w.mu.Lock()
	if w.settle <= 0 {
		w.settle = DefaultSettle
	}
	w.watcher = watcher
	w.stop = make(chan struct{})
	stopCh := w.stop
	settle := w.settle
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		l.watchLoop(watcher, stopCh, settle, callback)
	}()

	log.Debug().Str("dir", l.location).Msg("Started directory watch")
	return nil
}

func (l *Library) watchLoop(watcher *fsnotify.Watcher, stopCh chan struct{}, settle time.Duration, callback func([]track.Track)) {
	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				timer.Reset(settle)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Directory watch error")
		case <-timer.C:
			tracks, err := l.Load(context.Background())
			if err != nil {
				log.Warn().Err(err).Msg("Reload after directory change failed, keeping cached list")
				continue
			}
			if callback != nil {
				callback(tracks)
			}
		}
	}
}

// StopWatch ends a watch started by Watch and waits for its goroutine.
func (l *Library) StopWatch() {
	w := &l.watch
	w.mu.Lock()
	if w.stop == nil {
		w.mu.Unlock()
		return
	}
	close(w.stop)
	w.stop = nil
	watcher := w.watcher
	w.watcher = nil
	w.mu.Unlock()

	w.wg.Wait()
	if err := watcher.Close(); err != nil {
		log.Debug().Err(err).Msg("Error closing directory watcher")
	}
	log.Debug().Msg("Stopped directory watch")
}
