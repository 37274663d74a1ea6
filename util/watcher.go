// Copyright 2020 Hewlett Packard Enterprise Development LP

package util

import (
	"fmt"
	"os"
	"sync"
	"time"

	notify "github.com/fsnotify/fsnotify"
	log "github.com/hpe-storage/wmi-query-libs/logger"
)

// DefaultSettleInterval is how long the watcher ignores further events after serving one.
// Editors commonly produce several writes per save.
const DefaultSettleInterval = 2 * time.Second

// FileWatch contains watcher attributes.
type FileWatch struct {
	// Channel to receive the stop event.
	watchStop chan struct{}
	// fsnotify watcher.
	watchList *notify.Watcher
	// Anonymous function run for every served event.
	watchRun func(notify.Event)
	// Quiet period after each served event.
	settle time.Duration

	stopOnce sync.Once
	wg       sync.WaitGroup
}

// InitializeWatcher is used to initialize fileWatch with anonymous function and new watcher.
func InitializeWatcher(job func(notify.Event), settle time.Duration) (*FileWatch, error) {
	log.Trace(">>>>> InitializeWatcher")
	defer log.Trace("<<<<< InitializeWatcher")

	if job == nil {
		return nil, fmt.Errorf("no watch job provided")
	}
	watcher, err := notify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &FileWatch{
		watchStop: make(chan struct{}),
		watchList: watcher,
		watchRun:  job,
		settle:    settle,
	}, nil
}

// AddWatchList list of files /and directories to watch
func (w *FileWatch) AddWatchList(files []string) error {
	log.Trace(">>>>> AddWatchList")
	defer log.Trace("<<<<< AddWatchList")

	if len(files) == 0 {
		return fmt.Errorf("Empty watch list is not supported, there should be at least one file to watch")
	}

	added := 0
	for _, fPath := range files {
		err := w.watchList.Add(fPath)
		if err != nil {
			log.Warnf("Failed to add [%s] file to watch list, err %s :", fPath, err.Error())
		} else {
			log.Tracef("Successfully added [%s] file to watch list", fPath)
			added++
		}
	}
	if added == 0 {
		return fmt.Errorf("none of %v could be watched", files)
	}
	return nil
}

// StartWatcher runs the watch job for every write or create event until StopWatcher is called.
// It returns immediately; the events are served on a separate goroutine.
func (w *FileWatch) StartWatcher() {
	log.Trace(">>>>> StartWatcher")
	defer log.Trace("<<<<< StartWatcher")

	w.wg.Add(1)
	go w.run()
}

func (w *FileWatch) run() {
	defer w.wg.Done()
	pid := os.Getpid()
	log.Tracef("Watcher [%d PID] successful started", pid)

	// Settle intervals are tracked per file so that unrelated files don't hold each other back
	quietUntil := make(map[string]time.Time)
	for {
		select {
		case <-w.watchStop:
			log.Infof("Stopping [%d PID] watcher", pid)
			return
		case event, ok := <-w.watchList.Events:
			if !ok {
				return
			}
			if event.Op&(notify.Write|notify.Create) == 0 {
				continue
			}
			if time.Now().Before(quietUntil[event.Name]) {
				log.Tracef("Watcher [%d PID], ignoring %v during settle interval", pid, event)
				continue
			}
			log.Infof("Watcher [%d PID], received notification %v", pid, event)
			w.watchRun(event)
			quietUntil[event.Name] = time.Now().Add(w.settle)
		case err, ok := <-w.watchList.Errors:
			if !ok {
				return
			}
			log.Warnf("Watcher [%d PID], err=%v", pid, err)
		}
	}
}

// StopWatcher stops serving events and closes the fsnotify watcher.  It is safe to call more than
// once.
func (w *FileWatch) StopWatcher() {
	log.Trace(">>>>> StopWatcher")
	defer log.Trace("<<<<< StopWatcher")

	w.stopOnce.Do(func() {
		close(w.watchStop)
		w.wg.Wait()
		w.watchList.Close()
	})
}
