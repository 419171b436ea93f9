package main

import (
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watchFiles re-invokes onChange, debounced, whenever one of the given
// paths is written to. Simplified from AleutianFOSS's FileWatcher
// (services/trace/graph/file_watcher.go): that one recursively watches
// a whole tree and batches heterogeneous ops, but cmd/modeledjs only
// ever needs to watch the flat set of module files a single run
// already pulled in, so there is no directory walk and no op-type
// bookkeeping beyond "something changed".
func watchFiles(initialPaths []string, debounce time.Duration, logger *zap.Logger, onChange func() []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := map[string]struct{}{}
	addPaths := func(paths []string) {
		for _, p := range paths {
			if _, ok := watched[p]; ok {
				continue
			}
			if err := watcher.Add(p); err != nil {
				logger.Warn("could not watch file", zap.String("path", p), zap.Error(err))
				continue
			}
			watched[p] = struct{}{}
		}
	}
	addPaths(initialPaths)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				timer.Reset(debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			addPaths(onChange())
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))
		}
	}
}
