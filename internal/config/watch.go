package config

import (
	"github.com/fsnotify/fsnotify"
)

// Watcher reports a fresh, re-merged Config whenever the backing config
// file changes on disk. Not all fields are safe to hot-reload: Durability
// requires reopening the log writer with a new policy, so callers must
// restart the process to change it; only MaxLogSize and Addr are
// meaningfully observed from WatchFile in this engine.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	updates chan Config
}

// WatchFile starts watching configPath for writes, creates, and renames
// (the events an editor or atomic-replace config deploy produces) and emits a
// freshly loaded Config on each one, merged with the same overrides passed
// to the original Load call.
func WatchFile(configPath string, overrides Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fsw.Add(configPath); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{watcher: fsw, path: configPath, updates: make(chan Config, 1)}

	go w.run(overrides)

	return w, nil
}

func (w *Watcher) run(overrides Config) {
	defer close(w.updates)

	for event := range w.watcher.Events {
		if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
			continue
		}

		cfg, err := Load(w.path, overrides)
		if err != nil {
			// A transient parse error mid-write (editor truncates then
			// rewrites) is expected; wait for the next event rather than
			// surfacing a spurious failure.
			continue
		}

		select {
		case w.updates <- cfg:
		default:
			// Drop the stale pending update in favor of the newest one.
			select {
			case <-w.updates:
			default:
			}

			w.updates <- cfg
		}
	}
}

// Updates returns the channel of freshly reloaded configs.
func (w *Watcher) Updates() <-chan Config { return w.updates }

// Close stops watching and releases the underlying inotify/kqueue handle.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
