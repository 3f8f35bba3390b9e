package config

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch invokes onChange whenever path is written or recreated. fsnotify is
// the primary mechanism; a slow mtime poll runs alongside it as a safety
// net for editors that replace files in ways inotify misses.
func Watch(ctx context.Context, path string, onChange func()) {
	watcher, err := fsnotify.NewWatcher()
	usePolling := false

	if err != nil {
		log.Printf("[config] fsnotify unavailable (%v), polling only", err)
		usePolling = true
	} else if err := watcher.Add(path); err != nil {
		log.Printf("[config] cannot watch %s (%v), polling only", path, err)
		usePolling = true
		watcher.Close()
	}

	if !usePolling {
		go func() {
			defer watcher.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case event, ok := <-watcher.Events:
					if !ok {
						return
					}
					if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
						// Debounce: writers often fire several events per save.
						time.Sleep(100 * time.Millisecond)
						onChange()
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return
					}
					log.Printf("[config] watch error: %v", err)
				}
			}
		}()
	}

	go poll(ctx, path, onChange)
}

func poll(ctx context.Context, path string, onChange func()) {
	var lastMod time.Time
	if fi, err := statFile(path); err == nil {
		lastMod = fi
	}

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mod, err := statFile(path)
			if err != nil {
				continue
			}
			if mod.After(lastMod) {
				lastMod = mod
				onChange()
			}
		}
	}
}

func statFile(path string) (time.Time, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}
