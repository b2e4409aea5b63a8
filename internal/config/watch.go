package config

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fluhartyml/NightGardDDNS/internal/types"
	"github.com/fsnotify/fsnotify"
)

// reloadDelay lets editors finish rename-and-replace saves before reading.
const reloadDelay = 100 * time.Millisecond

// Watch reloads path whenever it changes and hands the parsed config to
// onChange. The parent directory is watched so atomic replaces are seen.
// Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, onChange func(*types.AppConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	log.Printf("watching %s for changes", path)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				pending = time.After(reloadDelay)
			} else if event.Op&fsnotify.Remove != 0 {
				log.Printf("config file %s removed, keeping current settings", path)
			}
		case <-pending:
			pending = nil
			if _, err := os.Stat(abs); os.IsNotExist(err) {
				continue
			}
			cfg, err := ReadAppConfig(abs)
			if err != nil {
				log.Printf("config file %s modified but could not be loaded: %v", path, err)
				continue
			}
			log.Printf("config file %s modified, reloading", path)
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Println("watcher error:", err)
		}
	}
}
