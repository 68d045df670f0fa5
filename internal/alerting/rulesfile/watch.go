package rulesfile

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watch monitors the rules file and calls onChange with freshly loaded
// definitions on every write. A failed reload keeps the previous
// definitions active. Runs until ctx is canceled.
func Watch(ctx context.Context, path string, onChange func(*Definitions)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}
	log.Info().Str("path", path).Msg("watching rules file for changes")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Editors often save via rename, which surfaces as Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			defs, err := Load(path)
			if err != nil {
				log.Error().Err(err).Str("path", path).Msg("rules file reload failed; keeping previous definitions")
				continue
			}
			log.Info().Str("path", path).Msg("rules file reloaded")
			onChange(defs)

			// An atomic save may have replaced the inode.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("rules file watcher error")
		}
	}
}
