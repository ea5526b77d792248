package tui

import (
	"context"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// dbChangedMsg is sent when the task database changed on disk.
type dbChangedMsg struct{}

// watchDB watches dir for writes to pit.db and its WAL files. The returned
// channel holds at most one pending notification and is closed when ctx ends.
func watchDB(ctx context.Context, dir string, logger *log.Logger) (<-chan struct{}, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	changed := make(chan struct{}, 1)
	go func() {
		defer fsw.Close()
		defer close(changed)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if !strings.HasPrefix(filepath.Base(ev.Name), "pit.db") {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case changed <- struct{}{}:
				default:
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				logger.Warn("db watcher error", "err", err)
			}
		}
	}()
	return changed, nil
}

// waitForChange blocks until the next database change.
func waitForChange(changed <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-changed; !ok {
			return nil
		}
		return dbChangedMsg{}
	}
}
