/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package watch is a pure safety net: sockdrive is single-writer by
// design (spec Non-goals exclude multi-writer consistency), but an
// external process touching the drive's meta/blob files out from under
// the dispatcher is a misconfiguration worth a log line, not silence.
package watch

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/launix-de/go-mysqlstack/xlog"
)

// Watcher observes the directory holding a drive's meta and blob files
// and logs a warning whenever either is touched by something other
// than this process's own file handles. It never interrupts dispatch.
type Watcher struct {
	fsw       *fsnotify.Watcher
	metaName  string
	blobName  string
	log       *xlog.Log
	closeOnce chan struct{}
}

// New starts watching the directory containing "<name>-meta" and
// "<name>-blob". Returns nil, err if the underlying OS watch cannot be
// established; callers should treat that as non-fatal and run without
// the safety net.
func New(name string, log *xlog.Log) (*Watcher, error) {
	dir := filepath.Dir(name)
	if dir == "" {
		dir = "."
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{
		fsw:       fsw,
		metaName:  filepath.Base(name) + "-meta",
		blobName:  filepath.Base(name) + "-blob",
		log:       log,
		closeOnce: make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			base := filepath.Base(ev.Name)
			if base == w.metaName || base == w.blobName {
				w.log.Warning("sockdrive: external modification detected on %s (%s) while dispatcher owns the drive", ev.Name, ev.Op)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warning("sockdrive: watcher error: %v", err)
		case <-w.closeOnce:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.closeOnce)
	return w.fsw.Close()
}
