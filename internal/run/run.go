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

// Package run wires diskstore, dispatch, watch and backup together into
// one daemon process, shared by both cmd/ build variants. It mirrors
// the teacher's main.go shape: print a banner, wire the storage
// engine, then run the dispatcher until shutdown.
package run

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"

	"github.com/dc0d/onexit"
	"github.com/docker/go-units"
	"github.com/launix-de/go-mysqlstack/xlog"

	"github.com/launix-de/sockdrive/internal/backup"
	"github.com/launix-de/sockdrive/internal/config"
	"github.com/launix-de/sockdrive/internal/diskstore"
	"github.com/launix-de/sockdrive/internal/dispatch"
	"github.com/launix-de/sockdrive/internal/watch"
)

// Main runs one sockdrive daemon to completion. It returns only after
// clean shutdown; on startup failure it logs a diagnostic and exits the
// process with a non-zero status (spec §6).
func Main(cfg config.SettingsT) {
	log := xlog.NewStdLog(xlog.Level(xlog.INFO))

	log.Info("sockdrive starting: drive=%q sectors=%d (%s) bind=%s compress=%v",
		cfg.DriveName, cfg.Sectors, units.BytesSize(float64(cfg.Sectors)*diskstore.SectorSize), cfg.BindAddr, cfg.Compress)

	layer, err := diskstore.Open(cfg.DriveName, cfg.Sectors)
	if err != nil {
		log.Error("sockdrive: failed to open drive %q: %v", cfg.DriveName, err)
		os.Exit(1)
	}

	d := dispatch.New(layer, cfg, log)

	var watcher *watch.Watcher
	if cfg.WatchMetaAndBlob {
		w, err := watch.New(cfg.DriveName, log)
		if err != nil {
			log.Warning("sockdrive: external-write watcher disabled: %v", err)
		} else {
			watcher = w
		}
	}

	var uploader *backup.Uploader
	if cfg.S3Backup.Enabled {
		uploader = backup.New(cfg.S3Backup, cfg.DriveName+"-meta", log)
		go uploader.Run()
		d.OnStopped(func() {
			if err := uploader.SnapshotOnce(context.Background()); err != nil {
				log.Warning("sockdrive: shutdown S3 snapshot failed: %v", err)
			}
			uploader.Stop()
		})
	}

	ln, err := net.Listen("tcp", cfg.BindAddr)
	if err != nil {
		log.Error("sockdrive: failed to bind %s: %v", cfg.BindAddr, err)
		os.Exit(1)
	}

	// Last-resort flush net: if the process exits through some path
	// other than the signal handler below, still try to stop cleanly.
	onexit.Register(func() { d.Stop() })

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		fmt.Println("Exiting, please wait...")
		d.Stop()
		ln.Close()
	}()

	go func() {
		if err := dispatch.Serve(ln, d, log); err != nil {
			log.Info("sockdrive: listener stopped: %v", err)
		}
	}()

	runErr := d.Run()
	if watcher != nil {
		watcher.Close()
	}
	if runErr != nil {
		log.Error("sockdrive: dispatcher exited with error: %v", runErr)
		os.Exit(1)
	}
	log.Info("sockdrive: clean shutdown")
}
