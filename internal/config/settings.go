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

// Package config centralizes sockdrive's build-time tunables, following
// the shape of storage/settings.go's SettingsT: a single struct literal
// edited per build, no flags, no environment variables (spec §6).
package config

import "time"

// S3BackupSettings configures the optional meta-file snapshot backup.
type S3BackupSettings struct {
	Enabled         bool
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Endpoint        string // custom endpoint for S3-compatible storage (MinIO, etc.)
	Bucket          string
	Prefix          string
	ForcePathStyle  bool
	Interval        time.Duration // 0 disables the periodic tick; shutdown snapshot still runs if Enabled
}

// SettingsT holds every tunable of one sockdrive build.
type SettingsT struct {
	BindAddr          string
	DriveName         string
	Sectors           uint32
	Compress          bool
	ReadQueueCap      int
	WriteQueueCap     int
	ReplyChanCap      int
	IdleSleep         time.Duration
	StatusLogEvery    uint64 // emit a status line once any one of reads/writes/sleeps has advanced by more than N since the last line
	WatchMetaAndBlob  bool   // fsnotify safety net on the drive's files, see internal/watch
	S3Backup          S3BackupSettings
}

// Settings is the single build-time source of truth. The plain and lz4
// cmd/ binaries each start from this value and flip Compress/BindAddr.
var Settings = SettingsT{
	BindAddr:         "0.0.0.0:8002",
	DriveName:        "drive-0",
	Sectors:          1 << 20, // 2^20 sectors * 512B = 512MiB
	Compress:         false,
	ReadQueueCap:     128,
	WriteQueueCap:    128,
	ReplyChanCap:     1,
	IdleSleep:        time.Millisecond,
	StatusLogEvery:   1000,
	WatchMetaAndBlob: true,
	S3Backup:         S3BackupSettings{Enabled: false},
}
