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

// Package backup uploads the small, flush-atomic meta file to an
// S3-compatible bucket on a timer and on clean shutdown, grounded on
// storage/persistence-s3.go's S3Storage (lazy client construction,
// optional static credentials, optional custom endpoint for
// MinIO-style deployments). The blob file is large and append-only and
// is deliberately out of scope for remote backup (see SPEC_FULL.md §4).
package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/launix-de/go-mysqlstack/xlog"

	sockcfg "github.com/launix-de/sockdrive/internal/config"
)

// Uploader periodically snapshots a drive's meta file to S3.
type Uploader struct {
	settings sockcfg.S3BackupSettings
	metaPath string
	log      *xlog.Log

	mu     sync.Mutex
	client *s3.Client
	opened bool

	stop chan struct{}
	done chan struct{}
}

// New constructs an Uploader for the given meta file path. It does not
// start the periodic timer until Run is called.
func New(settings sockcfg.S3BackupSettings, metaPath string, log *xlog.Log) *Uploader {
	return &Uploader{
		settings: settings,
		metaPath: metaPath,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (u *Uploader) ensureOpen(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.opened {
		return nil
	}

	var opts []func(*config.LoadOptions) error
	if u.settings.Region != "" {
		opts = append(opts, config.WithRegion(u.settings.Region))
	}
	if u.settings.AccessKeyID != "" && u.settings.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(u.settings.AccessKeyID, u.settings.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("backup: loading AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if u.settings.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(u.settings.Endpoint)
		})
	}
	if u.settings.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	u.client = s3.NewFromConfig(cfg, s3Opts...)
	u.opened = true
	return nil
}

func (u *Uploader) key() string {
	prefix := u.settings.Prefix
	if prefix == "" {
		return u.metaPath
	}
	return prefix + "/" + u.metaPath
}

// SnapshotOnce uploads the current contents of the meta file. Safe to
// call directly for the shutdown snapshot.
func (u *Uploader) SnapshotOnce(ctx context.Context) error {
	if err := u.ensureOpen(ctx); err != nil {
		return err
	}
	data, err := os.ReadFile(u.metaPath)
	if err != nil {
		return fmt.Errorf("backup: reading meta file %s: %w", u.metaPath, err)
	}
	return u.putBytes(ctx, data)
}

func (u *Uploader) putBytes(ctx context.Context, data []byte) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.settings.Bucket),
		Key:    aws.String(u.key()),
		Body:   newReader(data),
	})
	if err != nil {
		return fmt.Errorf("backup: uploading %s: %w", u.key(), err)
	}
	return nil
}

// Run ticks every settings.Interval until Stop is called, snapshotting
// the meta file each time. Errors are logged, not fatal: a failed
// backup upload must never interrupt the dispatcher.
func (u *Uploader) Run() {
	defer close(u.done)
	if u.settings.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(u.settings.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := u.SnapshotOnce(context.Background()); err != nil {
				u.log.Warning("sockdrive: periodic S3 backup failed: %v", err)
			}
		case <-u.stop:
			return
		}
	}
}

// Stop ends the periodic timer and waits for Run to return.
func (u *Uploader) Stop() {
	close(u.stop)
	<-u.done
}

func newReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}
