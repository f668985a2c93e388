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

// Package diskstore implements the sparse sector store ("Layer"): a
// persistent array from 32-bit sector numbers to 512-byte payloads,
// backed by an append-on-first-write blob file plus a flat offset-table
// meta file.
package diskstore

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// SectorSize is the fixed payload size of a single sector.
const SectorSize = 512

// NoValue is the offset-table sentinel meaning "sector never written".
const NoValue uint32 = 0xFFFFFFFF

// Layer is the sole owner of one drive's on-disk state. It is not safe
// for concurrent use: callers must serialize access through a single
// goroutine (the dispatcher), the way storage/cache.go serializes all
// mutation through CacheManager.run.
type Layer struct {
	name     string
	metaPath string
	blob     *os.File
	offsets  []uint32
	pos      int64
}

// Open opens or creates "<name>-meta" and "<name>-blob" for a drive of
// the given sector count. If the meta file exists it must contain
// exactly sectors*4 bytes; anything shorter or malformed is an error.
func Open(name string, sectors uint32) (*Layer, error) {
	metaPath := name + "-meta"
	blobPath := name + "-blob"

	offsets := make([]uint32, sectors)
	for i := range offsets {
		offsets[i] = NoValue
	}

	if meta, err := os.Open(metaPath); err == nil {
		defer meta.Close()
		header := make([]byte, int(sectors)*4)
		if _, err := io.ReadFull(meta, header); err != nil {
			return nil, fmt.Errorf("diskstore: reading meta file %s: %w", metaPath, err)
		}
		var extra [1]byte
		if n, _ := meta.Read(extra[:]); n > 0 {
			return nil, fmt.Errorf("diskstore: meta file %s is longer than %d bytes", metaPath, len(header))
		}
		for i := range offsets {
			offsets[i] = binary.LittleEndian.Uint32(header[i*4 : i*4+4])
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("diskstore: opening meta file %s: %w", metaPath, err)
	}

	blob, err := os.OpenFile(blobPath, os.O_RDWR|os.O_CREATE, 0640)
	if err != nil {
		return nil, fmt.Errorf("diskstore: opening blob file %s: %w", blobPath, err)
	}
	pos, err := blob.Seek(0, io.SeekCurrent)
	if err != nil {
		blob.Close()
		return nil, fmt.Errorf("diskstore: seeking blob file %s: %w", blobPath, err)
	}

	return &Layer{
		name:     name,
		metaPath: metaPath,
		blob:     blob,
		offsets:  offsets,
		pos:      pos,
	}, nil
}

// Sectors returns the capacity of this layer.
func (l *Layer) Sectors() uint32 {
	return uint32(len(l.offsets))
}

// Offset returns the raw offset-table entry for a sector, or NoValue.
// Exposed for tests and diagnostics only.
func (l *Layer) Offset(sector uint32) uint32 {
	return l.offsets[sector]
}

// seekTo issues a seek only when the cached cursor disagrees with the
// target, eliding redundant syscalls for sequential read-ahead.
func (l *Layer) seekTo(target int64) error {
	if l.pos == target {
		return nil
	}
	if _, err := l.blob.Seek(target, io.SeekStart); err != nil {
		return err
	}
	l.pos = target
	return nil
}

// Read fills buf (len(buf) must be SectorSize) with sector's payload,
// or with zeros if the sector has never been written.
func (l *Layer) Read(sector uint32, buf []byte) error {
	if len(buf) != SectorSize {
		return fmt.Errorf("diskstore: read buffer must be %d bytes, got %d", SectorSize, len(buf))
	}
	offset := l.offsets[sector]
	if offset == NoValue {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	target := int64(offset)
	if err := l.seekTo(target); err != nil {
		return fmt.Errorf("diskstore: seek to sector %d at offset %d: %w", sector, offset, err)
	}
	if _, err := io.ReadFull(l.blob, buf); err != nil {
		return fmt.Errorf("diskstore: blob read for sector %d at offset %d (blob corruption): %w", sector, offset, err)
	}
	l.pos = target + SectorSize
	return nil
}

// Write stores buf (len(buf) must be SectorSize) as sector's payload.
// First-write placement always appends at end-of-file; subsequent
// writes to the same sector overwrite the sector's existing offset.
func (l *Layer) Write(sector uint32, buf []byte) error {
	if len(buf) != SectorSize {
		return fmt.Errorf("diskstore: write buffer must be %d bytes, got %d", SectorSize, len(buf))
	}
	offset := l.offsets[sector]
	var target int64
	if offset == NoValue {
		end, err := l.blob.Seek(0, io.SeekEnd)
		if err != nil {
			return fmt.Errorf("diskstore: seek to end of blob for sector %d: %w", sector, err)
		}
		l.pos = end
		target = end
		l.offsets[sector] = uint32(end)
	} else {
		target = int64(offset)
	}
	if err := l.seekTo(target); err != nil {
		return fmt.Errorf("diskstore: seek to sector %d at offset %d: %w", sector, target, err)
	}
	if _, err := l.blob.Write(buf); err != nil {
		return fmt.Errorf("diskstore: blob write for sector %d at offset %d: %w", sector, target, err)
	}
	l.pos = target + SectorSize
	return nil
}

// Flush rewrites the meta file in full from the in-memory offset table.
// It does not fsync the blob; the blob is assumed durable once the OS
// accepts the write, a weaker guarantee accepted by design (spec §7).
func (l *Layer) Flush() error {
	tmp := l.offsets
	buf := make([]byte, len(tmp)*4)
	for i, v := range tmp {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], v)
	}
	f, err := os.OpenFile(l.metaPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return fmt.Errorf("diskstore: creating meta file %s: %w", l.metaPath, err)
	}
	defer f.Close()
	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("diskstore: writing meta file %s: %w", l.metaPath, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("diskstore: syncing meta file %s: %w", l.metaPath, err)
	}
	return nil
}

// BlobSize reports the current on-disk size of the blob file, used for
// human-readable status logging.
func (l *Layer) BlobSize() (int64, error) {
	info, err := l.blob.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// MetaSize reports sectors*4, the exact required length of the meta file.
func (l *Layer) MetaSize() int64 {
	return int64(len(l.offsets)) * 4
}

// Close releases the blob file handle without flushing. Callers that
// want durable shutdown must call Flush first.
func (l *Layer) Close() error {
	return l.blob.Close()
}

// Name returns the drive name this layer was opened with.
func (l *Layer) Name() string {
	return l.name
}
