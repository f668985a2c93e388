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

// Package compress wraps the LZ4 block codec named by spec §4.4 for the
// compressed build variant of the dispatcher.
package compress

import (
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// CompressBlock compresses src with the LZ4 block format. If the
// compressed result would not be smaller than src, it returns src
// unmodified together with ok=false so the caller can fall back to
// emitting the original bytes verbatim (spec §4.4).
func CompressBlock(src []byte) (dst []byte, ok bool, err error) {
	buf := make([]byte, lz4.CompressBlockBound(len(src)))
	var c lz4.Compressor
	n, err := c.CompressBlock(src, buf)
	if err != nil {
		return nil, false, fmt.Errorf("compress: lz4 compress: %w", err)
	}
	if n == 0 || n >= len(src) {
		return src, false, nil
	}
	return buf[:n], true, nil
}

// DecompressBlock decompresses src, which must have been produced by
// CompressBlock, into a buffer of exactly uncompressedSize bytes.
func DecompressBlock(src []byte, uncompressedSize int) ([]byte, error) {
	dst := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, fmt.Errorf("compress: lz4 decompress: %w", err)
	}
	if n != uncompressedSize {
		return nil, fmt.Errorf("compress: decompressed %d bytes, want %d", n, uncompressedSize)
	}
	return dst, nil
}
