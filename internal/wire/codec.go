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

// Package wire encodes and decodes the sockdrive client protocol: one
// opcode byte, a little-endian sector number, and opcode-specific
// payload.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/launix-de/sockdrive/internal/diskstore"
)

// Opcode identifies a request kind on the wire.
type Opcode uint8

const (
	OpRead  Opcode = 1
	OpWrite Opcode = 2
)

// Frame is a decoded client request.
type Frame struct {
	Op     Opcode
	Sector uint32
	Ahead  uint8  // valid for OpRead: number of consecutive sectors, 1..=255
	Bytes  []byte // valid for OpWrite: exactly diskstore.SectorSize bytes
}

// ReadFrame decodes one request frame from r. Any short read, unknown
// opcode byte, or truncated payload is a terminal error for the
// connection: the caller must close the socket, not retry.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, err
	}
	op := Opcode(header[0])
	sector := binary.LittleEndian.Uint32(header[1:5])

	switch op {
	case OpRead:
		var ahead [1]byte
		if _, err := io.ReadFull(r, ahead[:]); err != nil {
			return Frame{}, fmt.Errorf("wire: reading ahead byte: %w", err)
		}
		return Frame{Op: OpRead, Sector: sector, Ahead: ahead[0]}, nil
	case OpWrite:
		buf := make([]byte, diskstore.SectorSize)
		if _, err := io.ReadFull(r, buf); err != nil {
			return Frame{}, fmt.Errorf("wire: reading write payload: %w", err)
		}
		return Frame{Op: OpWrite, Sector: sector, Bytes: buf}, nil
	default:
		return Frame{}, fmt.Errorf("wire: unknown opcode %d", op)
	}
}

// WriteUncompressed writes ahead*SectorSize raw bytes with no framing,
// used by the uncompressed build variant.
func WriteUncompressed(w io.Writer, payload []byte) error {
	_, err := w.Write(payload)
	return err
}

// WriteLengthPrefixed writes a 4-byte little-endian length L followed
// by L bytes of payload, used by the compressed build variant (spec
// §4.4): L is the length of payload as given, whether or not it is
// actually compressed.
func WriteLengthPrefixed(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
