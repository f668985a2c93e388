package wire

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/launix-de/sockdrive/internal/diskstore"
)

func TestReadFrameRead(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(byte(OpRead))
	var sector [4]byte
	binary.LittleEndian.PutUint32(sector[:], 42)
	buf.Write(sector[:])
	buf.WriteByte(4)

	f, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if f.Op != OpRead || f.Sector != 42 || f.Ahead != 4 {
		t.Fatalf("unexpected frame: %+v", f)
	}
}

func TestReadFrameWrite(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(byte(OpWrite))
	var sector [4]byte
	binary.LittleEndian.PutUint32(sector[:], 7)
	buf.Write(sector[:])
	payload := bytes.Repeat([]byte{0xAB}, diskstore.SectorSize)
	buf.Write(payload)

	f, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if f.Op != OpWrite || f.Sector != 7 || !bytes.Equal(f.Bytes, payload) {
		t.Fatalf("unexpected frame: op=%v sector=%v len=%v", f.Op, f.Sector, len(f.Bytes))
	}
}

func TestReadFrameUnknownOpcodeCloses(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(99)
	buf.Write(make([]byte, 4))

	if _, err := ReadFrame(&buf); err == nil {
		t.Fatalf("expected error for unknown opcode")
	}
}

func TestReadFrameShortReadIsError(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(byte(OpWrite))
	buf.Write(make([]byte, 4))
	buf.Write(make([]byte, 10)) // short of SectorSize

	if _, err := ReadFrame(&buf); err == nil {
		t.Fatalf("expected error for truncated write payload")
	}
}

func TestWriteLengthPrefixed(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{1, 2, 3}
	if err := WriteLengthPrefixed(&buf, payload); err != nil {
		t.Fatalf("WriteLengthPrefixed: %v", err)
	}
	got := buf.Bytes()
	if len(got) != 4+len(payload) {
		t.Fatalf("unexpected length: %d", len(got))
	}
	if binary.LittleEndian.Uint32(got[:4]) != uint32(len(payload)) {
		t.Fatalf("bad length header")
	}
	if !bytes.Equal(got[4:], payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestWriteUncompressed(t *testing.T) {
	var buf bytes.Buffer
	payload := bytes.Repeat([]byte{9}, diskstore.SectorSize*2)
	if err := WriteUncompressed(&buf, payload); err != nil {
		t.Fatalf("WriteUncompressed: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), payload) {
		t.Fatalf("payload mismatch")
	}
}
