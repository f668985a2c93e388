package diskstore

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

// newTestLayer opens a Layer rooted at a fresh temp-dir drive name.
func newTestLayer(t *testing.T, sectors uint32) *Layer {
	t.Helper()
	name := filepath.Join(t.TempDir(), "drive")
	l, err := Open(name, sectors)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func fullOf(b byte) []byte {
	buf := make([]byte, SectorSize)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

func assertAllBytes(t *testing.T, buf []byte, want byte, ctx string) {
	t.Helper()
	for i, b := range buf {
		if b != want {
			t.Fatalf("%s: byte %d = %#x, want %#x", ctx, i, b, want)
		}
	}
}

func TestSparseZeroRead(t *testing.T) {
	l := newTestLayer(t, 1024)
	buf := make([]byte, SectorSize)
	for _, s := range []uint32{0, 1, 500, 1023} {
		if err := l.Read(s, buf); err != nil {
			t.Fatalf("Read(%d): %v", s, err)
		}
		assertAllBytes(t, buf, 0, "fresh sector")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	l := newTestLayer(t, 16)
	in := fullOf(0xAB)
	if err := l.Write(5, in); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := make([]byte, SectorSize)
	if err := l.Read(5, out); err != nil {
		t.Fatalf("Read: %v", err)
	}
	assertAllBytes(t, out, 0xAB, "round trip")
}

func TestIdempotentFirstWritePlacement(t *testing.T) {
	l := newTestLayer(t, 4)
	if err := l.Write(2, fullOf(0x11)); err != nil {
		t.Fatalf("Write 1: %v", err)
	}
	off := l.Offset(2)
	if err := l.Write(2, fullOf(0x22)); err != nil {
		t.Fatalf("Write 2: %v", err)
	}
	if got := l.Offset(2); got != off {
		t.Fatalf("offset changed across overwrite: %d -> %d", off, got)
	}
	out := make([]byte, SectorSize)
	if err := l.Read(2, out); err != nil {
		t.Fatalf("Read: %v", err)
	}
	assertAllBytes(t, out, 0x22, "second write wins")
}

func TestDurabilityAcrossReopen(t *testing.T) {
	name := filepath.Join(t.TempDir(), "drive")
	l, err := Open(name, 8)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := l.Write(3, fullOf(0x77)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := l.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	l2, err := Open(name, 8)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close()
	out := make([]byte, SectorSize)
	if err := l2.Read(3, out); err != nil {
		t.Fatalf("Read after reopen: %v", err)
	}
	assertAllBytes(t, out, 0x77, "durable across reopen")
}

func TestMetaFileSizeLaw(t *testing.T) {
	l := newTestLayer(t, 4096)
	if err := l.Write(10, fullOf(1)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := l.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if l.MetaSize() != 4096*4 {
		t.Fatalf("MetaSize = %d, want %d", l.MetaSize(), 4096*4)
	}
	info, err := os.Stat(l.metaPath)
	if err != nil {
		t.Fatalf("Stat meta file: %v", err)
	}
	if info.Size() != 4096*4 {
		t.Fatalf("meta file size = %d, want %d", info.Size(), 4096*4)
	}
}

func TestOffsetMonotonicityOnFreshDrive(t *testing.T) {
	l := newTestLayer(t, 16)
	order := []uint32{5, 1, 9, 0, 15}
	for i, s := range order {
		if err := l.Write(s, fullOf(byte(s))); err != nil {
			t.Fatalf("Write(%d): %v", s, err)
		}
		want := uint32(i * SectorSize)
		if got := l.Offset(s); got != want {
			t.Fatalf("Offset(%d) = %d, want %d", s, got, want)
		}
	}
}

func TestRandomOrderFillAndVerify(t *testing.T) {
	const n = 4096
	name := filepath.Join(t.TempDir(), "drive")
	l, err := Open(name, n)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	order := rand.New(rand.NewSource(1)).Perm(n)
	for i, s := range order {
		if err := l.Write(uint32(s), fullOf(byte(s&0xFF))); err != nil {
			t.Fatalf("Write(%d): %v", s, err)
		}
		want := uint32(i * SectorSize)
		if got := l.Offset(uint32(s)); got != want {
			t.Fatalf("Offset(%d) = %d, want %d", s, got, want)
		}
	}
	if err := l.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	l2, err := Open(name, n)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close()

	buf := make([]byte, SectorSize)
	for _, s := range order {
		if err := l2.Read(uint32(s), buf); err != nil {
			t.Fatalf("Read(%d): %v", s, err)
		}
		assertAllBytes(t, buf, byte(s&0xFF), "shuffled verify")
	}
}

func TestSparseReadAmongWritten(t *testing.T) {
	l := newTestLayer(t, 1024)
	if err := l.Write(7, fullOf(0x55)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	buf := make([]byte, SectorSize)

	if err := l.Read(0, buf); err != nil {
		t.Fatalf("Read(0): %v", err)
	}
	assertAllBytes(t, buf, 0, "sector 0 untouched")

	if err := l.Read(7, buf); err != nil {
		t.Fatalf("Read(7): %v", err)
	}
	assertAllBytes(t, buf, 0x55, "sector 7 written")

	if err := l.Read(1023, buf); err != nil {
		t.Fatalf("Read(1023): %v", err)
	}
	assertAllBytes(t, buf, 0, "sector 1023 untouched")
}

func TestRejectsWrongSizeBuffers(t *testing.T) {
	l := newTestLayer(t, 4)
	if err := l.Write(0, make([]byte, 10)); err == nil {
		t.Fatalf("expected error writing undersized buffer")
	}
	if err := l.Read(0, make([]byte, 10)); err == nil {
		t.Fatalf("expected error reading into undersized buffer")
	}
}
