package backup

import (
	"testing"

	"github.com/launix-de/go-mysqlstack/xlog"

	sockcfg "github.com/launix-de/sockdrive/internal/config"
)

func TestKeyWithPrefix(t *testing.T) {
	u := New(sockcfg.S3BackupSettings{Prefix: "drives"}, "drive-0-meta", xlog.NewStdLog(xlog.Level(xlog.INFO)))
	if got, want := u.key(), "drives/drive-0-meta"; got != want {
		t.Fatalf("key() = %q, want %q", got, want)
	}
}

func TestKeyWithoutPrefix(t *testing.T) {
	u := New(sockcfg.S3BackupSettings{}, "drive-0-meta", xlog.NewStdLog(xlog.Level(xlog.INFO)))
	if got, want := u.key(), "drive-0-meta"; got != want {
		t.Fatalf("key() = %q, want %q", got, want)
	}
}

func TestRunReturnsImmediatelyWhenDisabled(t *testing.T) {
	u := New(sockcfg.S3BackupSettings{Interval: 0}, "drive-0-meta", xlog.NewStdLog(xlog.Level(xlog.INFO)))
	doneCh := make(chan struct{})
	go func() {
		u.Run()
		close(doneCh)
	}()
	<-doneCh
}
