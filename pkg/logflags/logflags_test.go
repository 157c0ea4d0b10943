package logflags

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetup(t *testing.T) {
	defer Close()

	if err := Setup(true, "patcher,http", ""); err != nil {
		t.Fatal(err)
	}
	if !Patcher() || !HTTP() || GRPC() || Terminal() {
		t.Fatalf("unexpected flags %v %v %v %v", Patcher(), HTTP(), GRPC(), Terminal())
	}

	if err := Setup(false, "grpc", ""); err != nil {
		t.Fatal(err)
	}
	if Patcher() || HTTP() || GRPC() {
		t.Fatal("loggers enabled without --logFlag")
	}

	if err := Setup(true, "bogus", ""); err == nil {
		t.Fatal("expected error for unknown logger")
	}
}

func TestLogFile(t *testing.T) {
	defer Close()

	dest := filepath.Join(t.TempDir(), "sigpatch.log")
	if err := Setup(true, "patcher", dest); err != nil {
		t.Fatal(err)
	}

	PatcherLogger().Debugf("applied %s", "nop-check")
	HTTPLogger().Debugf("dropped")
	Close()

	bs, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	out := string(bs)
	if !strings.Contains(out, "applied nop-check") || !strings.Contains(out, "patcher") {
		t.Fatalf("missing patcher entry in %q", out)
	}
	if strings.Contains(out, "dropped") {
		t.Fatalf("disabled logger wrote %q", out)
	}
}
