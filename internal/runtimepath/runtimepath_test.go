package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDir_UsesXDGRuntimeDirWhenSet(t *testing.T) {
	td := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", td)

	got, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if got != td {
		t.Fatalf("Dir() = %q, want %q", got, td)
	}
}

func TestDir_FallbacksWhenXDGRuntimeDirMissing(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")

	got, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if got == "" {
		t.Fatal("Dir() returned empty path")
	}

	wantRun := fmt.Sprintf("/run/user/%d", os.Getuid())
	wantTmp := fmt.Sprintf("/tmp/randrd-runtime-%d", os.Getuid())
	if got != wantRun && got != wantTmp {
		t.Fatalf("Dir() = %q, want %q or %q", got, wantRun, wantTmp)
	}
}

func TestSocketPath(t *testing.T) {
	td := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", td)
	t.Setenv("RANDRD_SOCKET", "")

	socket, err := SocketPath()
	if err != nil {
		t.Fatalf("SocketPath() error: %v", err)
	}
	if !strings.HasSuffix(socket, "/randrd.sock") {
		t.Fatalf("SocketPath() = %q, missing suffix", socket)
	}

	override := filepath.Join(td, "custom.sock")
	t.Setenv("RANDRD_SOCKET", override)
	socket, err = SocketPath()
	if err != nil {
		t.Fatalf("SocketPath() error: %v", err)
	}
	if socket != override {
		t.Fatalf("SocketPath() = %q, want %q", socket, override)
	}
}

func TestSocketPathFor(t *testing.T) {
	td := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", td)
	t.Setenv("RANDRD_SOCKET", "")

	got, err := SocketPathFor(":1.0")
	if err != nil {
		t.Fatalf("SocketPathFor() error: %v", err)
	}
	if want := filepath.Join(td, "randrd-1_0.sock"); got != want {
		t.Fatalf("SocketPathFor() = %q, want %q", got, want)
	}

	def, err := SocketPathFor("")
	if err != nil {
		t.Fatalf("SocketPathFor() error: %v", err)
	}
	if !strings.HasSuffix(def, "/randrd.sock") {
		t.Fatalf("SocketPathFor(\"\") = %q, want default socket", def)
	}
}
