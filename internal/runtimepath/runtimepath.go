package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Dir returns the runtime directory holding the randrd IPC socket.
// Priority:
// 1) XDG_RUNTIME_DIR (if set)
// 2) /run/user/<uid> (if present)
// 3) /tmp/randrd-runtime-<uid> (created)
func Dir() (string, error) {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return runtimeDir, nil
	}

	uid := os.Getuid()
	runUserDir := fmt.Sprintf("/run/user/%d", uid)
	if info, err := os.Stat(runUserDir); err == nil && info.IsDir() {
		return runUserDir, nil
	}

	tmpDir := fmt.Sprintf("/tmp/randrd-runtime-%d", uid)
	if err := os.MkdirAll(tmpDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create runtime dir: %w", err)
	}
	return tmpDir, nil
}

// SocketPath returns the daemon IPC socket path. RANDRD_SOCKET overrides it.
func SocketPath() (string, error) {
	if path := os.Getenv("RANDRD_SOCKET"); path != "" {
		return path, nil
	}
	runtimeDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(runtimeDir, "randrd.sock"), nil
}

// SocketPathFor returns the socket of the daemon managing an X display, so
// daemons for different displays do not collide. An empty display means
// the default socket.
func SocketPathFor(display string) (string, error) {
	if display == "" {
		return SocketPath()
	}
	runtimeDir, err := Dir()
	if err != nil {
		return "", err
	}
	name := strings.NewReplacer(":", "", "/", "_", ".", "_").Replace(display)
	return filepath.Join(runtimeDir, "randrd-"+name+".sock"), nil
}
