//go:build linux

package producer

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// listenBacklog admits a single pending consumer; net.Listen would use
// the system default (often 4096).
const listenBacklog = 1

// listenUnix binds a stream socket at path, removing whatever a previous
// run left behind there. The returned listener unlinks path on Close.
func listenUnix(path string) (*net.UnixListener, error) {
	if path == "" {
		return nil, errors.New("empty socket path")
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind %s: %w", path, err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		_ = unix.Close(fd)
		_ = os.Remove(path)
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}

	// FileListener dups fd, so the original is closed either way.
	f := os.NewFile(uintptr(fd), path)
	defer f.Close()

	l, err := net.FileListener(f)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("wrap listener %s: %w", path, err)
	}
	ul, ok := l.(*net.UnixListener)
	if !ok {
		_ = l.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("unexpected listener type %T", l)
	}
	ul.SetUnlinkOnClose(true)
	return ul, nil
}
