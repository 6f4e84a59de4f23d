//go:build linux

package dmabuf

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// DMA_BUF_IOCTL_SYNC = _IOW('b', 0, struct dma_buf_sync).
const dmaBufIoctlSync = 0x40086200

// struct dma_buf_sync flags (linux/dma-buf.h).
const (
	dmaBufSyncRead  uint64 = 1 << 0
	dmaBufSyncWrite uint64 = 2 << 0
	dmaBufSyncStart uint64 = 0 << 2
	dmaBufSyncEnd   uint64 = 1 << 2
)

type dmaBufSync struct {
	flags uint64
}

func ioctl(fd int, req uint, arg *dmaBufSync) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(unsafe.Pointer(arg)))
	if errno != 0 {
		return errno
	}
	return nil
}
