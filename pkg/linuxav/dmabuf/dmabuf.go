//go:build linux

// Package dmabuf provides pure Go helpers for working with descriptors that
// reference shareable frame memory: DMA-BUF exports from a video decoder or
// GPU, and memfd regions used as a stand-in when no device memory exists.
//
// This package does not use cgo.
//
// # Duplication
//
// Descriptors owned by a media pipeline must never be closed by a consumer of
// the pipeline. Dup returns an independent close-on-exec copy:
//
//	own, err := dmabuf.Dup(pipelineFD)
//	defer dmabuf.Close(own)
//
// # Mapping
//
// Map creates a read-only shared view anchored at offset 0:
//
//	view, err := dmabuf.Map(fd, pitch*height)
//	defer dmabuf.Unmap(view)
//
// Size reports the backing size where the kernel exposes it, so callers can
// refuse to map more memory than the buffer actually has.
//
// # CPU access
//
// DMA-BUF exporters may need cache maintenance before the CPU reads device
// written memory. BeginCPUAccess and EndCPUAccess bracket such reads with
// DMA_BUF_IOCTL_SYNC. On memory that is not a DMA-BUF they are no-ops.
package dmabuf

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// UnknownSize is returned by Size when the backing size cannot be determined.
const UnknownSize int64 = -1

// Dup returns a close-on-exec duplicate of fd.
func Dup(fd int) (int, error) {
	if fd < 0 {
		return -1, fmt.Errorf("dup: invalid descriptor %d", fd)
	}
	dup, err := unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("dup descriptor %d: %w", fd, err)
	}
	return dup, nil
}

// Close closes fd. EINTR is not retried: on Linux the descriptor is released
// even when close is interrupted.
func Close(fd int) error {
	if fd < 0 {
		return nil
	}
	if err := unix.Close(fd); err != nil && !errors.Is(err, unix.EINTR) {
		return fmt.Errorf("close descriptor %d: %w", fd, err)
	}
	return nil
}

// Size returns the size in bytes of the memory behind fd, or UnknownSize.
// memfd and regular files report it through fstat. DMA-BUF exports are not
// regular files and only answer lseek(SEEK_END); the offset is restored
// afterwards because it lives in the open file description that the sender's
// copy of the descriptor shares.
func Size(fd int) int64 {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return UnknownSize
	}
	if st.Mode&unix.S_IFMT == unix.S_IFREG {
		if st.Size > 0 {
			return st.Size
		}
		return UnknownSize
	}

	cur, err := unix.Seek(fd, 0, unix.SEEK_CUR)
	if err != nil {
		return UnknownSize
	}
	end, err := unix.Seek(fd, 0, unix.SEEK_END)
	if err != nil {
		return UnknownSize
	}
	_, _ = unix.Seek(fd, cur, unix.SEEK_SET)
	if end <= 0 {
		return UnknownSize
	}
	return end
}

// Map maps size bytes of fd read-only and shared, starting at offset 0.
func Map(fd int, size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmap: invalid size %d", size)
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes of descriptor %d: %w", size, fd, err)
	}
	return data, nil
}

// Unmap releases a mapping returned by Map.
func Unmap(data []byte) error {
	if data == nil {
		return nil
	}
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}

// BeginCPUAccess prepares fd for CPU reads.
func BeginCPUAccess(fd int) error {
	return syncAccess(fd, dmaBufSyncStart|dmaBufSyncRead)
}

// EndCPUAccess ends a CPU read section started with BeginCPUAccess.
func EndCPUAccess(fd int) error {
	return syncAccess(fd, dmaBufSyncEnd|dmaBufSyncRead)
}

// BeginCPUWrite prepares fd for CPU writes, used by producers that fill
// frames in software.
func BeginCPUWrite(fd int) error {
	return syncAccess(fd, dmaBufSyncStart|dmaBufSyncWrite)
}

// EndCPUWrite ends a CPU write section started with BeginCPUWrite.
func EndCPUWrite(fd int) error {
	return syncAccess(fd, dmaBufSyncEnd|dmaBufSyncWrite)
}

func syncAccess(fd int, flags uint64) error {
	arg := dmaBufSync{flags: flags}
	err := ioctl(fd, dmaBufIoctlSync, &arg)
	if err == nil {
		return nil
	}
	// Not a DMA-BUF (memfd, tmpfs, ...): there is nothing to synchronize.
	if errors.Is(err, unix.ENOTTY) || errors.Is(err, unix.EINVAL) {
		return nil
	}
	return fmt.Errorf("dma-buf sync: %w", err)
}
