//go:build linux

package dmabuf

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Buffer is an anonymous shared-memory region backed by a memfd, mapped
// read-write in the creating process. It stands in for device memory when a
// frame is produced in software.
type Buffer struct {
	FD   int
	Data []byte
	Name string
}

// Alloc creates a memfd of size bytes and maps it read-write.
func Alloc(name string, size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("alloc %q: invalid size %d", name, size)
	}

	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("memfd_create %q: %w", name, err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("ftruncate %q: %w", name, err)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("mmap %q: %w", name, err)
	}

	return &Buffer{FD: fd, Data: data, Name: name}, nil
}

// Fill sets every byte of the buffer to v.
func (b *Buffer) Fill(v byte) {
	for i := range b.Data {
		b.Data[i] = v
	}
}

// Close unmaps the buffer and closes its descriptor.
func (b *Buffer) Close() error {
	if b == nil {
		return nil
	}
	var unmapErr error
	if b.Data != nil {
		unmapErr = unix.Munmap(b.Data)
		b.Data = nil
	}
	closeErr := Close(b.FD)
	b.FD = -1
	if unmapErr != nil {
		return fmt.Errorf("munmap %q: %w", b.Name, unmapErr)
	}
	return closeErr
}
