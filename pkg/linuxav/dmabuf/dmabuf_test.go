//go:build linux

package dmabuf

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestDupIsIndependent(t *testing.T) {
	buf, err := Alloc("dup-test", 4096)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	defer buf.Close()

	dup, err := Dup(buf.FD)
	if err != nil {
		t.Fatalf("Dup: %v", err)
	}
	if dup == buf.FD {
		t.Fatalf("Dup returned the original descriptor %d", dup)
	}

	flags, err := unix.FcntlInt(uintptr(dup), unix.F_GETFD, 0)
	if err != nil {
		t.Fatalf("F_GETFD: %v", err)
	}
	if flags&unix.FD_CLOEXEC == 0 {
		t.Error("duplicate is not close-on-exec")
	}

	if err := Close(dup); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// The original must survive closing the duplicate.
	if got := Size(buf.FD); got != 4096 {
		t.Errorf("Size(original) after closing dup = %d, want 4096", got)
	}
}

func TestDupInvalid(t *testing.T) {
	if _, err := Dup(-1); err == nil {
		t.Error("Dup(-1) succeeded, want error")
	}
}

func TestSize(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"one page", 4096},
		{"frame 4x2 pitch 16", 32},
		{"odd size", 12345},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := Alloc(tt.name, tt.size)
			if err != nil {
				t.Fatalf("Alloc: %v", err)
			}
			defer buf.Close()

			if got := Size(buf.FD); got != int64(tt.size) {
				t.Errorf("Size() = %d, want %d", got, tt.size)
			}
		})
	}
}

func TestSizeKeepsSharedOffset(t *testing.T) {
	buf, err := Alloc("offset-test", 4096)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	defer buf.Close()

	// A duplicate shares the open file description, like a received copy.
	dup, err := Dup(buf.FD)
	if err != nil {
		t.Fatalf("Dup: %v", err)
	}
	defer Close(dup)

	if _, err := unix.Seek(buf.FD, 100, unix.SEEK_SET); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if got := Size(dup); got != 4096 {
		t.Fatalf("Size() = %d, want 4096", got)
	}
	off, err := unix.Seek(buf.FD, 0, unix.SEEK_CUR)
	if err != nil {
		t.Fatalf("seek: %v", err)
	}
	if off != 100 {
		t.Errorf("offset after Size = %d, want 100", off)
	}
}

func TestSizeOfPipeIsUnknown(t *testing.T) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_CLOEXEC); err != nil {
		t.Fatalf("pipe2: %v", err)
	}
	defer unix.Close(p[0])
	defer unix.Close(p[1])

	if got := Size(p[0]); got != UnknownSize {
		t.Errorf("Size(pipe) = %d, want UnknownSize", got)
	}
}

func TestMapSharesMemory(t *testing.T) {
	buf, err := Alloc("map-test", 64)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	defer buf.Close()

	buf.Fill(0xAA)

	view, err := Map(buf.FD, 64)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	defer Unmap(view)

	for i, b := range view {
		if b != 0xAA {
			t.Fatalf("view[%d] = %#x, want 0xaa", i, b)
		}
	}

	// Writes through the producer mapping are visible in the read-only view.
	buf.Data[10] = 0x55
	if view[10] != 0x55 {
		t.Errorf("view[10] = %#x after shared write, want 0x55", view[10])
	}
}

func TestMapErrors(t *testing.T) {
	if _, err := Map(-1, 4096); err == nil {
		t.Error("Map(-1) succeeded, want error")
	}

	buf, err := Alloc("map-zero", 4096)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	defer buf.Close()

	if _, err := Map(buf.FD, 0); err == nil {
		t.Error("Map(size=0) succeeded, want error")
	}
}

func TestCPUAccessOnMemfdIsNoop(t *testing.T) {
	buf, err := Alloc("sync-test", 4096)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	defer buf.Close()

	for name, fn := range map[string]func(int) error{
		"BeginCPUAccess": BeginCPUAccess,
		"EndCPUAccess":   EndCPUAccess,
		"BeginCPUWrite":  BeginCPUWrite,
		"EndCPUWrite":    EndCPUWrite,
	} {
		if err := fn(buf.FD); err != nil {
			t.Errorf("%s on memfd: %v", name, err)
		}
	}
}
