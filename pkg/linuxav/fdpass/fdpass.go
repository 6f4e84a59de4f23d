//go:build linux

// Package fdpass moves open file descriptors between processes over a
// connected AF_UNIX stream socket using SCM_RIGHTS ancillary data.
//
// Every message is exactly one in-band marker byte carrying exactly one
// descriptor. There is no batching and no length prefix; message boundaries
// are recovered from the one-byte payload.
//
//	// sender
//	if err := fdpass.Send(conn, fd); err != nil { ... }
//	unix.Close(fd) // the caller still owns fd
//
//	// receiver
//	fd, err := fdpass.Receive(conn)
//	if errors.Is(err, fdpass.ErrPeerClosed) { ... }
//	defer unix.Close(fd) // the receiver owns fd from here on
package fdpass

import (
	"errors"
	"io"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// Marker is the in-band byte that carries each descriptor.
const Marker byte = 'F'

// oobDescriptors is how many descriptors the receive control buffer can hold.
// Room for more than one lets a batched message be reported as malformed
// rather than silently truncated.
const oobDescriptors = 4

// Send transmits fd as SCM_RIGHTS alongside a single Marker byte.
// Ownership of fd is unaffected: the caller must close it afterwards.
func Send(conn *net.UnixConn, fd int) error {
	if conn == nil {
		return newError(CodeSendFailed, "no connection", nil)
	}
	if fd < 0 {
		return newError(CodeSendFailed, "invalid descriptor", syscall.EBADF)
	}

	rights := unix.UnixRights(fd)
	n, oobn, err := conn.WriteMsgUnix([]byte{Marker}, rights, nil)
	if err != nil {
		return newError(CodeSendFailed, "sendmsg", err)
	}
	if n != 1 || oobn != len(rights) {
		return newError(CodeSendFailed, "short write", io.ErrShortWrite)
	}
	return nil
}

// Receive blocks until one message arrives and returns the descriptor it
// carried. The caller owns the returned descriptor, which is close-on-exec.
//
// End of stream yields ErrPeerClosed. A message without exactly one
// descriptor, or with a foreign payload byte, yields ErrMalformed; any
// descriptors that did arrive with it are closed first.
func Receive(conn *net.UnixConn) (int, error) {
	if conn == nil {
		return -1, newError(CodePeerClosed, "no connection", nil)
	}

	var buf [1]byte
	oob := make([]byte, unix.CmsgSpace(4*oobDescriptors))

	n, oobn, flags, _, err := conn.ReadMsgUnix(buf[:], oob)
	fds, parseErr := parseRights(oob[:oobn])

	if err != nil {
		closeAll(fds)
		if isDisconnect(err) {
			return -1, newError(CodePeerClosed, "end of stream", err)
		}
		return -1, newError(CodePeerClosed, "recvmsg", err)
	}
	if n == 0 && oobn == 0 {
		return -1, newError(CodePeerClosed, "end of stream", io.EOF)
	}
	if parseErr != nil {
		closeAll(fds)
		return -1, newError(CodeMalformed, "unparsable control message", parseErr)
	}
	if flags&unix.MSG_CTRUNC != 0 {
		closeAll(fds)
		return -1, newError(CodeMalformed, "control data truncated", nil)
	}
	if len(fds) != 1 {
		closeAll(fds)
		return -1, newError(CodeMalformed, "expected exactly one descriptor", nil)
	}
	if buf[0] != Marker {
		closeAll(fds)
		return -1, newError(CodeMalformed, "unexpected payload byte", nil)
	}

	return fds[0], nil
}

func parseRights(oob []byte) ([]int, error) {
	if len(oob) == 0 {
		return nil, nil
	}
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, err
	}

	var fds []int
	var firstErr error
	for i := range msgs {
		if msgs[i].Header.Level != unix.SOL_SOCKET || msgs[i].Header.Type != unix.SCM_RIGHTS {
			continue
		}
		got, err := unix.ParseUnixRights(&msgs[i])
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		fds = append(fds, got...)
	}
	return fds, firstErr
}

func closeAll(fds []int) {
	for _, fd := range fds {
		_ = unix.Close(fd)
	}
}

func isDisconnect(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
