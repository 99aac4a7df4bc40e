//go:build darwin || linux

package reactor

import (
	"os"

	"golang.org/x/sys/unix"
)

// Socket owns one stream file descriptor.
// A Socket is not safe for concurrent use.
type Socket struct {
	fd     int
	closed bool

	// connecting is set by Dial while a non-blocking connect is in progress.
	connecting bool
}

// NewSocket wraps an already connected file descriptor.
// The Socket takes ownership of fd and closes it on Close.
func NewSocket(fd int) *Socket {
	return &Socket{fd: fd}
}

// Fd returns the underlying file descriptor.
func (s *Socket) Fd() int {
	return s.fd
}

// Read reads up to len(p) bytes. On a non-blocking socket with nothing to
// read it returns unix.EAGAIN.
func (s *Socket) Read(p []byte) (int, error) {
	n, err := unix.Read(s.fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

// Write writes as much of p as the socket accepts in one call. On a
// non-blocking socket with a full send buffer, or one still connecting, it
// returns unix.EAGAIN.
func (s *Socket) Write(p []byte) (int, error) {
	n, err := unix.Write(s.fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

// SetNonblock switches the socket to non-blocking mode.
func (s *Socket) SetNonblock() error {
	if err := unix.SetNonblock(s.fd, true); err != nil {
		return os.NewSyscallError("setnonblock", err)
	}
	return nil
}

// Close closes the file descriptor. Calling Close more than once is a no-op.
func (s *Socket) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := unix.Close(s.fd); err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}
