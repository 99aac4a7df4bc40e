//go:build darwin || linux

package reactor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// ErrNoAddress is returned when a host name resolves to no usable address.
var ErrNoAddress = errors.New("no address for host")

// Dial resolves host and starts a non-blocking TCP connection to port.
//
// ctx bounds the name lookup. The connect never blocks: errors the kernel
// reports at once, such as a failed lookup or an immediately refused port,
// are returned here. Otherwise the Socket comes back still connecting and a
// Multiplexer finishes the handshake, reporting a late failure through the
// socket's callback. Resolved addresses are tried in order until one is
// accepted or in progress.
func Dial(ctx context.Context, host string, port int) (*Socket, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("dial %s: %w", addr, ErrNoAddress)
	}

	var lastErr error
	for _, ip := range ips {
		sock, err := connect(ip.IP, port)
		if err == nil {
			return sock, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("dial %s: %w", addr, lastErr)
}

func connect(ip net.IP, port int) (*Socket, error) {
	domain, sa := sockaddr(ip, port)

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("setnonblock", err)
	}

	sock := NewSocket(fd)
	switch err := unix.Connect(fd, sa); {
	case err == nil:
	case errors.Is(err, unix.EINPROGRESS), errors.Is(err, unix.EINTR):
		// The handshake continues in the kernel.
		sock.connecting = true
	default:
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("connect", err)
	}
	return sock, nil
}

func sockaddr(ip net.IP, port int) (int, unix.Sockaddr) {
	if ip4 := ip.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], ip4)
		return unix.AF_INET, sa
	}
	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip.To16())
	return unix.AF_INET6, sa
}

// connectError returns the outcome of a non-blocking connect once fd has
// polled writable.
func connectError(fd int) error {
	soErr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return os.NewSyscallError("getsockopt", err)
	}
	if soErr != 0 {
		return os.NewSyscallError("connect", unix.Errno(soErr))
	}
	return nil
}
