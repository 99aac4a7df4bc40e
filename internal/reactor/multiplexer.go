//go:build darwin || linux

package reactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	"golang.org/x/sys/unix"
)

// DefaultChunkSize is the number of bytes requested per read call.
const DefaultChunkSize = 4096

// Multiplexer errors.
var (
	// ErrAlreadyRegistered is returned when a file descriptor that is
	// already tracked is registered again.
	ErrAlreadyRegistered = errors.New("socket already registered")
	// ErrClosed is returned when using a Multiplexer after Close.
	ErrClosed = errors.New("multiplexer closed")
	// ErrNilCallback is returned when registering a socket without a callback.
	ErrNilCallback = errors.New("callback cannot be nil")
)

// Callback receives the complete contents read from a socket.
//
// err is nil when the peer closed the stream cleanly. Otherwise it is the
// read error that ended the stream, and buf holds whatever arrived before
// it. The socket is already closed when the callback runs.
type Callback func(buf []byte, err error)

// entry is one tracked socket.
type entry struct {
	sock *Socket
	buf  []byte
	cb   Callback
	done bool

	// connecting is true until a non-blocking connect has been confirmed.
	connecting bool

	// out holds request bytes not yet written. The socket is polled for
	// writability while connecting or while out is non-empty.
	out []byte
}

// writing reports whether e waits for writability rather than data.
func (e *entry) writing() bool {
	return e.connecting || len(e.out) > 0
}

// Multiplexer waits on many sockets from a single goroutine.
//
// Register and Run must be called from the same goroutine; callbacks run on
// that goroutine too, so state they share needs no locking.
type Multiplexer struct {
	// chunkSize is the size of each read.
	chunkSize int

	// logger receives debug events. Defaults to a discarding logger.
	logger *slog.Logger

	// entries holds tracked sockets in registration order.
	entries []*entry

	// byFd indexes entries by file descriptor.
	byFd map[int]*entry

	// chunk is the scratch buffer reads land in.
	chunk []byte

	// wakeR and wakeW are the ends of the self-pipe used to interrupt
	// poll when the context of Run is cancelled.
	wakeR int
	wakeW int

	// wakeMu guards wakeW against a late wake racing Close.
	wakeMu     sync.Mutex
	pipeClosed bool

	closed bool
}

// Option configures a Multiplexer.
type Option func(*Multiplexer)

// WithChunkSize sets how many bytes are requested per read.
// Values below 1 are ignored.
func WithChunkSize(n int) Option {
	return func(m *Multiplexer) {
		if n > 0 {
			m.chunkSize = n
		}
	}
}

// WithLogger sets the logger for debug events.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Multiplexer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates an empty Multiplexer.
func New(opts ...Option) (*Multiplexer, error) {
	m := &Multiplexer{
		chunkSize: DefaultChunkSize,
		logger:    slog.New(slog.DiscardHandler),
		entries:   make([]*entry, 0),
		byFd:      make(map[int]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.chunk = make([]byte, m.chunkSize)

	p := make([]int, 2)
	if err := unix.Pipe(p); err != nil {
		return nil, os.NewSyscallError("pipe", err)
	}
	for _, fd := range p {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(p[0])
			_ = unix.Close(p[1])
			return nil, os.NewSyscallError("setnonblock", err)
		}
	}
	m.wakeR, m.wakeW = p[0], p[1]
	return m, nil
}

// Register starts tracking sock. The socket is switched to non-blocking
// mode and begins with an empty buffer.
//
// Register may be called from inside a callback. The new socket joins the
// poll set on the next iteration of Run.
func (m *Multiplexer) Register(sock *Socket, cb Callback) error {
	return m.track(sock, nil, cb)
}

// Send tracks sock like Register and first writes data to it from inside
// Run, as the socket becomes writable. A socket returned by Dial while its
// connect is still in progress is confirmed before anything is written; a
// failed connect or write completes the socket with that error.
func (m *Multiplexer) Send(sock *Socket, data []byte, cb Callback) error {
	return m.track(sock, data, cb)
}

func (m *Multiplexer) track(sock *Socket, data []byte, cb Callback) error {
	if m.closed {
		return ErrClosed
	}
	if cb == nil {
		return ErrNilCallback
	}
	if _, ok := m.byFd[sock.Fd()]; ok {
		return fmt.Errorf("fd %d: %w", sock.Fd(), ErrAlreadyRegistered)
	}
	if err := sock.SetNonblock(); err != nil {
		return fmt.Errorf("register fd %d: %w", sock.Fd(), err)
	}

	e := &entry{
		sock:       sock,
		buf:        make([]byte, 0),
		cb:         cb,
		connecting: sock.connecting,
	}
	if len(data) > 0 {
		e.out = append([]byte(nil), data...)
	}
	m.entries = append(m.entries, e)
	m.byFd[sock.Fd()] = e
	return nil
}

// Len returns the number of tracked sockets.
func (m *Multiplexer) Len() int {
	return len(m.entries)
}

// Run services tracked sockets until none are left.
//
// It returns nil once the tracked set is empty, ctx.Err() when ctx is
// cancelled first, and a non-nil error if poll itself fails. Sockets that
// are still tracked when Run returns early stay tracked; Close releases
// them.
func (m *Multiplexer) Run(ctx context.Context) error {
	if m.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, m.wake)
	defer stop()

	fds := make([]unix.PollFd, 0, len(m.entries)+1)
	polled := make([]*entry, 0, len(m.entries))
	for len(m.entries) > 0 {
		fds = append(fds[:0], unix.PollFd{Fd: int32(m.wakeR), Events: unix.POLLIN})
		polled = append(polled[:0], m.entries...)
		for _, e := range polled {
			events := int16(unix.POLLIN)
			if e.writing() {
				events = unix.POLLOUT
			}
			fds = append(fds, unix.PollFd{Fd: int32(e.sock.Fd()), Events: events})
		}

		if _, err := unix.Poll(fds, -1); err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return os.NewSyscallError("poll", err)
		}

		if fds[0].Revents != 0 {
			m.drainWake()
			if err := ctx.Err(); err != nil {
				m.logger.Debug("multiplexer interrupted", "tracked", len(m.entries))
				return err
			}
		}

		for i, e := range polled {
			if fds[i+1].Revents == 0 || e.done {
				continue
			}
			if e.writing() {
				m.flush(e)
				continue
			}
			m.service(e)
		}
	}
	return nil
}

// flush confirms a pending connect and writes queued bytes until the send
// buffer is full or everything is out.
func (m *Multiplexer) flush(e *entry) {
	if e.connecting {
		if err := connectError(e.sock.Fd()); err != nil {
			m.complete(e, err)
			return
		}
		e.connecting = false
		e.sock.connecting = false
	}
	for len(e.out) > 0 {
		n, err := e.sock.Write(e.out)
		if n > 0 {
			e.out = e.out[n:]
		}
		switch {
		case err == nil:
		case errors.Is(err, unix.EINTR):
		case errors.Is(err, unix.EAGAIN):
			return
		default:
			m.complete(e, os.NewSyscallError("write", err))
			return
		}
	}
	e.out = nil
}

// service drains a ready socket until it would block, ends or fails.
func (m *Multiplexer) service(e *entry) {
	for {
		n, err := e.sock.Read(m.chunk)
		if n > 0 {
			e.buf = append(e.buf, m.chunk[:n]...)
		}
		switch {
		case err == nil && n == 0:
			m.complete(e, nil)
			return
		case err == nil:
		case errors.Is(err, unix.EINTR):
		case errors.Is(err, unix.EAGAIN):
			return
		default:
			m.complete(e, os.NewSyscallError("read", err))
			return
		}
	}
}

// complete removes e, closes its socket and runs its callback.
func (m *Multiplexer) complete(e *entry, err error) {
	fd := e.sock.Fd()
	e.done = true
	if i := slices.Index(m.entries, e); i >= 0 {
		m.entries = slices.Delete(m.entries, i, i+1)
	}
	delete(m.byFd, fd)

	if cerr := e.sock.Close(); cerr != nil {
		m.logger.Debug("close failed", "fd", fd, "error", cerr)
	}
	m.logger.Debug("socket complete", "fd", fd, "bytes", len(e.buf), "error", err)
	e.cb(e.buf, err)
}

// wake interrupts a blocked poll. It runs on the context's AfterFunc
// goroutine and touches nothing but the pipe.
func (m *Multiplexer) wake() {
	m.wakeMu.Lock()
	defer m.wakeMu.Unlock()
	if m.pipeClosed {
		return
	}
	_, _ = unix.Write(m.wakeW, []byte{0})
}

func (m *Multiplexer) drainWake() {
	var b [16]byte
	for {
		n, err := unix.Read(m.wakeR, b[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// Close closes every tracked socket and the internal pipe.
// Callbacks of sockets still tracked are not invoked.
func (m *Multiplexer) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	for _, e := range m.entries {
		e.done = true
		if err := e.sock.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.entries = nil
	clear(m.byFd)

	m.wakeMu.Lock()
	m.pipeClosed = true
	if err := unix.Close(m.wakeR); err != nil {
		errs = append(errs, os.NewSyscallError("close", err))
	}
	if err := unix.Close(m.wakeW); err != nil {
		errs = append(errs, os.NewSyscallError("close", err))
	}
	m.wakeMu.Unlock()
	return errors.Join(errs...)
}
