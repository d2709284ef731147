//go:build linux

package ws

import (
	"errors"
	"io"
	"net"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// waitTimeoutMs bounds each epoll_wait so the event loop notices shutdown
// even when no watcher sends anything.
const waitTimeoutMs = 250

var errNoFD = errors.New("ws: connection exposes no file descriptor")

// Epoll wraps Linux epoll so that idle reveal watchers cost a file descriptor
// instead of a blocked goroutine. The kernel reports which watchers have data
// and only those are handed to read workers.
type Epoll struct {
	epfd   int
	mu     sync.RWMutex
	byFD   map[int]net.Conn
	events []unix.EpollEvent
	closed bool
}

// NewEpoll creates an epoll instance.
func NewEpoll() (*Epoll, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &Epoll{
		epfd:   epfd,
		byFD:   make(map[int]net.Conn),
		events: make([]unix.EpollEvent, 128),
	}, nil
}

// Add registers conn for read readiness. Peer shutdowns (RDHUP, HUP, ERR) are
// reported as readiness too so the worker's read fails and removes conn.
func (e *Epoll) Add(conn net.Conn) error {
	fd := socketFD(conn)
	if fd < 0 {
		return errNoFD
	}

	ev := &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLHUP | unix.EPOLLERR,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(e.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return err
	}

	e.mu.Lock()
	e.byFD[fd] = conn
	e.mu.Unlock()
	return nil
}

// Remove unregisters conn. The kernel drops closed descriptors from the
// interest list on its own, so EBADF and ENOENT are not errors.
func (e *Epoll) Remove(conn net.Conn) error {
	fd := socketFD(conn)

	e.mu.Lock()
	if c, ok := e.byFD[fd]; ok && c == conn {
		delete(e.byFD, fd)
	} else {
		// Already closed locally, so the descriptor is gone.
		fd = -1
		for k, c := range e.byFD {
			if c == conn {
				delete(e.byFD, k)
				break
			}
		}
	}
	e.mu.Unlock()

	if fd < 0 {
		return nil
	}
	err := unix.EpollCtl(e.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if errors.Is(err, unix.EBADF) || errors.Is(err, unix.ENOENT) {
		return nil
	}
	return err
}

// Wait returns the connections with pending data. It returns an empty slice
// when the wait times out or is interrupted, and net.ErrClosed after Close.
func (e *Epoll) Wait() ([]net.Conn, error) {
	n, err := unix.EpollWait(e.epfd, e.events, waitTimeoutMs)
	if errors.Is(err, unix.EINTR) {
		return nil, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, net.ErrClosed
	}
	if err != nil {
		return nil, err
	}

	ready := make([]net.Conn, 0, n)
	for _, ev := range e.events[:n] {
		// Removed between epoll_wait and the lookup.
		if conn, ok := e.byFD[int(ev.Fd)]; ok {
			ready = append(ready, conn)
		}
	}
	return ready, nil
}

// Reader returns conn itself: with epoll nothing is consumed ahead of the
// worker.
func (e *Epoll) Reader(conn net.Conn) io.Reader {
	return conn
}

// Resume is a no-op. Epoll is level-triggered and keeps reporting conn while
// unread data remains.
func (e *Epoll) Resume(net.Conn) {}

// Close releases the epoll descriptor. A Wait in progress returns within
// waitTimeoutMs.
func (e *Epoll) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.byFD = nil
	return unix.Close(e.epfd)
}

// socketFD returns the descriptor behind conn without dup'ing it (File()
// would), or -1.
func socketFD(conn net.Conn) int {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return -1
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1
	}

	fd := -1
	if err := raw.Control(func(sfd uintptr) { fd = int(sfd) }); err != nil {
		return -1
	}
	return fd
}
