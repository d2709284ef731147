//go:build !linux

package ws

import (
	"bufio"
	"io"
	"net"
	"sync"
)

// Epoll is the portable fallback for platforms without epoll. Each
// connection gets a monitor goroutine that peeks one byte through a buffered
// reader, reports the connection as ready and waits until the worker has
// read the frame before peeking again. Nothing is consumed ahead of the
// worker because the worker reads through the same buffered reader.
type Epoll struct {
	mu      sync.RWMutex
	conns   map[net.Conn]*watched
	readyCh chan net.Conn
	done    chan struct{}
}

type watched struct {
	r      *bufio.Reader
	resume chan struct{} // capacity 1
	gone   chan struct{} // closed by Remove
}

// NewEpoll creates a fallback poller.
func NewEpoll() (*Epoll, error) {
	return &Epoll{
		conns:   make(map[net.Conn]*watched),
		readyCh: make(chan net.Conn, 128),
		done:    make(chan struct{}),
	}, nil
}

// Add starts monitoring conn.
func (e *Epoll) Add(conn net.Conn) error {
	w := &watched{
		r:      bufio.NewReader(conn),
		resume: make(chan struct{}, 1),
		gone:   make(chan struct{}),
	}

	e.mu.Lock()
	e.conns[conn] = w
	e.mu.Unlock()

	go e.monitor(conn, w)
	return nil
}

func (e *Epoll) monitor(conn net.Conn, w *watched) {
	for {
		_, err := w.r.Peek(1)

		// Closed connections are reported too so the worker's read fails
		// and removes them.
		select {
		case e.readyCh <- conn:
		case <-w.gone:
			return
		case <-e.done:
			return
		}
		if err != nil {
			return
		}

		select {
		case <-w.resume:
		case <-w.gone:
			return
		case <-e.done:
			return
		}
	}
}

// Reader returns the buffered reader the monitor peeks through.
func (e *Epoll) Reader(conn net.Conn) io.Reader {
	e.mu.RLock()
	w, ok := e.conns[conn]
	e.mu.RUnlock()
	if !ok {
		return conn
	}
	return w.r
}

// Resume lets the monitor of conn wait for the next frame.
func (e *Epoll) Resume(conn net.Conn) {
	e.mu.RLock()
	w, ok := e.conns[conn]
	e.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case w.resume <- struct{}{}:
	default:
	}
}

// Remove stops monitoring conn.
func (e *Epoll) Remove(conn net.Conn) error {
	e.mu.Lock()
	w, ok := e.conns[conn]
	delete(e.conns, conn)
	e.mu.Unlock()
	if ok {
		close(w.gone)
	}
	return nil
}

// Wait blocks until at least one connection is ready and returns every
// connection ready at that moment.
func (e *Epoll) Wait() ([]net.Conn, error) {
	var first net.Conn
	select {
	case first = <-e.readyCh:
	case <-e.done:
		return nil, net.ErrClosed
	}

	conns := []net.Conn{first}
	for {
		select {
		case conn := <-e.readyCh:
			conns = append(conns, conn)
		default:
			return conns, nil
		}
	}
}

// Close stops all monitors.
func (e *Epoll) Close() error {
	close(e.done)
	e.mu.Lock()
	e.conns = make(map[net.Conn]*watched)
	e.mu.Unlock()
	return nil
}

// socketFD is unused without epoll.
func socketFD(net.Conn) int {
	return -1
}
