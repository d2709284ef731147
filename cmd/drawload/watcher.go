package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/secretsanta/giftdraw/internal/protocol"
)

// watcher is one reveal WebSocket connection watching a single reveal code.
type watcher struct {
	conn net.Conn
	r    io.Reader

	watching chan struct{}  // closed once the server confirms the watch
	assigned chan time.Time // receives the arrival time of the assignment

	done      chan struct{}
	closeOnce sync.Once
	watchOnce sync.Once
}

// dialWatcher connects to url and asks to watch token. The read loop starts
// immediately.
func dialWatcher(ctx context.Context, url, token string) (*watcher, error) {
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	w := &watcher{
		conn:     conn,
		r:        conn,
		watching: make(chan struct{}),
		assigned: make(chan time.Time, 1),
		done:     make(chan struct{}),
	}
	// The server writes "connected" right after the handshake, so it may
	// already sit in the handshake buffer.
	if br != nil {
		w.r = br
	}

	go w.readLoop()

	data, err := json.Marshal(protocol.WatchMsg{Type: protocol.TypeWatch, Token: token})
	if err != nil {
		w.Close()
		return nil, err
	}
	if err := wsutil.WriteClientMessage(conn, ws.OpText, data); err != nil {
		w.Close()
		return nil, fmt.Errorf("send watch: %w", err)
	}
	return w, nil
}

// Close closes the connection and stops the read loop. It is safe to call
// multiple times.
func (w *watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.conn.Close()
	})
	return err
}

// WaitWatching blocks until the watch is confirmed.
func (w *watcher) WaitWatching(ctx context.Context) error {
	select {
	case <-w.watching:
		return nil
	case <-w.done:
		return fmt.Errorf("connection closed before watch was confirmed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitAssigned returns the arrival time of the assignment.
func (w *watcher) WaitAssigned(ctx context.Context) (time.Time, error) {
	select {
	case at := <-w.assigned:
		return at, nil
	case <-w.done:
		return time.Time{}, fmt.Errorf("connection closed before assignment arrived")
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	}
}

func (w *watcher) readLoop() {
	rw := struct {
		io.Reader
		io.Writer
	}{w.r, w.conn}

	for {
		data, err := wsutil.ReadServerText(rw)
		if err != nil {
			w.Close()
			return
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			continue
		}

		switch envelope.Type {
		case protocol.TypeWatching:
			w.watchOnce.Do(func() { close(w.watching) })
		case protocol.TypeAssignment:
			select {
			case w.assigned <- time.Now():
			default:
				// A replayed and a live copy of the same reveal may both
				// arrive; the first one counts.
			}
		}
	}
}
