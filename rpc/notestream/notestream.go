// Package notestream is an optional enrichment over the poll-based
// sync_state loop spec.md §6 defines: a node that also runs a tag
// push-notification endpoint can notify a watching client the moment a
// block touching one of its subscribed tags lands, instead of the client
// having to poll sync_state on a fixed interval. It never replaces
// sync_state - a push is only a hint to sync sooner, and the client still
// calls sync_state to get (and verify) the actual delta.
package notestream

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"rollupclient/coretypes"
)

// subscribeMessage is sent once after dialing to tell the node which tags
// this connection cares about.
type subscribeMessage struct {
	Tags []uint32 `json:"tags"`
}

// pushMessage is what the node sends back whenever a committed block
// touches one of the subscribed tags.
type pushMessage struct {
	Tag uint32 `json:"tag"`
}

// Watcher holds one subscribed websocket connection to a node's note-tag
// push endpoint.
type Watcher struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

// Dial opens a websocket connection to url (e.g. "ws://node:8080/note-tags")
// and subscribes to tags. The returned Watcher must be closed by the caller.
func Dial(ctx context.Context, url string, tags []coretypes.NoteTag) (*Watcher, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("notestream: Dial: %w", err)
	}

	wireTags := make([]uint32, len(tags))
	for i, t := range tags {
		wireTags[i] = uint32(t)
	}
	if err := conn.WriteJSON(subscribeMessage{Tags: wireTags}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("notestream: Dial: subscribe: %w", err)
	}
	return &Watcher{conn: conn}, nil
}

// WatchNoteTags returns a channel that receives a tag every time the node
// pushes a notification for it. The channel is closed when the connection
// drops or the Watcher is closed; the caller should treat that as a signal
// to fall back to polling sync_state, not as a fatal error.
func (w *Watcher) WatchNoteTags(ctx context.Context) <-chan coretypes.NoteTag {
	out := make(chan coretypes.NoteTag)
	go func() {
		defer close(out)
		for {
			var msg pushMessage
			if err := w.conn.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case out <- coretypes.NoteTag(msg.Tag):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Close releases the underlying connection. Safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.conn.Close()
}
