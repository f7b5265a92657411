package notestream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"rollupclient/coretypes"
)

// fakePushServer upgrades every connection, reads one subscribe message,
// then immediately pushes a notification for the first subscribed tag -
// enough to exercise Dial and WatchNoteTags end to end without a real node.
func fakePushServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var sub subscribeMessage
		if err := conn.ReadJSON(&sub); err != nil {
			t.Errorf("read subscribe: %v", err)
			return
		}
		if len(sub.Tags) == 0 {
			t.Errorf("expected at least one subscribed tag")
			return
		}
		if err := conn.WriteJSON(pushMessage{Tag: sub.Tags[0]}); err != nil {
			t.Errorf("write push: %v", err)
		}
	}))
}

func TestWatchNoteTagsReceivesAPushedTag(t *testing.T) {
	srv := fakePushServer(t)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	w, err := Dial(ctx, url, []coretypes.NoteTag{coretypes.NoteTag(42)})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer w.Close()

	select {
	case tag, ok := <-w.WatchNoteTags(ctx):
		if !ok {
			t.Fatal("channel closed before a push arrived")
		}
		if tag != coretypes.NoteTag(42) {
			t.Fatalf("got tag %d, want 42", tag)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for a pushed tag")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	srv := fakePushServer(t)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	w, err := Dial(ctx, url, []coretypes.NoteTag{coretypes.NoteTag(1)})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
