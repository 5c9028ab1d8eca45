package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
)

func startHub(t *testing.T, opts ...HubOption) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil, opts...)
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *gws.Conn {
	t.Helper()
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Clients() = %d, want %d", hub.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readMessage(t *testing.T, conn *gws.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

func TestHub_BroadcastsToAllClients(t *testing.T) {
	hub, url := startHub(t)
	a := dial(t, url)
	b := dial(t, url)
	waitClients(t, hub, 2)

	hub.Notify(WindowCloseRequested, nil)

	for _, conn := range []*gws.Conn{a, b} {
		msg := readMessage(t, conn)
		if msg.Event != WindowCloseRequested {
			t.Errorf("Event = %q, want %q", msg.Event, WindowCloseRequested)
		}
		if msg.Payload != nil {
			t.Errorf("Payload = %v, want none", msg.Payload)
		}
		if msg.Seq != 1 {
			t.Errorf("Seq = %d, want 1", msg.Seq)
		}
	}
}

func TestHub_PayloadAndOrdering(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	waitClients(t, hub, 1)

	hub.Notify(FileSaved, map[string]string{"path": "/tmp/a.txt"})
	hub.Notify(FileSaved, map[string]string{"path": "/tmp/b.txt"})

	first := readMessage(t, conn)
	second := readMessage(t, conn)
	if first.Seq >= second.Seq {
		t.Errorf("sequence not increasing: %d then %d", first.Seq, second.Seq)
	}
	payload, ok := second.Payload.(map[string]any)
	if !ok || payload["path"] != "/tmp/b.txt" {
		t.Errorf("Payload = %#v", second.Payload)
	}
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	waitClients(t, hub, 1)

	conn.Close()
	waitClients(t, hub, 0)

	// Notifying with no clients must not block.
	hub.Notify(WindowCloseRequested, nil)
}

func TestHub_EnqueueAfterCloseDoesNotPanic(t *testing.T) {
	hub := NewHub(nil)
	c := &client{id: "c", send: make(chan []byte, 1), closed: make(chan struct{}), hub: hub}
	close(c.closed)

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("enqueue panicked: %v", r)
		}
	}()
	hub.enqueue(c, []byte("payload"))
	if len(c.send) != 0 {
		t.Error("closed client should not receive frames")
	}
}

func TestHub_EnqueueDropsOldestWhenFull(t *testing.T) {
	hub := NewHub(nil)
	c := &client{id: "c", send: make(chan []byte, 2), closed: make(chan struct{}), hub: hub}
	c.send <- []byte("older")
	c.send <- []byte("newer")

	hub.enqueue(c, []byte("latest"))

	if got := string(<-c.send); got != "newer" {
		t.Fatalf("first = %q, want newer", got)
	}
	if got := string(<-c.send); got != "latest" {
		t.Fatalf("second = %q, want latest", got)
	}
}

func TestHub_NotifyDoesNotBlockWithoutRun(t *testing.T) {
	hub := NewHub(nil)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Notify(FileSaved, i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked with a full queue")
	}
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	hub, url := startHub(t, WithAllowedOrigins("http://localhost:5173/"))

	header := http.Header{"Origin": {"https://evil.example"}}
	conn, resp, err := gws.DefaultDialer.Dial(url, header)
	if err == nil {
		conn.Close()
		t.Fatal("foreign origin was upgraded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
	if n := hub.Clients(); n != 0 {
		t.Errorf("Clients() = %d, want 0", n)
	}
}

func TestHub_AcceptsAllowedAndSameOrigin(t *testing.T) {
	hub, url := startHub(t, WithAllowedOrigins("http://localhost:5173/"))

	allowed := http.Header{"Origin": {"http://localhost:5173"}}
	conn, _, err := gws.DefaultDialer.Dial(url, allowed)
	if err != nil {
		t.Fatalf("allowed origin: %v", err)
	}
	defer conn.Close()

	same := http.Header{"Origin": {"http" + strings.TrimPrefix(url, "ws")}}
	conn2, _, err := gws.DefaultDialer.Dial(url, same)
	if err != nil {
		t.Fatalf("same origin: %v", err)
	}
	defer conn2.Close()

	waitClients(t, hub, 2)
}
