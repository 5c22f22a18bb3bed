package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHubDropsDeadClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	serverConns := make(chan *websocket.Conn, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(conn, "")
		serverConns <- conn
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	live, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial live client: %v", err)
	}
	defer live.Close()
	<-serverConns

	doomed, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial doomed client: %v", err)
	}
	defer doomed.Close()

	// Close the second client's server side so the next write fails.
	(<-serverConns).Close()

	hub.Broadcast(Event{Type: "task:created", Payload: map[string]any{"task_id": "t1"}})

	live.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := live.ReadMessage()
	if err != nil {
		t.Fatalf("read on live client: %v", err)
	}
	var got Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if got.Type != "task:created" {
		t.Errorf("expected task:created frame, got %s", got.Type)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.RLock()
		n := len(hub.clients)
		hub.mu.RUnlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected dead client removed, still %d clients", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
