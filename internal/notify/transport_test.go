package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	redis "github.com/redis/go-redis/v9"
)

func waitForListeners(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("listeners = %d, want %d", hub.Count(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSSEHandlerStreamsEvents(t *testing.T) {
	hub := NewHub(4, nil)
	srv := httptest.NewServer(SSEHandler(hub))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q", ct)
	}

	waitForListeners(t, hub, 1)
	hub.Emit(Started(KindAudio, "Starting speech recognition with Whisper"))

	reader := bufio.NewReader(resp.Body)
	var eventLine, dataLine string
	for dataLine == "" {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		switch {
		case strings.HasPrefix(line, "event: "):
			eventLine = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			dataLine = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}

	if eventLine != EventProcessingUpdate {
		t.Fatalf("event = %q", eventLine)
	}
	var e Event
	if err := json.Unmarshal([]byte(dataLine), &e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Status != StatusStarted || e.Type != KindAudio {
		t.Fatalf("unexpected event %+v", e)
	}
}

func TestWebSocketHandlerStreamsAndForgetsListener(t *testing.T) {
	hub := NewHub(4, nil)
	srv := httptest.NewServer(WebSocketHandler(hub, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	waitForListeners(t, hub, 1)
	hub.EmitError("An unexpected error occurred")

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	if env.Event != EventError || string(env.Data) != `"An unexpected error occurred"` {
		t.Fatalf("unexpected envelope %s %s", env.Event, env.Data)
	}

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("listener not removed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRelayMessageOriginFilter(t *testing.T) {
	env := newEnvelope(EventProcessingUpdate, Completed(KindLLM, "Response generated"))
	payload, err := encodeRelayMessage("node-a", env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, foreign, err := decodeRelayMessage(string(payload), "node-a")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if foreign {
		t.Fatal("own message reported as foreign")
	}
	if got.Event != env.Event || string(got.Data) != string(env.Data) {
		t.Fatalf("envelope = %+v, want %+v", got, env)
	}

	if _, foreign, _ := decodeRelayMessage(string(payload), "node-b"); !foreign {
		t.Fatal("message from another node should be foreign")
	}
	if _, _, err := decodeRelayMessage("{", "node-a"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRelayEmitReachesLocalHubImmediately(t *testing.T) {
	hub := NewHub(2, nil)
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	relay := newRedisRelay(hub, client, "events", nil)

	l := hub.Subscribe()
	relay.Emit(Started(KindImage, "Starting OCR processing"))

	env := receive(t, l)
	if env.Event != EventProcessingUpdate {
		t.Fatalf("event = %q", env.Event)
	}
	if len(relay.outbox) != 1 {
		t.Fatalf("outbox = %d, want 1", len(relay.outbox))
	}
}

func TestRelayDegradesToLocalHubWhenRedisIsDown(t *testing.T) {
	hub := NewHub(2, nil)
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	relay := newRedisRelay(hub, client, "events", nil)

	done := make(chan struct{})
	go func() {
		relay.Serve(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after redis ping failed")
	}

	l := hub.Subscribe()
	relay.EmitError("Only image files are allowed")
	if env := receive(t, l); env.Event != EventError {
		t.Fatalf("event = %q", env.Event)
	}
	if len(relay.outbox) != 0 {
		t.Fatalf("outbox = %d, want 0 once redis is down", len(relay.outbox))
	}
}
