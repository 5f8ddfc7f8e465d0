package notify

import (
	"encoding/json"
	"testing"
	"time"
)

func receive(t *testing.T, l *Listener) Envelope {
	t.Helper()
	select {
	case env, ok := <-l.C:
		if !ok {
			t.Fatal("listener channel closed")
		}
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
	}
	return Envelope{}
}

func TestHubBroadcastsToAllListeners(t *testing.T) {
	hub := NewHub(4, nil)
	a := hub.Subscribe()
	b := hub.Subscribe()

	hub.Emit(Processing(KindAudio, 0.5, "Processing audio with Whisper..."))

	for _, l := range []*Listener{a, b} {
		env := receive(t, l)
		if env.Event != EventProcessingUpdate {
			t.Fatalf("event = %q, want %q", env.Event, EventProcessingUpdate)
		}
		var e Event
		if err := json.Unmarshal(env.Data, &e); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if e.Type != KindAudio || e.Status != StatusProcessing || e.Progress == nil || *e.Progress != 0.5 {
			t.Fatalf("unexpected event %+v", e)
		}
	}
}

func TestHubErrorEnvelopeIsBareString(t *testing.T) {
	hub := NewHub(1, nil)
	l := hub.Subscribe()

	hub.EmitError("Only audio files are allowed")

	env := receive(t, l)
	if env.Event != EventError {
		t.Fatalf("event = %q, want error", env.Event)
	}
	if string(env.Data) != `"Only audio files are allowed"` {
		t.Fatalf("data = %s", env.Data)
	}
}

func TestHubHasNoReplay(t *testing.T) {
	hub := NewHub(4, nil)
	hub.Emit(Started(KindLLM, "Generating response"))

	late := hub.Subscribe()
	select {
	case env := <-late.C:
		t.Fatalf("late listener received %+v", env)
	default:
	}
}

func TestHubDropsForSlowListenerWithoutBlocking(t *testing.T) {
	hub := NewHub(1, nil)
	slow := hub.Subscribe()
	fast := hub.Subscribe()

	done := make(chan struct{})
	go func() {
		hub.Emit(Started(KindImage, "Starting OCR processing"))
		hub.Emit(Completed(KindImage, "OCR processing complete"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full listener")
	}

	if got := len(slow.C); got != 1 {
		t.Fatalf("slow listener buffered %d envelopes, want 1", got)
	}
	receive(t, fast)
}

func TestUnsubscribeClosesAndForgetsListener(t *testing.T) {
	hub := NewHub(1, nil)
	l := hub.Subscribe()
	if hub.Count() != 1 {
		t.Fatalf("count = %d, want 1", hub.Count())
	}

	hub.Unsubscribe(l)
	hub.Unsubscribe(l)

	if hub.Count() != 0 {
		t.Fatalf("count = %d, want 0", hub.Count())
	}
	if _, ok := <-l.C; ok {
		t.Fatal("expected closed channel")
	}
	hub.Emit(Completed(KindAudio, "Speech recognition complete"))
}

func TestRecorderKeepsOrder(t *testing.T) {
	var r Recorder
	r.Emit(Started(KindAudio, "a"))
	r.Emit(Processing(KindAudio, 0.5, "b"))
	r.Emit(Completed(KindAudio, "c"))
	r.EmitError("boom")

	want := []Status{StatusStarted, StatusProcessing, StatusCompleted}
	got := r.Statuses()
	if len(got) != len(want) {
		t.Fatalf("statuses = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("statuses = %v, want %v", got, want)
		}
	}
	if errs := r.Errors(); len(errs) != 1 || errs[0] != "boom" {
		t.Fatalf("errors = %v", errs)
	}
}
