package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"voicevision-tutor/internal/apperr"
	"voicevision-tutor/internal/llm"
)

func TestChatSendsNonStreamingRequest(t *testing.T) {
	var got chatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"message":{"role":"assistant","content":"Gravity pulls."},"done":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "llama3", time.Second)
	reply, err := c.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
		{Role: llm.RoleUser, Content: "why do apples fall"},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if reply != "Gravity pulls." {
		t.Fatalf("reply = %q", reply)
	}
	if got.Model != "llama3" || got.Stream || len(got.Messages) != 2 || got.Messages[1].Content != "why do apples fall" {
		t.Fatalf("request = %+v", got)
	}
}

func TestChatMissingMessageIsInvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"done":true}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "llama3", time.Second).Chat(context.Background(), nil)
	if apperr.KindOf(err) != apperr.KindInvalidUpstreamResponse {
		t.Fatalf("err = %v, want invalid upstream response", err)
	}
	if err.Error() != "Invalid response from LLM service" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestChatErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model 'llama3' not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "llama3", time.Second).Chat(context.Background(), nil)
	if apperr.KindOf(err) != apperr.KindExternalTool {
		t.Fatalf("err = %v, want external tool error", err)
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"models":[{"name":"llama3:latest"},{"name":"mistral:7b"}]}`))
	}))
	defer srv.Close()

	models, err := NewClient(srv.URL, "llama3", time.Second).ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 2 || models[0] != "llama3:latest" {
		t.Fatalf("models = %v", models)
	}
}

func TestListModelsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := NewClient(url, "llama3", time.Second).ListModels(context.Background()); err == nil {
		t.Fatal("expected error for closed server")
	}
}
