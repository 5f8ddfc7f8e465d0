package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"

	"voicevision-tutor/internal/apperr"
)

const fallbackMessage = "An unexpected error occurred"

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Stack   string `json:"stack,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}

// fail is the global error path: anything that escapes a pipeline is logged,
// broadcast to listeners, and answered with the taxonomy status. The stack is
// only exposed in development.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, stack []byte) {
	msg := apperr.PublicMessage(err, fallbackMessage)
	h.logger.Error("server error",
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
	)
	h.notifier.EmitError(msg)

	resp := errorResponse{Success: false, Error: msg}
	if h.cfg.IsDevelopment() {
		if stack == nil {
			stack = debug.Stack()
		}
		resp.Stack = string(stack)
	}
	writeJSON(w, apperr.StatusOf(err), resp)
}

// Recoverer turns panics into a global error response so one bad request
// never takes the process down.
func (h *Handler) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err := apperr.Unhandled(fmt.Errorf("panic: %v", rec))
			if ww.Status() != 0 {
				h.logger.Error("panic after response started", "error", err, "path", r.URL.Path)
				h.notifier.EmitError(err.Message)
				return
			}
			h.fail(ww, r, err, debug.Stack())
		}()
		next.ServeHTTP(ww, r)
	})
}
