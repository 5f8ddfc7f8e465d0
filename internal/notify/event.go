package notify

import (
	"encoding/json"
)

type Kind string

const (
	KindAudio Kind = "audio"
	KindImage Kind = "image"
	KindLLM   Kind = "llm"
)

type Status string

const (
	StatusStarted    Status = "started"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

// Envelope names, matching what the front end subscribes to.
const (
	EventProcessingUpdate = "processing-update"
	EventError            = "error"
)

// Event is one pipeline status update. Progress is a fraction in [0, 1].
type Event struct {
	Type     Kind     `json:"type"`
	Status   Status   `json:"status"`
	Progress *float64 `json:"progress,omitempty"`
	Message  string   `json:"message"`
}

func Started(kind Kind, msg string) Event {
	return Event{Type: kind, Status: StatusStarted, Message: msg}
}

func Processing(kind Kind, progress float64, msg string) Event {
	return Event{Type: kind, Status: StatusProcessing, Progress: &progress, Message: msg}
}

func Completed(kind Kind, msg string) Event {
	return Event{Type: kind, Status: StatusCompleted, Message: msg}
}

// Envelope is the unit delivered to listeners. Data is the JSON payload:
// an Event for processing-update, a bare string for error.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newEnvelope(name string, v any) Envelope {
	data, err := json.Marshal(v)
	if err != nil {
		// Event and string always marshal; keep the envelope well-formed anyway.
		data = []byte(`null`)
	}
	return Envelope{Event: name, Data: data}
}

// Emitter is what pipelines use to announce progress. Implementations must
// not block the caller.
type Emitter interface {
	Emit(Event)
	EmitError(msg string)
}
