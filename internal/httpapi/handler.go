package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"voicevision-tutor/internal/apperr"
	"voicevision-tutor/internal/config"
	"voicevision-tutor/internal/image"
	"voicevision-tutor/internal/llm"
	"voicevision-tutor/internal/notify"
	"voicevision-tutor/internal/tempfile"
)

const maxJSONBody = 1 << 20

type AudioProcessor interface {
	Process(ctx context.Context, up tempfile.Upload) (string, error)
}

type ImageProcessor interface {
	Process(ctx context.Context, up tempfile.Upload) (image.Recognition, error)
}

type Generator interface {
	Generate(ctx context.Context, in llm.Input) (string, error)
	Health(ctx context.Context) llm.Health
}

type Handler struct {
	cfg      config.Config
	audio    AudioProcessor
	image    ImageProcessor
	llm      Generator
	notifier notify.Emitter
	logger   *slog.Logger
}

func NewHandler(cfg config.Config, audio AudioProcessor, img ImageProcessor, gen Generator, notifier notify.Emitter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cfg:      cfg,
		audio:    audio,
		image:    img,
		llm:      gen,
		notifier: notifier,
		logger:   logger,
	}
}

type textResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
}

type imageResponse struct {
	Success    bool    `json:"success"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type healthResponse struct {
	Success bool `json:"success"`
	llm.Health
}

func (h *Handler) ProcessAudio(w http.ResponseWriter, r *http.Request) {
	up, cleanup, err := h.readUpload(w, r, "audio", "audio/")
	if errors.Is(err, errNoUpload) {
		writeFailure(w, http.StatusBadRequest, "No audio file provided")
		return
	}
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	defer cleanup()

	text, err := h.audio.Process(r.Context(), up)
	if err != nil {
		writeFailure(w, apperr.StatusOf(err), apperr.PublicMessage(err, "Error processing audio"))
		return
	}
	writeJSON(w, http.StatusOK, textResponse{Success: true, Text: text})
}

func (h *Handler) ProcessImage(w http.ResponseWriter, r *http.Request) {
	up, cleanup, err := h.readUpload(w, r, "image", "image/")
	if errors.Is(err, errNoUpload) {
		writeFailure(w, http.StatusBadRequest, "No image file provided")
		return
	}
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	defer cleanup()

	res, err := h.image.Process(r.Context(), up)
	if err != nil {
		writeFailure(w, apperr.StatusOf(err), apperr.PublicMessage(err, "Error processing image"))
		return
	}
	writeJSON(w, http.StatusOK, imageResponse{Success: true, Text: res.Text, Confidence: res.Confidence})
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	var in llm.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		h.fail(w, r, apperr.Validation("Invalid JSON body"), nil)
		return
	}

	text, err := h.llm.Generate(r.Context(), in)
	if err != nil {
		writeFailure(w, apperr.StatusOf(err), apperr.PublicMessage(err, "Error generating response"))
		return
	}
	writeJSON(w, http.StatusOK, textResponse{Success: true, Text: text})
}

func (h *Handler) LLMHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Success: true, Health: h.llm.Health(r.Context())})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Debug(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Debug endpoint working",
		"time":    time.Now().UTC().Format(time.RFC3339Nano),
		"env": map[string]string{
			"APP_ENV":    h.cfg.Server.Environment,
			"PORT":       strconv.Itoa(h.cfg.Server.Port),
			"CLIENT_URL": h.cfg.Server.ClientURL,
		},
	})
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/audio/process", h.ProcessAudio)
	r.Post("/image/process", h.ProcessImage)
	r.Post("/llm/generate", h.Generate)
	r.Get("/llm/health", h.LLMHealth)
	r.Get("/health", h.Health)
	r.Get("/debug", h.Debug)
}
