package llm

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"text/template"

	"voicevision-tutor/internal/apperr"
	"voicevision-tutor/internal/config"
	"voicevision-tutor/internal/notify"
)

type Service struct {
	client          ChatClient
	model           string
	systemPrompt    string
	withText        *template.Template
	defaultQuestion string
	notifier        notify.Emitter
	logger          *slog.Logger
}

func NewService(client ChatClient, model string, prompts config.Prompts, notifier notify.Emitter, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tmpl, err := template.New("with_detected_text").Parse(prompts.WithDetectedText)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return &Service{
		client:          client,
		model:           model,
		systemPrompt:    prompts.System,
		withText:        tmpl,
		defaultQuestion: prompts.DefaultQuestion,
		notifier:        notifier,
		logger:          logger,
	}, nil
}

// Generate answers the user's question about the detected text. It fails
// with a validation error before contacting the backend when both inputs
// are blank.
func (s *Service) Generate(ctx context.Context, in Input) (string, error) {
	if isBlank(in.UserPrompt) && isBlank(in.DetectedText) {
		return "", apperr.Validation("No input provided")
	}

	s.notifier.Emit(notify.Started(notify.KindLLM, "Generating response"))

	prompt, err := s.composePrompt(in.UserPrompt, in.DetectedText)
	if err != nil {
		return "", apperr.Unhandled(err)
	}

	reply, err := s.client.Chat(ctx, []Message{
		{Role: RoleSystem, Content: s.systemPrompt},
		{Role: RoleUser, Content: prompt},
	})
	if err != nil {
		s.logger.Error("llm generation failed", "model", s.model, "error", err)
		return "", err
	}

	s.notifier.Emit(notify.Completed(notify.KindLLM, "Response generated"))
	return reply, nil
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }

// composePrompt embeds both inputs unmodified; whitespace only decides
// which form is used.
func (s *Service) composePrompt(userPrompt, detected string) (string, error) {
	if isBlank(detected) {
		return userPrompt, nil
	}
	question := userPrompt
	if isBlank(question) {
		question = s.defaultQuestion
	}
	var b strings.Builder
	err := s.withText.Execute(&b, struct {
		Text     string
		Question string
	}{Text: detected, Question: question})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}

// Health reports whether the backend answers and whether the configured
// model is installed. Failures are reported in the result, never returned.
func (s *Service) Health(ctx context.Context) Health {
	models, err := s.client.ListModels(ctx)
	if err != nil {
		s.logger.Warn("llm health check failed", "error", err)
		return Health{Available: false, Error: err.Error()}
	}
	found := slices.ContainsFunc(models, s.matchesModel)
	return Health{Available: true, ModelAvailable: &found}
}

// matchesModel treats an untagged model name as ":latest", the way Ollama
// resolves it.
func (s *Service) matchesModel(name string) bool {
	return name == s.model || (!strings.Contains(s.model, ":") && name == s.model+":latest")
}
