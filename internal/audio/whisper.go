package audio

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"voicevision-tutor/internal/apperr"
	"voicevision-tutor/internal/platform/command"
	"voicevision-tutor/internal/tempfile"
)

// CLIRecognizer runs a whisper.cpp binary once per recording.
//
// Depending on build and version the binary either writes a .txt file next to
// the input or prints the transcript to stdout. Both are detected after the
// process exits; the sidecar wins when present.
type CLIRecognizer struct {
	runner      command.Runner
	whisperPath string
	modelPath   string
	logger      *slog.Logger
}

func NewCLIRecognizer(runner command.Runner, whisperPath, modelPath string, logger *slog.Logger) *CLIRecognizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIRecognizer{
		runner:      runner,
		whisperPath: whisperPath,
		modelPath:   modelPath,
		logger:      logger,
	}
}

func (r *CLIRecognizer) Recognize(ctx context.Context, wavPath string) (string, error) {
	sidecars := sidecarPaths(wavPath)
	defer removeAll(r.logger, sidecars)

	res, err := r.runner.Run(ctx, r.whisperPath, buildWhisperArgs(r.modelPath, wavPath)...)
	if res.Stderr != "" {
		r.logger.Debug("whisper output", "stderr", res.Stderr)
	}
	if err != nil {
		return "", apperr.ExternalTool(toolFailureMessage("Whisper", res, err), err)
	}

	for _, p := range sidecars {
		if !tempfile.Exists(p) {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return "", apperr.Unhandled(err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if out := strings.TrimSpace(res.Stdout); out != "" {
		return out, nil
	}
	return "", apperr.NoOutput("No transcription output found")
}

func buildWhisperArgs(modelPath, wavPath string) []string {
	return []string{
		"-m", modelPath,
		"-f", wavPath,
		"--output-txt",
	}
}

// sidecarPaths lists where whisper.cpp may leave its text output:
// older builds replace the extension, newer ones append to it.
func sidecarPaths(wavPath string) []string {
	return []string{
		strings.TrimSuffix(wavPath, ".wav") + ".txt",
		wavPath + ".txt",
	}
}

func removeAll(logger *slog.Logger, paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logger.Warn("transcript cleanup failed", "path", p, "error", err)
		}
	}
}
