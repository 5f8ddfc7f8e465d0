package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-audio/wav"

	"voicevision-tutor/internal/apperr"
	"voicevision-tutor/internal/notify"
	"voicevision-tutor/internal/platform/command"
	"voicevision-tutor/internal/tempfile"
)

const (
	uploadPrefix = "audio"
	uploadExt    = ".webm"

	targetSampleRate = 16000
	targetChannels   = 1
	targetBitDepth   = 16
)

// Recognizer turns a 16 kHz mono PCM WAV file into text.
type Recognizer interface {
	Recognize(ctx context.Context, wavPath string) (string, error)
}

// Pipeline converts an uploaded recording with ffmpeg and transcribes it.
type Pipeline struct {
	files      *tempfile.Manager
	runner     command.Runner
	ffmpegPath string
	recognizer Recognizer
	notifier   notify.Emitter
	logger     *slog.Logger
}

func NewPipeline(files *tempfile.Manager, runner command.Runner, ffmpegPath string, recognizer Recognizer, notifier notify.Emitter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		files:      files,
		runner:     runner,
		ffmpegPath: ffmpegPath,
		recognizer: recognizer,
		notifier:   notifier,
		logger:     logger,
	}
}

// Process persists the upload, converts it, transcribes it and removes every
// temp file it created, on success and on failure.
func (p *Pipeline) Process(ctx context.Context, up tempfile.Upload) (string, error) {
	webmPath, err := p.files.Save(uploadPrefix, uploadExt, up.Body)
	if err != nil {
		return "", apperr.Unhandled(err)
	}
	wavPath := strings.TrimSuffix(webmPath, uploadExt) + ".wav"

	p.notifier.Emit(notify.Started(notify.KindAudio, "Starting speech recognition with Whisper"))

	text, err := p.run(ctx, webmPath, wavPath)
	p.files.Remove(webmPath, wavPath)
	if err != nil {
		p.logger.Error("audio processing failed", "error", err)
		return "", err
	}

	p.notifier.Emit(notify.Completed(notify.KindAudio, "Speech recognition complete"))
	return strings.TrimSpace(text), nil
}

func (p *Pipeline) run(ctx context.Context, webmPath, wavPath string) (string, error) {
	if err := p.convert(ctx, webmPath, wavPath); err != nil {
		return "", err
	}

	duration, err := verifyWAV(wavPath)
	if err != nil {
		return "", &apperr.Error{Kind: apperr.KindNoOutput, Message: "Converted audio is not usable", Err: err}
	}
	p.logger.Debug("audio converted", "path", wavPath, "duration", duration)

	p.notifier.Emit(notify.Processing(notify.KindAudio, 0.5, "Processing audio with Whisper..."))

	return p.recognizer.Recognize(ctx, wavPath)
}

func (p *Pipeline) convert(ctx context.Context, inPath, outPath string) error {
	args := buildFFmpegArgs(inPath, outPath)
	res, err := p.runner.Run(ctx, p.ffmpegPath, args...)
	if res.Stderr != "" {
		p.logger.Debug("ffmpeg output", "stderr", res.Stderr)
	}
	if err != nil {
		return apperr.ExternalTool(toolFailureMessage("ffmpeg", res, err), err)
	}
	return nil
}

// buildFFmpegArgs resamples to mono 16 kHz signed 16-bit PCM.
func buildFFmpegArgs(inPath, outPath string) []string {
	return []string{
		"-nostdin",
		"-y",
		"-i", inPath,
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprint(targetSampleRate),
		"-ac", fmt.Sprint(targetChannels),
		outPath,
	}
}

func toolFailureMessage(tool string, res command.Result, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("%s process timed out", tool)
	case res.ExitCode > 0:
		msg := fmt.Sprintf("%s process exited with code %d", tool, res.ExitCode)
		if stderr := lastLine(res.Stderr); stderr != "" {
			msg += ": " + stderr
		}
		return msg
	default:
		return fmt.Sprintf("%s process failed: %v", tool, err)
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func verifyWAV(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open converted audio: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return 0, fmt.Errorf("converted audio is not a valid wav file")
	}
	if d.NumChans != targetChannels || d.SampleRate != targetSampleRate || d.BitDepth != targetBitDepth {
		return 0, fmt.Errorf("unexpected wav format: %d ch, %d Hz, %d bit", d.NumChans, d.SampleRate, d.BitDepth)
	}
	return d.Duration()
}
