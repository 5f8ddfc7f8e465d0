package image

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"voicevision-tutor/internal/apperr"
	"voicevision-tutor/internal/notify"
	"voicevision-tutor/internal/tempfile"
)

const uploadPrefix = "image"

// Recognition is what one OCR run produced. Confidence is 0..100.
type Recognition struct {
	Text       string
	Confidence float64
}

// Engine is a stateful OCR engine instance owned by a single request.
// Calls happen in order: LoadLanguage, Initialize, SetParameters, Recognize,
// then Terminate on every exit path.
type Engine interface {
	LoadLanguage(lang string) error
	Initialize(lang string) error
	SetParameters(params map[string]string) error
	Recognize(ctx context.Context, imagePath string) (Recognition, error)
	Terminate() error
}

// EngineFactory creates a fresh engine that reports progress fractions to
// the given callback.
type EngineFactory func(progress func(fraction float64)) (Engine, error)

type Options struct {
	Language   string
	Parameters map[string]string
}

type Pipeline struct {
	files     *tempfile.Manager
	newEngine EngineFactory
	opts      Options
	notifier  notify.Emitter
	logger    *slog.Logger
}

func NewPipeline(files *tempfile.Manager, newEngine EngineFactory, opts Options, notifier notify.Emitter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Language == "" {
		opts.Language = "eng"
	}
	return &Pipeline{
		files:     files,
		newEngine: newEngine,
		opts:      opts,
		notifier:  notifier,
		logger:    logger,
	}
}

// Process runs OCR on the uploaded image with a per-request engine.
func (p *Pipeline) Process(ctx context.Context, up tempfile.Upload) (Recognition, error) {
	imagePath, err := p.files.Save(uploadPrefix, up.Ext(), up.Body)
	if err != nil {
		return Recognition{}, apperr.Unhandled(err)
	}

	p.notifier.Emit(notify.Started(notify.KindImage, "Starting OCR processing"))

	ocrPath, converted, err := normalize(p.files, imagePath)
	if err != nil {
		p.logger.Warn("image normalization failed, using original", "path", imagePath, "error", err)
		ocrPath = imagePath
	}

	res, err := p.recognize(ctx, ocrPath)
	p.files.Remove(imagePath)
	if converted {
		p.files.Remove(ocrPath)
	}
	if err != nil {
		p.logger.Error("image processing failed", "error", err)
		return Recognition{}, err
	}

	p.notifier.Emit(notify.Completed(notify.KindImage, "OCR processing complete"))
	res.Text = strings.TrimSpace(res.Text)
	return res, nil
}

func (p *Pipeline) recognize(ctx context.Context, imagePath string) (res Recognition, err error) {
	engine, err := p.newEngine(p.reportProgress)
	if err != nil {
		return Recognition{}, apperr.ExternalTool("Failed to create OCR engine", err)
	}
	defer func() {
		if termErr := engine.Terminate(); termErr != nil {
			p.logger.Warn("ocr engine terminate failed", "error", termErr)
		}
	}()

	if err := engine.LoadLanguage(p.opts.Language); err != nil {
		return Recognition{}, apperr.ExternalTool("Failed to load OCR language "+p.opts.Language, err)
	}
	if err := engine.Initialize(p.opts.Language); err != nil {
		return Recognition{}, apperr.ExternalTool("Failed to initialize OCR engine", err)
	}
	if err := engine.SetParameters(p.opts.Parameters); err != nil {
		return Recognition{}, apperr.ExternalTool("Failed to set OCR parameters", err)
	}

	res, err = engine.Recognize(ctx, imagePath)
	if err != nil {
		return Recognition{}, apperr.ExternalTool("OCR recognition failed", err)
	}
	return res, nil
}

func (p *Pipeline) reportProgress(fraction float64) {
	fraction = math.Max(0, math.Min(1, fraction))
	p.notifier.Emit(notify.Processing(
		notify.KindImage,
		fraction,
		fmt.Sprintf("OCR processing: %d%%", int(math.Floor(fraction*100))),
	))
}
