// Package tesseract adapts gosseract to the image pipeline's Engine.
package tesseract

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"voicevision-tutor/internal/image"
)

// Parameters Tesseract only reads during Init. gosseract applies variables
// after Init, so these go into a config file instead.
var initOnlyParams = map[string]bool{
	"tessedit_ocr_engine_mode": true,
}

// Engine wraps one gosseract client. It is not safe for concurrent use and
// must not be reused after Terminate.
type Engine struct {
	client     *gosseract.Client
	progress   func(float64)
	language   string
	configPath string
}

func New(progress func(float64)) *Engine {
	if progress == nil {
		progress = func(float64) {}
	}
	return &Engine{
		client:   gosseract.NewClient(),
		progress: progress,
	}
}

// Factory matches image.EngineFactory.
func Factory(progress func(float64)) (image.Engine, error) {
	return New(progress), nil
}

func (e *Engine) LoadLanguage(lang string) error {
	if lang == "" {
		return fmt.Errorf("empty language")
	}
	available, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return fmt.Errorf("list languages: %w", err)
	}
	for _, l := range strings.Split(lang, "+") {
		if !slices.Contains(available, l) {
			return fmt.Errorf("language %q not installed", l)
		}
	}
	e.language = lang
	return nil
}

// Initialize records the language. The underlying API is initialized lazily
// by gosseract on the first recognition.
func (e *Engine) Initialize(lang string) error {
	if lang == "" {
		lang = e.language
	}
	if err := e.client.SetLanguage(strings.Split(lang, "+")...); err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	return nil
}

func (e *Engine) SetParameters(params map[string]string) error {
	var initLines []string
	for k, v := range params {
		if initOnlyParams[k] {
			initLines = append(initLines, k+" "+v)
			continue
		}
		if err := e.client.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	if len(initLines) == 0 {
		return nil
	}

	f, err := os.CreateTemp("", "tesseract-*.config")
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	e.configPath = f.Name()
	_, err = f.WriteString(strings.Join(initLines, "\n") + "\n")
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := e.client.SetConfigFile(e.configPath); err != nil {
		return fmt.Errorf("set config file: %w", err)
	}
	return nil
}

// Recognize runs OCR on the image at path. Confidence is the mean word
// confidence, 0..100. Progress is reported at fixed milestones because
// Tesseract's C API gives no callback.
func (e *Engine) Recognize(ctx context.Context, path string) (image.Recognition, error) {
	if err := ctx.Err(); err != nil {
		return image.Recognition{}, err
	}
	e.progress(0)

	if err := e.client.SetImage(path); err != nil {
		return image.Recognition{}, fmt.Errorf("set image: %w", err)
	}
	e.progress(0.25)

	text, err := e.client.Text()
	if err != nil {
		return image.Recognition{}, fmt.Errorf("recognize text: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return image.Recognition{}, err
	}
	e.progress(0.75)

	conf := meanConfidence(e.client)
	e.progress(1)

	return image.Recognition{Text: text, Confidence: conf}, nil
}

func (e *Engine) Terminate() error {
	err := e.client.Close()
	if e.configPath != "" {
		os.Remove(e.configPath)
		e.configPath = ""
	}
	return err
}

func meanConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return sum / float64(len(boxes))
}
