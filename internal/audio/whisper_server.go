package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"voicevision-tutor/internal/apperr"
)

// HTTPRecognizer sends the converted WAV to a running whisper.cpp server
// instead of spawning the CLI.
type HTTPRecognizer struct {
	serverURL  string
	httpClient *http.Client
}

func NewHTTPRecognizer(serverURL string, timeout time.Duration) *HTTPRecognizer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPRecognizer{
		serverURL: strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type inferenceResponse struct {
	Text  *string `json:"text"`
	Error string  `json:"error"`
}

func (c *HTTPRecognizer) Recognize(ctx context.Context, wavPath string) (string, error) {
	audioData, err := os.ReadFile(wavPath)
	if err != nil {
		return "", apperr.Unhandled(err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audioData); err != nil {
		return "", err
	}
	if err := writer.WriteField("response_format", "json"); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/inference", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperr.ExternalTool("Whisper server unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", apperr.ExternalTool(fmt.Sprintf("Whisper server error: %s - %s", resp.Status, strings.TrimSpace(string(respBody))), nil)
	}

	var result inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", apperr.NoOutput("No transcription output found")
	}
	if result.Error != "" {
		return "", apperr.ExternalTool("Whisper server error: "+result.Error, nil)
	}
	if result.Text == nil {
		return "", apperr.NoOutput("No transcription output found")
	}
	return strings.TrimSpace(*result.Text), nil
}
