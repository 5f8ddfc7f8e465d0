package tempfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

// Manager hands out request-scoped file paths inside one upload directory.
// Names combine a millisecond timestamp and a random suffix; no lock is taken.
type Manager struct {
	dir    string
	logger *slog.Logger
}

func NewManager(dir string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Manager{dir: dir, logger: logger}, nil
}

func (m *Manager) Dir() string { return m.dir }

// Path returns a fresh path such as uploads/audio-1700000000000-123456789.webm.
func (m *Manager) Path(prefix, ext string) string {
	name := fmt.Sprintf("%s-%d-%d%s", prefix, time.Now().UnixMilli(), rand.Intn(1e9), ext)
	return filepath.Join(m.dir, name)
}

// Save copies r into a new file and returns its path.
func (m *Manager) Save(prefix, ext string, r io.Reader) (string, error) {
	path := m.Path(prefix, ext)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		m.Remove(path)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		m.Remove(path)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return path, nil
}

// Remove deletes each path. Missing files are ignored and other failures are
// only logged.
func (m *Manager) Remove(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			m.logger.Warn("temp file cleanup failed", "path", p, "error", err)
		}
	}
}

func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
