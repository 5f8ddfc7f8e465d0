package tempfile

import (
	"io"
	"path/filepath"
	"strings"
)

// Upload is one file received with a request. It belongs to that request
// and is consumed by exactly one pipeline run.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Ext returns the lower-cased extension of the original filename.
func (u Upload) Ext() string {
	return strings.ToLower(filepath.Ext(u.Filename))
}
