package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"voicevision-tutor/internal/apperr"
	"voicevision-tutor/internal/tempfile"
)

// Parts above this size are spooled to disk by mime/multipart.
const multipartMemory = 1 << 20

// Room for boundaries and part headers on top of the file size limit.
const multipartOverhead = 1 << 20

var errNoUpload = errors.New("no upload in request")

// readUpload extracts one file field from a multipart request. A request that
// is not multipart or lacks the field yields errNoUpload. The returned
// cleanup must be called once the upload body has been consumed.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request, field, mimePrefix string) (tempfile.Upload, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Server.MaxUploadBytes+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
			return tempfile.Upload{}, nil, errNoUpload
		case errors.As(err, &tooLarge):
			return tempfile.Upload{}, nil, apperr.Validation("File too large")
		default:
			return tempfile.Upload{}, nil, &apperr.Error{Kind: apperr.KindValidation, Message: "Invalid multipart form", Err: err}
		}
	}
	removeForm := func() {
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		removeForm()
		if errors.Is(err, http.ErrMissingFile) {
			return tempfile.Upload{}, nil, errNoUpload
		}
		return tempfile.Upload{}, nil, apperr.Unhandled(err)
	}
	if header.Size > h.cfg.Server.MaxUploadBytes {
		file.Close()
		removeForm()
		return tempfile.Upload{}, nil, apperr.Validation("File too large")
	}

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, mimePrefix) {
		file.Close()
		removeForm()
		kind := strings.TrimSuffix(mimePrefix, "/")
		return tempfile.Upload{}, nil, apperr.Validation("Only " + kind + " files are allowed")
	}

	up := tempfile.Upload{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	}
	return up, func() {
		file.Close()
		removeForm()
	}, nil
}
