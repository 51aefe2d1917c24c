package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"tattty/internal/domain"
)

const (
	maxUploadFiles = 5
	maxUploadBytes = 10 << 20
	uploadMemory   = 8 << 20
)

var errNoFiles = errors.New("no image files in request")

type uploadError struct {
	code    string
	message string
}

func (e *uploadError) Error() string { return e.message }

// readUploads parses a multipart request and returns the files under field in order.
// Every file must be an image no larger than maxUploadBytes.
func readUploads(w http.ResponseWriter, r *http.Request, field string, limit int) ([]domain.Image, error) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(limit)*maxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &uploadError{code: "payload_too_large", message: "upload exceeds the size limit"}
		}
		return nil, &uploadError{code: "bad_request", message: "expected multipart/form-data"}
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, errNoFiles
	}
	if len(headers) > limit {
		return nil, &uploadError{code: "too_many_files", message: fmt.Sprintf("at most %d images are allowed", limit)}
	}
	out := make([]domain.Image, 0, len(headers))
	for _, fh := range headers {
		img, err := readUpload(fh)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}

func readUpload(fh *multipart.FileHeader) (domain.Image, error) {
	if fh.Size > maxUploadBytes {
		return domain.Image{}, &uploadError{code: "image_too_large", message: fmt.Sprintf("%s is larger than 10MB", fh.Filename)}
	}
	f, err := fh.Open()
	if err != nil {
		return domain.Image{}, err
	}
	defer func() {
		_ = f.Close()
	}()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return domain.Image{}, err
	}
	if len(data) > maxUploadBytes {
		return domain.Image{}, &uploadError{code: "image_too_large", message: fmt.Sprintf("%s is larger than 10MB", fh.Filename)}
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return domain.Image{}, &uploadError{code: "not_an_image", message: fmt.Sprintf("%s is not an image", fh.Filename)}
	}
	return domain.Image{Filename: fh.Filename, MIME: mime, Data: data}, nil
}

func (a *App) uploadFailed(w http.ResponseWriter, r *http.Request, err error) {
	var up *uploadError
	switch {
	case errors.As(err, &up):
		status := http.StatusBadRequest
		if up.code == "payload_too_large" || up.code == "image_too_large" {
			status = http.StatusRequestEntityTooLarge
		}
		a.error(w, status, up.code, up.message)
	case errors.Is(err, errNoFiles):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		a.fail(w, r, err)
	}
}
