package handlers

import (
	"net/http"
	"strconv"

	"tattty/internal/imageprep"
)

// Sketch squares an uploaded sketch onto a transparent 512x512 PNG canvas.
func (a *App) Sketch(w http.ResponseWriter, r *http.Request) {
	images, err := readUploads(w, r, "sketch", 1)
	if err != nil {
		a.uploadFailed(w, r, err)
		return
	}
	out, err := imageprep.SketchSquare(images[0])
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", out.MIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	w.Header().Set("X-Image-Width", strconv.Itoa(out.Width))
	w.Header().Set("X-Image-Height", strconv.Itoa(out.Height))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Data)
}
