package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"tattty/internal/domain"
	"tattty/internal/middleware"
)

type imageInfo struct {
	Filename string `json:"filename"`
	MIME     string `json:"mime"`
	Size     int    `json:"size"`
}

type draftResponse struct {
	SessionID string       `json:"sessionId"`
	Draft     domain.Draft `json:"draft"`
	Images    []imageInfo  `json:"images"`
}

func newDraftResponse(id string, d domain.Draft) draftResponse {
	images := make([]imageInfo, 0, len(d.Images))
	for _, img := range d.Images {
		images = append(images, imageInfo{Filename: img.Filename, MIME: img.MIME, Size: len(img.Data)})
	}
	return draftResponse{SessionID: id, Draft: d, Images: images}
}

func (a *App) GetDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := a.sessionID(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, newDraftResponse(id, a.Drafts.Peek(r.Context(), id)))
}

type textRequest struct {
	Text string `json:"text"`
}

func (a *App) PutQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := a.sessionID(w, r)
	if !ok {
		return
	}
	var req textRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	store := a.Drafts.Get(r.Context(), id)
	switch chi.URLParam(r, "n") {
	case "1":
		store.SetQuestionOne(req.Text)
	case "2":
		store.SetQuestionTwo(req.Text)
	default:
		a.error(w, http.StatusNotFound, "not_found", "question must be 1 or 2")
		return
	}
	a.json(w, http.StatusOK, newDraftResponse(id, store.Get()))
}

type optionRequest struct {
	Value string `json:"value"`
}

// PutOption stores any value; catalog membership is checked at finalize time.
func (a *App) PutOption(w http.ResponseWriter, r *http.Request) {
	id, ok := a.sessionID(w, r)
	if !ok {
		return
	}
	var req optionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	store := a.Drafts.Get(r.Context(), id)
	if err := store.SetOption(chi.URLParam(r, "field"), req.Value); err != nil {
		a.error(w, http.StatusNotFound, "unknown_field", err.Error())
		return
	}
	a.json(w, http.StatusOK, newDraftResponse(id, store.Get()))
}

func (a *App) PutImages(w http.ResponseWriter, r *http.Request) {
	id, ok := a.sessionID(w, r)
	if !ok {
		return
	}
	images, err := readUploads(w, r, "images", maxUploadFiles)
	if err != nil {
		a.uploadFailed(w, r, err)
		return
	}
	store := a.Drafts.Get(r.Context(), id)
	store.SetImages(images)
	a.Sheets.LogUserAction(id, "", "images_uploaded", merge(middleware.ClientInfoFromContext(r.Context()).Fields(), map[string]any{
		"count": len(images),
	}))
	a.json(w, http.StatusOK, newDraftResponse(id, store.Get()))
}

func (a *App) ClearImages(w http.ResponseWriter, r *http.Request) {
	id, ok := a.sessionID(w, r)
	if !ok {
		return
	}
	store := a.Drafts.Get(r.Context(), id)
	store.SetImages(nil)
	a.json(w, http.StatusOK, newDraftResponse(id, store.Get()))
}

func (a *App) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := a.sessionID(w, r)
	if !ok {
		return
	}
	if err := a.Drafts.Delete(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func merge(dst map[string]any, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
