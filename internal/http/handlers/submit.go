package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"tattty/internal/dispatch"
	"tattty/internal/domain"
	"tattty/internal/imageprep"
	"tattty/internal/middleware"
	"tattty/internal/payload"
)

type finalizeResponse struct {
	Request    domain.FinalizedRequest `json:"request"`
	Mode       domain.GeneratorMode    `json:"mode"`
	ImageCount int                     `json:"imageCount"`
}

func (a *App) Finalize(w http.ResponseWriter, r *http.Request) {
	id, ok := a.sessionID(w, r)
	if !ok {
		return
	}
	mode := domain.ParseGeneratorMode(r.URL.Query().Get("mode"))
	finalized, err := a.Finalizer.ValidateAndFinalize(a.Drafts.Peek(r.Context(), id), mode)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, finalizeResponse{Request: finalized, Mode: mode, ImageCount: finalized.ImageCount()})
}

type submitResponse struct {
	Status      string         `json:"status"`
	SessionID   string         `json:"sessionId"`
	Timestamp   time.Time      `json:"timestamp"`
	ImageURL    string         `json:"imageUrl,omitempty"`
	ContentType string         `json:"contentType"`
	Result      map[string]any `json:"result,omitempty"`
}

// Submit finalizes the draft, prepares its images, serializes the request and posts it to
// the generation backend. Only one submission per session runs at a time.
func (a *App) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := a.sessionID(w, r)
	if !ok {
		return
	}
	if !a.acquire(id) {
		a.fail(w, r, domain.ErrSubmissionInFlight)
		return
	}
	defer a.release(id)
	if a.GenerationEndpoint == "" {
		a.fail(w, r, &domain.ConfigurationError{Feature: "generation backend", Key: "GENERATION_ENDPOINT"})
		return
	}

	mode := domain.ParseGeneratorMode(r.URL.Query().Get("mode"))
	finalized, err := a.Finalizer.ValidateAndFinalize(a.Drafts.Peek(r.Context(), id), mode)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.SubmitTimeout)
	defer cancel()

	started := time.Now()
	logData := merge(middleware.ClientInfoFromContext(r.Context()).Fields(), map[string]any{
		"draft_session_id": id,
		"mode":             string(mode),
		"style":            finalized.Options.Style,
		"color":            finalized.Options.Color,
		"mood":             finalized.Options.Mood,
		"placement":        finalized.Options.Placement,
		"size":             finalized.Options.Size,
		"aspect_ratio":     finalized.Options.AspectRatio,
		"output_type":      finalized.Options.OutputType,
		"model":            finalized.Options.Model,
		"image_count":      finalized.ImageCount(),
	})

	ack, err := a.submitFinalized(ctx, finalized)
	logData["duration_ms"] = time.Since(started).Milliseconds()
	if err != nil {
		logData["success"] = false
		logData["error"] = err.Error()
		a.Sheets.LogTattooGeneration(finalized.SessionID, finalized.UserID, logData)
		reqLog := middleware.RequestLogger(r.Context(), a.Log)
		reqLog.Warn().Err(err).Str("session_id", id).Str("submission_id", finalized.SessionID).Msg("submission failed")
		a.fail(w, r, err)
		return
	}
	logData["success"] = true
	logData["status"] = ack.Status
	if ack.ImageURL != "" {
		logData["image_url"] = ack.ImageURL
	}
	a.Sheets.LogTattooGeneration(finalized.SessionID, finalized.UserID, logData)
	reqLog := middleware.RequestLogger(r.Context(), a.Log)
	reqLog.Info().Str("session_id", id).Str("submission_id", finalized.SessionID).Int("images", finalized.ImageCount()).Msg("submission accepted")

	if len(ack.Image) > 0 {
		w.Header().Set("Content-Type", ack.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(ack.Image)))
		w.Header().Set("X-Submission-ID", finalized.SessionID)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(ack.Image)
		return
	}
	a.json(w, http.StatusOK, submitResponse{
		Status:      "submitted",
		SessionID:   finalized.SessionID,
		Timestamp:   finalized.Timestamp,
		ImageURL:    ack.ImageURL,
		ContentType: ack.ContentType,
		Result:      ack.Fields,
	})
}

func (a *App) submitFinalized(ctx context.Context, finalized domain.FinalizedRequest) (*dispatch.SubmissionAck, error) {
	prepared, err := imageprep.PrepareAll(ctx, finalized.SourceCard.Images, a.ImageOptions)
	if err != nil {
		return nil, err
	}
	body, err := payload.Serialize(finalized.WithImages(prepared))
	if err != nil {
		return nil, err
	}
	return a.Submitter.Submit(ctx, body, a.GenerationEndpoint)
}
