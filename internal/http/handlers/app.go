package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tattty/internal/dispatch"
	"tattty/internal/domain"
	"tattty/internal/generation"
	"tattty/internal/imageprep"
	"tattty/internal/middleware"
	"tattty/internal/payload"
	"tattty/internal/providers/prompt"
	"tattty/internal/session"
)

const defaultSubmitTimeout = 120 * time.Second

// Submitter is the part of dispatch.Submitter the API depends on.
type Submitter interface {
	Submit(ctx context.Context, body payload.SubmissionBody, endpoint string) (*dispatch.SubmissionAck, error)
}

type Options struct {
	Logger             zerolog.Logger
	Drafts             *session.Registry
	Finalizer          *generation.Finalizer
	ImageOptions       imageprep.Options
	Submitter          Submitter
	GenerationEndpoint string
	SubmitTimeout      time.Duration
	Sheets             *dispatch.SheetsLogger
	Prompts            prompt.Enhancer
}

type App struct {
	Log                zerolog.Logger
	Drafts             *session.Registry
	Finalizer          *generation.Finalizer
	ImageOptions       imageprep.Options
	Submitter          Submitter
	GenerationEndpoint string
	SubmitTimeout      time.Duration
	Sheets             *dispatch.SheetsLogger
	Prompts            prompt.Enhancer

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

func NewApp(opts Options) *App {
	a := &App{
		Log:                opts.Logger,
		Drafts:             opts.Drafts,
		Finalizer:          opts.Finalizer,
		ImageOptions:       opts.ImageOptions,
		Submitter:          opts.Submitter,
		GenerationEndpoint: strings.TrimSpace(opts.GenerationEndpoint),
		SubmitTimeout:      opts.SubmitTimeout,
		Sheets:             opts.Sheets,
		Prompts:            opts.Prompts,
		inflight:           make(map[string]struct{}),
	}
	if a.Drafts == nil {
		a.Drafts = session.NewRegistry(nil, opts.Logger)
	}
	if a.Finalizer == nil {
		a.Finalizer = generation.NewFinalizer()
	}
	if a.ImageOptions == (imageprep.Options{}) {
		a.ImageOptions = imageprep.DefaultOptions()
	}
	if a.Submitter == nil {
		a.Submitter = dispatch.NewSubmitter(dispatch.SubmitterOptions{})
	}
	if a.SubmitTimeout <= 0 {
		a.SubmitTimeout = defaultSubmitTimeout
	}
	if a.Prompts == nil {
		a.Prompts = prompt.NewStaticEnhancer()
	}
	return a
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// fail maps the domain error taxonomy onto HTTP responses.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation domain.ValidationErrors
		imgErr     *domain.ImageError
		subErr     *domain.SubmissionError
		cfgErr     *domain.ConfigurationError
	)
	switch {
	case errors.As(err, &validation):
		a.json(w, http.StatusUnprocessableEntity, errorBody{Error: errorDetail{
			Code:    "invalid_draft",
			Message: validation.Error(),
			Details: []domain.ValidationError(validation),
		}})
	case errors.As(err, &imgErr):
		a.json(w, http.StatusUnprocessableEntity, errorBody{Error: errorDetail{
			Code:    "image_rejected",
			Message: imgErr.Error(),
			Details: imgErr,
		}})
	case errors.As(err, &cfgErr):
		a.error(w, http.StatusServiceUnavailable, "not_configured", cfgErr.Error())
	case errors.Is(err, domain.ErrSubmissionInFlight):
		a.error(w, http.StatusConflict, "submission_in_flight", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		a.error(w, http.StatusGatewayTimeout, "timeout", "generation backend timed out")
	case errors.As(err, &subErr):
		a.json(w, http.StatusBadGateway, errorBody{Error: errorDetail{
			Code:    "submission_failed",
			Message: subErr.Message,
			Details: subErr,
		}})
	default:
		log := middleware.RequestLogger(r.Context(), a.Log)
		log.Error().Err(err).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// sessionID returns the validated {session_id} URL parameter in canonical form.
func (a *App) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "session_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "session_id must be a uuid")
		return "", false
	}
	return id.String(), true
}

func (a *App) acquire(sessionID string) bool {
	a.inflightMu.Lock()
	defer a.inflightMu.Unlock()
	if _, busy := a.inflight[sessionID]; busy {
		return false
	}
	a.inflight[sessionID] = struct{}{}
	return true
}

func (a *App) release(sessionID string) {
	a.inflightMu.Lock()
	delete(a.inflight, sessionID)
	a.inflightMu.Unlock()
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
