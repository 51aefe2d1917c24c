package handlers

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"tattty/internal/domain"
	"tattty/internal/generation"
	"tattty/internal/middleware"
	"tattty/internal/providers/prompt"
)

type promptEnhanceRequest struct {
	SessionID string `json:"sessionId"`
	Mode      string `json:"mode"`
}

type promptEnhanceResponse struct {
	Request        prompt.EnhanceRequest `json:"request"`
	EnhancedPrompt string                `json:"enhancedPrompt"`
	NegativePrompt string                `json:"negativePrompt,omitempty"`
	Provider       string                `json:"provider"`
	Extra          map[string]string     `json:"extra,omitempty"`
}

// PromptEnhance derives the enhancement request from the finalized draft so the prompt
// and the generation request always agree.
func (a *App) PromptEnhance(w http.ResponseWriter, r *http.Request) {
	var req promptEnhanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	id, err := uuid.Parse(req.SessionID)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "sessionId must be a uuid")
		return
	}
	mode := domain.ParseGeneratorMode(req.Mode)
	finalized, err := a.Finalizer.ValidateAndFinalize(a.Drafts.Peek(r.Context(), id.String()), mode)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	enhanceReq := prompt.RequestFromFinalized(finalized)
	res, err := a.Prompts.Enhance(r.Context(), enhanceReq)
	if err != nil {
		reqLog := middleware.RequestLogger(r.Context(), a.Log)
		reqLog.Warn().Err(err).Str("session_id", id.String()).Msg("prompt enhancement failed")
		if errors.Is(err, domain.ErrMissingConfiguration) {
			a.fail(w, r, err)
			return
		}
		a.error(w, http.StatusBadGateway, "enhancer_failed", err.Error())
		return
	}
	a.json(w, http.StatusOK, promptEnhanceResponse{
		Request:        enhanceReq,
		EnhancedPrompt: res.EnhancedPrompt,
		NegativePrompt: res.NegativePrompt,
		Provider:       res.Provider,
		Extra:          res.Metadata,
	})
}

type storyRequest struct {
	Story string `json:"story"`
}

func (a *App) PromptStory(w http.ResponseWriter, r *http.Request) {
	var req storyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	story := strings.TrimSpace(req.Story)
	if story == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "story is required")
		return
	}
	if n := utf8.RuneCountInString(story); n > generation.MaxQuestionChars {
		a.error(w, http.StatusBadRequest, "too_long", "story is too long")
		return
	}
	enhanced, err := a.Prompts.EnhanceStory(r.Context(), story)
	if err != nil {
		reqLog := middleware.RequestLogger(r.Context(), a.Log)
		reqLog.Warn().Err(err).Msg("story enhancement failed")
		if errors.Is(err, domain.ErrMissingConfiguration) {
			a.fail(w, r, err)
			return
		}
		a.error(w, http.StatusBadGateway, "enhancer_failed", err.Error())
		return
	}
	a.json(w, http.StatusOK, map[string]string{"story": enhanced})
}
