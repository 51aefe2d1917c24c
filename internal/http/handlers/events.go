package handlers

import (
	"net/http"
	"strings"

	"tattty/internal/dispatch"
	"tattty/internal/middleware"
)

type eventRequest struct {
	Type      string         `json:"type"`
	SessionID string         `json:"sessionId"`
	Data      map[string]any `json:"data"`
}

var clientEventTypes = map[string]bool{
	dispatch.EventUserFeedback: true,
	dispatch.EventUserAction:   true,
	dispatch.EventError:        true,
}

// Event forwards a client-reported record to the logging webhook. It always answers 202;
// delivery is best effort.
func (a *App) Event(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	typ := strings.TrimSpace(req.Type)
	if !clientEventTypes[typ] {
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported event type")
		return
	}
	a.Sheets.Log(dispatch.Event{
		Type:      typ,
		SessionID: req.SessionID,
		Data:      merge(middleware.ClientInfoFromContext(r.Context()).Fields(), req.Data),
	})
	a.json(w, http.StatusAccepted, map[string]bool{"accepted": true})
}
