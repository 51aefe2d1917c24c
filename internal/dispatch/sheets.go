package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event types recorded by the logging webhook.
const (
	EventTattooGeneration = "tattoo_generation"
	EventUserFeedback     = "user_feedback"
	EventUserAction       = "user_action"
	EventError            = "error"
)

const (
	sheetsDefaultTimeout = 10 * time.Second
	anonymousUser        = "anonymous"
)

// Event is one record sent to the logging webhook.
type Event struct {
	Type      string
	UserID    string
	SessionID string
	Data      map[string]any
}

type sheetsRecord struct {
	EventType string         `json:"event_type"`
	UserID    string         `json:"user_id"`
	SessionID string         `json:"session_id,omitempty"`
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"timestamp"`
}

type sheetsAck struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type SheetsOptions struct {
	WebhookURL string
	HTTPClient *http.Client
	Logger     zerolog.Logger
	Now        func() time.Time
}

// SheetsLogger posts event records to a spreadsheet webhook. Every call runs in its own
// goroutine; failures are logged and never reach the caller.
type SheetsLogger struct {
	url    string
	client *http.Client
	log    zerolog.Logger
	now    func() time.Time
	wg     sync.WaitGroup
}

func NewSheetsLogger(opts SheetsOptions) *SheetsLogger {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: sheetsDefaultTimeout}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &SheetsLogger{
		url:    strings.TrimSpace(opts.WebhookURL),
		client: client,
		log:    opts.Logger,
		now:    now,
	}
}

// Enabled reports whether a webhook URL is configured.
func (s *SheetsLogger) Enabled() bool {
	return s != nil && s.url != ""
}

// Log sends ev in the background. It returns immediately.
func (s *SheetsLogger) Log(ev Event) {
	if !s.Enabled() {
		return
	}
	rec := sheetsRecord{
		EventType: ev.Type,
		UserID:    ev.UserID,
		SessionID: ev.SessionID,
		Data:      ev.Data,
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
	}
	if rec.UserID == "" {
		rec.UserID = anonymousUser
	}
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error().Interface("panic", r).Str("event_type", rec.EventType).Msg("sheets log panicked")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), sheetsDefaultTimeout)
		defer cancel()
		if err := s.send(ctx, rec); err != nil {
			s.log.Warn().Err(err).Str("event_type", rec.EventType).Str("session_id", rec.SessionID).Msg("sheets log failed")
			return
		}
		s.log.Debug().Str("event_type", rec.EventType).Msg("sheets log recorded")
	}()
}

// LogTattooGeneration records the outcome of one generation submission.
func (s *SheetsLogger) LogTattooGeneration(sessionID, userID string, data map[string]any) {
	s.Log(Event{Type: EventTattooGeneration, SessionID: sessionID, UserID: userID, Data: data})
}

// LogUserAction records a user interaction such as a button press.
func (s *SheetsLogger) LogUserAction(sessionID, userID, action string, details map[string]any) {
	data := make(map[string]any, len(details)+1)
	for k, v := range details {
		data[k] = v
	}
	data["action"] = action
	s.Log(Event{Type: EventUserAction, SessionID: sessionID, UserID: userID, Data: data})
}

// LogError records a client or server error report.
func (s *SheetsLogger) LogError(sessionID, userID string, data map[string]any) {
	s.Log(Event{Type: EventError, SessionID: sessionID, UserID: userID, Data: data})
}

// Wait blocks until every in-flight record has been sent or given up on, or ctx ends.
func (s *SheetsLogger) Wait(ctx context.Context) error {
	if s == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SheetsLogger) send(ctx context.Context, rec sheetsRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	var ack sheetsAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return fmt.Errorf("decode ack: %w", err)
	}
	if ack.Status != "success" {
		return fmt.Errorf("webhook rejected record: %s", coalesce(ack.Message, ack.Status))
	}
	return nil
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
