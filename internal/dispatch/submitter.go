// Package dispatch sends serialized generation requests to the backend and mirrors
// submissions to the logging webhook.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"tattty/internal/domain"
	"tattty/internal/payload"
)

const (
	submitDefaultTimeout = 120 * time.Second
	maxErrorBody         = 4 << 10
	maxResponseBody      = 32 << 20
)

// SubmissionAck is the parsed backend response. JSON responses fill Fields (and ImageURL
// when the backend returns one); image responses fill Image.
type SubmissionAck struct {
	Status      int            `json:"status"`
	ContentType string         `json:"contentType"`
	ImageURL    string         `json:"imageUrl,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
	Image       []byte         `json:"-"`
}

type SubmitterOptions struct {
	HTTPClient *http.Client
	UserAgent  string
}

// Submitter posts submission bodies. It never retries.
type Submitter struct {
	client    *http.Client
	userAgent string
}

func NewSubmitter(opts SubmitterOptions) *Submitter {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: submitDefaultTimeout}
	}
	return &Submitter{client: client, userAgent: strings.TrimSpace(opts.UserAgent)}
}

// Submit performs exactly one POST of body to endpoint. Transport failures, non-2xx
// statuses and unparseable responses are returned as *domain.SubmissionError.
func (s *Submitter) Submit(ctx context.Context, body payload.SubmissionBody, endpoint string) (*SubmissionAck, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, &domain.ConfigurationError{Feature: "generation backend", Key: "GENERATION_ENDPOINT"}
	}
	reader, contentType, err := body.Reader()
	if err != nil {
		return nil, &domain.SubmissionError{Reason: domain.ReasonTransport, Message: "encode body", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return nil, &domain.SubmissionError{Reason: domain.ReasonTransport, Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json, image/*")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &domain.SubmissionError{Reason: domain.ReasonTransport, Message: err.Error(), Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(snippet))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &domain.SubmissionError{Status: resp.StatusCode, Reason: domain.ReasonHTTPStatus, Message: msg}
	}
	return parseAck(resp)
}

func parseAck(resp *http.Response) (*SubmissionAck, error) {
	raw := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		mediaType = ""
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &domain.SubmissionError{Status: resp.StatusCode, Reason: domain.ReasonTransport, Message: "read response", Err: err}
	}
	ack := &SubmissionAck{Status: resp.StatusCode, ContentType: mediaType}

	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		if len(strings.TrimSpace(string(data))) == 0 {
			return ack, nil
		}
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, &domain.SubmissionError{Status: resp.StatusCode, Reason: domain.ReasonBadResponse, Message: "malformed JSON response", Err: err}
		}
		ack.Fields = fields
		for _, key := range []string{"image_url", "imageUrl", "url"} {
			if v, ok := fields[key].(string); ok && v != "" {
				ack.ImageURL = v
				break
			}
		}
		return ack, nil
	case strings.HasPrefix(mediaType, "image/"):
		if len(data) == 0 {
			return nil, &domain.SubmissionError{Status: resp.StatusCode, Reason: domain.ReasonBadResponse, Message: "empty image response"}
		}
		ack.Image = data
		return ack, nil
	case resp.StatusCode == http.StatusNoContent:
		return ack, nil
	default:
		return nil, &domain.SubmissionError{
			Status:  resp.StatusCode,
			Reason:  domain.ReasonBadResponse,
			Message: fmt.Sprintf("unexpected content type %q", raw),
		}
	}
}

// IsRetryable reports whether err came from the network rather than the backend
// rejecting the request. Callers decide whether to offer a retry.
func IsRetryable(err error) bool {
	var subErr *domain.SubmissionError
	if !errors.As(err, &subErr) {
		return false
	}
	return subErr.Reason == domain.ReasonTransport || subErr.Status >= 500
}
