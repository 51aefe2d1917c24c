package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tattty/internal/domain"
)

const (
	backendDefaultTimeout = 30 * time.Second
	defaultStoryPath      = "/api/ai/enhance"
	defaultPromptPath     = "/api/ai/prompt"
)

type BackendOptions struct {
	BaseURL    string
	StoryPath  string
	PromptPath string
	HTTPClient *http.Client
}

// BackendEnhancer delegates enhancement to the project's own AI backend.
type BackendEnhancer struct {
	baseURL    string
	storyPath  string
	promptPath string
	client     *http.Client
}

// NewBackendEnhancer accepts an empty base URL; every call then fails with a
// *domain.ConfigurationError instead of reaching the network.
func NewBackendEnhancer(opts BackendOptions) *BackendEnhancer {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: backendDefaultTimeout}
	}
	return &BackendEnhancer{
		baseURL:    strings.TrimSpace(opts.BaseURL),
		storyPath:  coalesce(opts.StoryPath, defaultStoryPath),
		promptPath: coalesce(opts.PromptPath, defaultPromptPath),
		client:     client,
	}
}

type backendStoryResponse struct {
	Result struct {
		EnhancedStory string `json:"enhanced_story"`
	} `json:"result"`
}

func (b *BackendEnhancer) Enhance(ctx context.Context, req EnhanceRequest) (*EnhanceResponse, error) {
	var out EnhanceResponse
	if err := b.post(ctx, b.promptPath, req, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.EnhancedPrompt) == "" {
		return nil, errors.New("backend error: missing enhancedPrompt")
	}
	out.Provider = backendProviderName
	return &out, nil
}

func (b *BackendEnhancer) EnhanceStory(ctx context.Context, story string) (string, error) {
	var out backendStoryResponse
	if err := b.post(ctx, b.storyPath, map[string]string{"story": story}, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Result.EnhancedStory) == "" {
		return "", errors.New("backend error: missing result.enhanced_story")
	}
	return out.Result.EnhancedStory, nil
}

func (b *BackendEnhancer) endpoint(path string) (string, error) {
	if b.baseURL == "" {
		return "", &domain.ConfigurationError{Feature: "prompt backend", Key: "PROMPT_BACKEND_URL"}
	}
	base, err := url.Parse(b.baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("prompt backend: invalid base url %q", b.baseURL)
	}
	// the base path is a prefix, so https://host/v2 posts to https://host/v2/api/ai/...
	return base.JoinPath(path).String(), nil
}

func (b *BackendEnhancer) post(ctx context.Context, path string, in, out any) error {
	endpoint, err := b.endpoint(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(in); err != nil {
		return fmt.Errorf("prompt backend: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return fmt.Errorf("prompt backend: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("prompt backend: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	isJSON := mediaType == "application/json"
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("backend error: HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if isJSON {
			var e struct {
				Error string `json:"error"`
			}
			if json.Unmarshal(body, &e) == nil && e.Error != "" {
				msg = e.Error
			}
		} else if text := strings.TrimSpace(string(body)); text != "" {
			msg += " - " + text
		}
		return errors.New(msg)
	}
	if !isJSON {
		return errors.New("backend error: unsupported content type")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("prompt backend: decode response: %w", err)
	}
	return nil
}

var _ Enhancer = (*BackendEnhancer)(nil)
