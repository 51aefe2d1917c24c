package prompt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tattty/internal/domain"
)

func TestBackendEnhancerStory(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ai/enhance" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/api/ai/enhance")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"result":{"enhanced_story":"richer"}}`))
	}))
	defer srv.Close()

	b := NewBackendEnhancer(BackendOptions{BaseURL: srv.URL})
	story, err := b.EnhanceStory(context.Background(), "plain")
	if err != nil {
		t.Fatalf("EnhanceStory: %v", err)
	}
	if story != "richer" {
		t.Fatalf("story = %q, want %q", story, "richer")
	}
	if got["story"] != "plain" {
		t.Fatalf("request story = %q, want %q", got["story"], "plain")
	}
}

func TestBackendEnhancerPrompt(t *testing.T) {
	var got EnhanceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ai/prompt" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"enhancedPrompt":"detailed","negativePrompt":"blur"}`))
	}))
	defer srv.Close()

	res, err := NewBackendEnhancer(BackendOptions{BaseURL: srv.URL + "/"}).Enhance(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if res.EnhancedPrompt != "detailed" || res.NegativePrompt != "blur" {
		t.Fatalf("response = %+v", res)
	}
	if res.Provider != backendProviderName {
		t.Fatalf("Provider = %q, want %q", res.Provider, backendProviderName)
	}
	if got.GeneratorType != GeneratorTattty || got.Style != "Traditional" {
		t.Fatalf("request = %+v", got)
	}
}

func TestBackendEnhancerErrors(t *testing.T) {
	cases := []struct {
		name    string
		ctype   string
		status  int
		body    string
		wantMsg string
	}{
		{name: "json_error_field", ctype: "application/json", status: 400, body: `{"error":"story too short"}`, wantMsg: "story too short"},
		{name: "text_error", ctype: "text/plain", status: 502, body: "upstream down", wantMsg: "HTTP 502 Bad Gateway - upstream down"},
		{name: "non_json_success", ctype: "text/html", status: 200, body: "<html>", wantMsg: "unsupported content type"},
		{name: "missing_result", ctype: "application/json", status: 200, body: `{}`, wantMsg: "missing result.enhanced_story"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tc.ctype)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewBackendEnhancer(BackendOptions{BaseURL: srv.URL}).EnhanceStory(context.Background(), "x")
			if err == nil || !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("err = %v, want containing %q", err, tc.wantMsg)
			}
		})
	}
}

func TestBackendEnhancerMissingBaseURL(t *testing.T) {
	called := false
	b := NewBackendEnhancer(BackendOptions{HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		called = true
		return nil, errors.New("unreachable")
	})}})
	_, err := b.EnhanceStory(context.Background(), "x")
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigurationError", err)
	}
	if cfgErr.Key != "PROMPT_BACKEND_URL" {
		t.Fatalf("key = %q", cfgErr.Key)
	}
	if called {
		t.Fatal("transport must not be used without a base url")
	}
}

func TestBackendEnhancerKeepsBasePathPrefix(t *testing.T) {
	cases := []struct {
		name string
		base string
		want string
	}{
		{name: "no_prefix", base: "https://prompts.example", want: "https://prompts.example/api/ai/prompt"},
		{name: "prefix", base: "https://prompts.example/v2", want: "https://prompts.example/v2/api/ai/prompt"},
		{name: "prefix_trailing_slash", base: "https://prompts.example/v2/", want: "https://prompts.example/v2/api/ai/prompt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			b := NewBackendEnhancer(BackendOptions{BaseURL: tc.base, HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
				got = r.URL.String()
				return &http.Response{
					StatusCode: http.StatusOK,
					Header:     http.Header{"Content-Type": []string{"application/json"}},
					Body:       io.NopCloser(strings.NewReader(`{"enhancedPrompt":"ok"}`)),
				}, nil
			})}})
			if _, err := b.Enhance(context.Background(), sampleRequest()); err != nil {
				t.Fatalf("Enhance: %v", err)
			}
			if got != tc.want {
				t.Fatalf("url = %q, want %q", got, tc.want)
			}
		})
	}
}
