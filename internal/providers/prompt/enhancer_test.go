package prompt

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"tattty/internal/domain"
)

func TestRequestFromFinalized(t *testing.T) {
	f := domain.FinalizedRequest{
		SourceCard: domain.SourceCard{QuestionOne: "one", QuestionTwo: "two"},
		Options: domain.RequestOptions{
			Style:       "Japanese",
			Color:       "Full Color",
			Mood:        "Bold",
			Placement:   "Back",
			Size:        "Large",
			AspectRatio: "9:16",
			OutputType:  "color",
			Model:       "sd3.5-large",
		},
		Mode: domain.GeneratorModeFreestyle,
	}
	want := EnhanceRequest{
		GeneratorType: GeneratorFreestyle,
		QuestionOne:   "one",
		QuestionTwo:   "two",
		Style:         "Japanese",
		Color:         "Full Color",
		Placement:     "Back",
		Size:          "Large",
		Mood:          "Bold",
		OutputType:    "color",
		AspectRatio:   "9:16",
	}
	if diff := cmp.Diff(want, RequestFromFinalized(f)); diff != "" {
		t.Fatalf("RequestFromFinalized mismatch (-want +got):\n%s", diff)
	}

	f.Mode = domain.GeneratorModeGuided
	if got := RequestFromFinalized(f).GeneratorType; got != GeneratorTattty {
		t.Fatalf("GeneratorType = %q, want %q", got, GeneratorTattty)
	}
}

func TestStaticEnhancerStencil(t *testing.T) {
	res, err := NewStaticEnhancer().Enhance(context.Background(), sampleRequest())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Traditional tattoo design of A lighthouse", "bold black outlines", "nostalgic mood", "forearm", "stencil linework", "Centered square composition"} {
		if !strings.Contains(res.EnhancedPrompt, want) {
			t.Fatalf("prompt %q missing %q", res.EnhancedPrompt, want)
		}
	}
	if !strings.Contains(res.NegativePrompt, "color fill") {
		t.Fatalf("negative prompt = %q", res.NegativePrompt)
	}
	if res.Provider != staticProviderName {
		t.Fatalf("Provider = %q", res.Provider)
	}
}

func TestStaticEnhancerDeterministic(t *testing.T) {
	req := sampleRequest()
	req.OutputType = "color"
	req.AspectRatio = "16:9"
	a, _ := NewStaticEnhancer().Enhance(context.Background(), req)
	b, _ := NewStaticEnhancer().Enhance(context.Background(), req)
	if a.EnhancedPrompt != b.EnhancedPrompt {
		t.Fatal("static prompt is not deterministic")
	}
	if !strings.Contains(a.EnhancedPrompt, "Wide horizontal composition") {
		t.Fatalf("prompt = %q", a.EnhancedPrompt)
	}
	if strings.Contains(a.NegativePrompt, "color fill") {
		t.Fatalf("color output must not exclude color: %q", a.NegativePrompt)
	}
}

func TestExtractJSONFragment(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"Sure! {\"a\":1} done":     `{"a":1}`,
		"   ":                      "",
	}
	for in, want := range cases {
		if got := extractJSONFragment(in); got != want {
			t.Fatalf("extractJSONFragment(%q) = %q, want %q", in, got, want)
		}
	}
}
