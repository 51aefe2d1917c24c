package prompt

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tattty/internal/catalog"
	"tattty/internal/domain"
)

// Generator types understood by prompt backends.
const (
	GeneratorTattty    = "tattty"
	GeneratorFreestyle = "freestyle"
)

// EnhanceRequest is the prompt-enhancement contract. It is always derived from a
// finalized request with RequestFromFinalized.
type EnhanceRequest struct {
	GeneratorType string `json:"generatorType"`
	QuestionOne   string `json:"questionOne"`
	QuestionTwo   string `json:"questionTwo"`
	Style         string `json:"style,omitempty"`
	Color         string `json:"color,omitempty"`
	Placement     string `json:"placement,omitempty"`
	Size          string `json:"size,omitempty"`
	Mood          string `json:"mood,omitempty"`
	OutputType    string `json:"outputType"`
	AspectRatio   string `json:"aspectRatio"`
}

type EnhanceResponse struct {
	EnhancedPrompt string            `json:"enhancedPrompt"`
	NegativePrompt string            `json:"negativePrompt,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Provider       string            `json:"-"`
}

// Enhancer turns a finalized request into an image-generation prompt and rewrites free
// text stories for the Ask TaTTTy helper.
type Enhancer interface {
	Enhance(ctx context.Context, req EnhanceRequest) (*EnhanceResponse, error)
	EnhanceStory(ctx context.Context, story string) (string, error)
}

// RequestFromFinalized maps a finalized request onto the enhancement contract. Guided
// mode is reported as the "tattty" generator.
func RequestFromFinalized(f domain.FinalizedRequest) EnhanceRequest {
	gen := GeneratorTattty
	if f.Mode == domain.GeneratorModeFreestyle {
		gen = GeneratorFreestyle
	}
	return EnhanceRequest{
		GeneratorType: gen,
		QuestionOne:   f.SourceCard.QuestionOne,
		QuestionTwo:   f.SourceCard.QuestionTwo,
		Style:         f.Options.Style,
		Color:         f.Options.Color,
		Placement:     f.Options.Placement,
		Size:          f.Options.Size,
		Mood:          f.Options.Mood,
		OutputType:    f.Options.OutputType,
		AspectRatio:   f.Options.AspectRatio,
	}
}

// StaticEnhancer assembles a prompt from the request fields without calling a model.
// It is deterministic and serves as the fallback for remote providers.
type StaticEnhancer struct{}

func NewStaticEnhancer() *StaticEnhancer {
	return &StaticEnhancer{}
}

var styleTerms = map[string]string{
	"Traditional":     "bold black outlines, limited saturated palette, classic flash composition",
	"Neo-Traditional": "bold outlines with ornamental detail and rich depth",
	"Realism":         "photorealistic shading and lifelike texture",
	"Watercolor":      "soft washes, bleeding edges and painterly splashes",
	"Minimalist":      "clean fine lines and generous negative space",
	"Geometric":       "precise linework, sacred geometry and symmetry",
	"Japanese":        "irezumi motifs, wind bars and flowing waves",
	"Tribal":          "solid black interlocking shapes",
	"Blackwork":       "heavy solid black fills and high contrast",
	"Dotwork":         "stippled shading built from fine dots",
}

func (s *StaticEnhancer) Enhance(ctx context.Context, req EnhanceRequest) (*EnhanceResponse, error) {
	lower := cases.Lower(language.English)
	sb := &strings.Builder{}

	subject := coalesce(req.QuestionOne, "an original tattoo design")
	style := coalesce(req.Style, "custom")
	fmt.Fprintf(sb, "%s tattoo design of %s", style, strings.TrimRight(subject, ". "))
	if terms, ok := styleTerms[req.Style]; ok {
		fmt.Fprintf(sb, ", %s", terms)
	}
	if d := strings.TrimSpace(req.QuestionTwo); d != "" {
		fmt.Fprintf(sb, ". Details: %s", strings.TrimRight(d, ". "))
	}
	if req.Mood != "" {
		fmt.Fprintf(sb, ". %s mood", lower.String(req.Mood))
	}
	if req.Color != "" {
		fmt.Fprintf(sb, ", %s palette", lower.String(req.Color))
	}
	if req.Placement != "" {
		fmt.Fprintf(sb, ", sized for the %s", lower.String(req.Placement))
		if req.Size != "" {
			fmt.Fprintf(sb, " (%s)", lower.String(req.Size))
		}
	}
	if req.OutputType == catalog.OutputTypeColor {
		sb.WriteString(". Full color rendering with smooth shading")
	} else {
		sb.WriteString(". Clean black stencil linework on white, no shading")
	}
	sb.WriteString(". " + composition(req.AspectRatio) + ".")

	negative := "blurry, watermark, text, extra limbs, low contrast"
	if req.OutputType != catalog.OutputTypeColor {
		negative += ", color fill, gradients"
	}
	return &EnhanceResponse{
		EnhancedPrompt: sb.String(),
		NegativePrompt: negative,
		Metadata:       map[string]string{"generator_type": coalesce(req.GeneratorType, GeneratorTattty)},
		Provider:       staticProviderName,
	}, nil
}

// EnhanceStory normalizes whitespace only; without a model there is nothing to rewrite.
func (s *StaticEnhancer) EnhanceStory(ctx context.Context, story string) (string, error) {
	return strings.Join(strings.Fields(story), " "), nil
}

func composition(ratio string) string {
	w, h, ok := catalog.AspectRatioParts(ratio)
	switch {
	case !ok || w == h:
		return "Centered square composition"
	case w > h:
		return "Wide horizontal composition"
	default:
		return "Tall vertical composition"
	}
}

var _ Enhancer = (*StaticEnhancer)(nil)
