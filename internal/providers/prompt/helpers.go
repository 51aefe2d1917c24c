package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	staticProviderName  = "static"
	backendProviderName = "backend"
	openAIProviderName  = "openai"
)

type modelEnhancePayload struct {
	EnhancedPrompt string `json:"enhancedPrompt"`
	NegativePrompt string `json:"negativePrompt"`
}

type modelStoryPayload struct {
	Story string `json:"story"`
}

const systemPrompt = `You are an expert tattoo design consultant and prompt engineer. Take the user's answers and selections and write one highly detailed prompt for an image generation model. Use style-specific terminology, plan the composition for the aspect ratio, emphasise linework for stencils and shading for color, carry the mood into the visual atmosphere, keep it under 500 words and describe only visual elements. Respond strictly with JSON: {"enhancedPrompt":string,"negativePrompt":string}.`

func buildEnhancePromptPayload(req EnhanceRequest) string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "generator_type=%q\n", req.GeneratorType)
	fmt.Fprintf(sb, "what_it_represents=%q\n", req.QuestionOne)
	fmt.Fprintf(sb, "details_to_capture=%q\n", req.QuestionTwo)
	fmt.Fprintf(sb, "style=%q color=%q mood=%q\n", req.Style, req.Color, req.Mood)
	fmt.Fprintf(sb, "placement=%q size=%q\n", req.Placement, req.Size)
	fmt.Fprintf(sb, "output_type=%q aspect_ratio=%q", req.OutputType, req.AspectRatio)
	return sb.String()
}

func buildStoryPromptPayload(story string) string {
	return fmt.Sprintf("Rewrite the following tattoo story so it is vivid and specific while keeping the author's meaning and first-person voice. Respond strictly as JSON: {\"story\":string}. story=%q", story)
}

func coalesce(values ...string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}

func parseModelPayload[T any](raw string) (T, error) {
	var zero T
	cleaned := extractJSONFragment(raw)
	if cleaned == "" {
		return zero, errors.New("empty payload")
	}
	var decoded T
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return zero, err
	}
	return decoded, nil
}

func extractJSONFragment(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	text = trimCodeFence(text)
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "]}")
	if start >= 0 && end >= start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

func withFallbackReason(res *EnhanceResponse, reason string) *EnhanceResponse {
	if res == nil {
		return nil
	}
	if res.Provider == "" {
		res.Provider = staticProviderName
	}
	if res.Metadata == nil {
		res.Metadata = map[string]string{}
	}
	if reason != "" {
		res.Metadata["fallback_reason"] = reason
	}
	return res
}
