package catalog

import (
	"strconv"
	"strings"
)

var modelAliases = map[string]string{
	"sd3.5-turbo": ModelTurbo,
	"quality":     ModelLarge,
	"fast":        ModelTurbo,
	"sd35-large":  ModelLarge,
	"sd3.5":       ModelLarge,
}

// backendAspectRatios maps client ratios to the closest ratio the generation backend
// accepts. Ratios missing here are passed through unchanged.
var backendAspectRatios = map[string]string{
	"3:2": "16:9",
	"5:4": "1:1",
	"4:5": "1:1",
}

// NormalizeModel resolves a model name or alias. The second value is "" for an exact
// match, "alias" when an alias was resolved and "defaulted" when the input was unknown.
func NormalizeModel(name string) (string, string) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ModelLarge, ""
	}
	normalized := strings.ToLower(trimmed)
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	if canonical, ok := Lookup(KindModel, normalized); ok {
		return canonical, ""
	}
	if alias, ok := modelAliases[normalized]; ok {
		return alias, "alias"
	}
	return ModelLarge, "defaulted"
}

// BackendAspectRatio maps a catalog aspect ratio onto the set the backend supports. The
// second value is "mapped" when the ratio was substituted.
func BackendAspectRatio(ratio string) (string, string) {
	ratio = strings.TrimSpace(ratio)
	if mapped, ok := backendAspectRatios[ratio]; ok {
		return mapped, "mapped"
	}
	return ratio, ""
}

// AspectRatioParts splits "W:H" into its positive integer parts.
func AspectRatioParts(ratio string) (int, int, bool) {
	w, h, ok := strings.Cut(strings.TrimSpace(ratio), ":")
	if !ok {
		return 0, 0, false
	}
	wi, errW := strconv.Atoi(w)
	hi, errH := strconv.Atoi(h)
	if errW != nil || errH != nil || wi <= 0 || hi <= 0 {
		return 0, 0, false
	}
	return wi, hi, true
}
