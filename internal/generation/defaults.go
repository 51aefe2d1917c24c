package generation

import "tattty/internal/catalog"

const (
	// DefaultStyle is applied in guided mode when no style was chosen.
	DefaultStyle = "Traditional"
	// DefaultColor is applied in guided mode when no color preference was chosen.
	DefaultColor = "Black & Grey"
	// DefaultMood is applied in guided mode when no mood was chosen.
	DefaultMood = "Happy"
	// DefaultAspectRatio is applied in every mode.
	DefaultAspectRatio = "1:1"
	// DefaultOutputType is applied in every mode.
	DefaultOutputType = catalog.OutputTypeStencil
	// DefaultModel is applied in every mode.
	DefaultModel = catalog.ModelLarge

	// MinQuestionChars is the minimum trimmed length of each narrative answer.
	MinQuestionChars = 50
	// MaxQuestionChars caps each narrative answer.
	MaxQuestionChars = 2000
	// MaxImages caps the number of reference images per request.
	MaxImages = 5
)

// Rules carries the tunable limits of validation. The zero value is not useful; start
// from DefaultRules.
type Rules struct {
	MinQuestionChars int
	MaxQuestionChars int
	MaxImages        int
}

// DefaultRules returns the production limits.
func DefaultRules() Rules {
	return Rules{
		MinQuestionChars: MinQuestionChars,
		MaxQuestionChars: MaxQuestionChars,
		MaxImages:        MaxImages,
	}
}
