// Package generation validates drafts and turns them into finalized generation requests.
package generation

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"tattty/internal/catalog"
	"tattty/internal/domain"
)

// Field names used in validation errors; they match the JSON names of the request.
const (
	FieldQuestionOne = "questionOne"
	FieldQuestionTwo = "questionTwo"
	FieldImages      = "images"
)

// Finalizer applies validation rules and defaults to drafts.
type Finalizer struct {
	rules Rules
	now   func() time.Time
	newID func() string
}

// Option customises a Finalizer.
type Option func(*Finalizer)

// WithRules overrides the validation limits.
func WithRules(r Rules) Option {
	return func(f *Finalizer) { f.rules = r }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(f *Finalizer) {
		if now != nil {
			f.now = now
		}
	}
}

// WithIDGenerator overrides the session id source.
func WithIDGenerator(fn func() string) Option {
	return func(f *Finalizer) {
		if fn != nil {
			f.newID = fn
		}
	}
}

// NewFinalizer builds a Finalizer with production rules, the wall clock and uuid
// session ids unless overridden.
func NewFinalizer(opts ...Option) *Finalizer {
	f := &Finalizer{
		rules: DefaultRules(),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var defaultFinalizer = NewFinalizer()

// ValidateAndFinalize validates d with the default Finalizer.
func ValidateAndFinalize(d domain.Draft, mode domain.GeneratorMode) (domain.FinalizedRequest, error) {
	return defaultFinalizer.ValidateAndFinalize(d, mode)
}

// ValidateAndFinalize checks every rule against d and, when none fail, returns a copy
// with defaults applied and fresh session metadata. All violations are reported together
// as domain.ValidationErrors. The draft itself is never modified.
func (f *Finalizer) ValidateAndFinalize(d domain.Draft, mode domain.GeneratorMode) (domain.FinalizedRequest, error) {
	var errs domain.ValidationErrors

	q1, qErrs := f.checkQuestion(FieldQuestionOne, d.QuestionOne)
	errs = append(errs, qErrs...)
	q2, qErrs := f.checkQuestion(FieldQuestionTwo, d.QuestionTwo)
	errs = append(errs, qErrs...)

	opts := domain.RequestOptions{}
	var err *domain.ValidationError
	if opts.Style, err = resolveOption(catalog.KindStyle, d.Style); err != nil {
		errs = append(errs, *err)
	}
	if opts.Placement, err = resolveOption(catalog.KindPlacement, d.Placement); err != nil {
		errs = append(errs, *err)
	}
	if opts.Size, err = resolveOption(catalog.KindSize, d.Size); err != nil {
		errs = append(errs, *err)
	}
	if opts.Color, err = resolveOption(catalog.KindColor, d.Color); err != nil {
		errs = append(errs, *err)
	}
	if opts.Mood, err = resolveOption(catalog.KindMood, d.Mood); err != nil {
		errs = append(errs, *err)
	}
	if opts.AspectRatio, err = resolveOption(catalog.KindAspectRatio, d.AspectRatio); err != nil {
		errs = append(errs, *err)
	}
	if opts.OutputType, err = resolveOption(catalog.KindOutputType, d.OutputType); err != nil {
		errs = append(errs, *err)
	}
	if opts.Model, err = resolveModel(d.Model); err != nil {
		errs = append(errs, *err)
	}

	if f.rules.MaxImages > 0 && len(d.Images) > f.rules.MaxImages {
		errs = append(errs, domain.ValidationError{
			Field:    FieldImages,
			Reason:   domain.ReasonTooMany,
			Required: f.rules.MaxImages,
			Actual:   len(d.Images),
		})
	}

	if len(errs) > 0 {
		return domain.FinalizedRequest{}, errs
	}

	applyDefaults(&opts, mode)

	req := domain.FinalizedRequest{
		SourceCard: domain.SourceCard{
			QuestionOne: q1,
			QuestionTwo: q2,
		},
		Options:   opts,
		SessionID: f.newID(),
		Timestamp: f.now().UTC().Round(0),
		Mode:      mode,
	}
	return req.WithImages(d.Images), nil
}

func (f *Finalizer) checkQuestion(field, text string) (string, domain.ValidationErrors) {
	trimmed := strings.TrimSpace(text)
	n := utf8.RuneCountInString(trimmed)
	if n < f.rules.MinQuestionChars {
		return trimmed, domain.ValidationErrors{{
			Field:    field,
			Reason:   domain.ReasonTooShort,
			Required: f.rules.MinQuestionChars,
			Actual:   n,
		}}
	}
	if f.rules.MaxQuestionChars > 0 && n > f.rules.MaxQuestionChars {
		return trimmed, domain.ValidationErrors{{
			Field:    field,
			Reason:   domain.ReasonTooLong,
			Required: f.rules.MaxQuestionChars,
			Actual:   n,
		}}
	}
	return trimmed, nil
}

// resolveOption returns the canonical spelling of value, "" when value is absent, or a
// validation error when value is outside the catalog.
func resolveOption(kind catalog.Kind, value string) (string, *domain.ValidationError) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	canonical, ok := catalog.Lookup(kind, value)
	if !ok {
		return "", &domain.ValidationError{Field: string(kind), Reason: domain.ReasonInvalidOption, Value: value}
	}
	return canonical, nil
}

func resolveModel(value string) (string, *domain.ValidationError) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	model, reason := catalog.NormalizeModel(value)
	if reason == "defaulted" {
		return "", &domain.ValidationError{Field: string(catalog.KindModel), Reason: domain.ReasonInvalidOption, Value: value}
	}
	return model, nil
}

func applyDefaults(opts *domain.RequestOptions, mode domain.GeneratorMode) {
	if mode != domain.GeneratorModeFreestyle {
		if opts.Style == "" {
			opts.Style = DefaultStyle
		}
		if opts.Color == "" {
			opts.Color = DefaultColor
		}
		if opts.Mood == "" {
			opts.Mood = DefaultMood
		}
	}
	if opts.AspectRatio == "" {
		opts.AspectRatio = DefaultAspectRatio
	}
	if opts.OutputType == "" {
		opts.OutputType = DefaultOutputType
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
}
