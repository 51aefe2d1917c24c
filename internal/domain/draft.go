package domain

import (
	"strings"
	"time"
)

// GeneratorMode selects the defaulting rules applied at submission time.
type GeneratorMode string

const (
	// GeneratorModeGuided is the structured Q&A flow; style, color and mood are required
	// and receive defaults when absent.
	GeneratorModeGuided GeneratorMode = "guided"
	// GeneratorModeFreestyle leaves every style field optional.
	GeneratorModeFreestyle GeneratorMode = "freestyle"
)

// ParseGeneratorMode maps free-form input to a mode. Unknown values, including the
// "tattty" generator type, resolve to guided.
func ParseGeneratorMode(v string) GeneratorMode {
	switch GeneratorMode(strings.ToLower(strings.TrimSpace(v))) {
	case GeneratorModeFreestyle:
		return GeneratorModeFreestyle
	default:
		return GeneratorModeGuided
	}
}

// Image is an uploaded reference image held by a draft.
type Image struct {
	Filename string
	MIME     string
	Data     []byte
}

// Clone returns a deep copy of the image.
func (img Image) Clone() Image {
	out := img
	if img.Data != nil {
		out.Data = append([]byte(nil), img.Data...)
	}
	return out
}

// Draft is the mutable, in-progress record of one generation attempt. Empty strings mean
// the field was not chosen.
type Draft struct {
	QuestionOne string  `json:"questionOne"`
	QuestionTwo string  `json:"questionTwo"`
	Style       string  `json:"style,omitempty"`
	Placement   string  `json:"placement,omitempty"`
	Size        string  `json:"size,omitempty"`
	Color       string  `json:"color,omitempty"`
	Mood        string  `json:"mood,omitempty"`
	AspectRatio string  `json:"aspectRatio,omitempty"`
	OutputType  string  `json:"outputType,omitempty"`
	Model       string  `json:"model,omitempty"`
	Images      []Image `json:"-"`
}

// Clone returns a deep copy so callers never share image buffers with the store.
func (d Draft) Clone() Draft {
	out := d
	if d.Images != nil {
		out.Images = make([]Image, len(d.Images))
		for i, img := range d.Images {
			out.Images[i] = img.Clone()
		}
	}
	return out
}

// SourceCard carries the narrative answers and reference images of a request.
type SourceCard struct {
	QuestionOne string  `json:"questionOne"`
	QuestionTwo string  `json:"questionTwo"`
	Images      []Image `json:"-"`
}

// RequestOptions carries the catalog selections of a request after defaulting.
type RequestOptions struct {
	Style       string `json:"style,omitempty"`
	Placement   string `json:"placement,omitempty"`
	Size        string `json:"size,omitempty"`
	Color       string `json:"color,omitempty"`
	Mood        string `json:"mood,omitempty"`
	AspectRatio string `json:"aspectRatio"`
	OutputType  string `json:"outputType"`
	Model       string `json:"model"`
}

// FinalizedRequest is a validated, defaulted copy of a draft ready for serialization.
// It owns its image buffers; nothing else holds a reference to them.
type FinalizedRequest struct {
	SourceCard SourceCard     `json:"sourceCard"`
	Options    RequestOptions `json:"options"`
	SessionID  string         `json:"sessionId"`
	Timestamp  time.Time      `json:"timestamp"`
	UserID     string         `json:"userId,omitempty"`
	Mode       GeneratorMode  `json:"-"`
}

// ImageCount reports how many reference images the request carries.
func (f FinalizedRequest) ImageCount() int {
	return len(f.SourceCard.Images)
}

// WithImages returns a copy of the request whose images are replaced by imgs.
func (f FinalizedRequest) WithImages(imgs []Image) FinalizedRequest {
	out := f
	out.SourceCard.Images = make([]Image, len(imgs))
	for i, img := range imgs {
		out.SourceCard.Images[i] = img.Clone()
	}
	return out
}
