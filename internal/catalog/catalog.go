// Package catalog holds the fixed option lists a draft may select from and the lookup
// table used to validate selections.
package catalog

import (
	"strings"

	"golang.org/x/text/cases"
)

// Kind names one option catalog.
type Kind string

const (
	KindStyle       Kind = "style"
	KindPlacement   Kind = "placement"
	KindSize        Kind = "size"
	KindColor       Kind = "color"
	KindMood        Kind = "mood"
	KindAspectRatio Kind = "aspectRatio"
	KindOutputType  Kind = "outputType"
	KindModel       Kind = "model"
)

const (
	OutputTypeColor   = "color"
	OutputTypeStencil = "stencil"

	ModelLarge = "sd3.5-large"
	ModelTurbo = "sd3-turbo"
)

// Catalog is one option list as exposed to clients.
type Catalog struct {
	Kind     Kind     `json:"kind"`
	Label    string   `json:"label"`
	Required bool     `json:"required"`
	Values   []string `json:"values"`
}

var ordered = []Catalog{
	{Kind: KindStyle, Label: "Style", Required: true, Values: []string{
		"Traditional", "Neo-Traditional", "Realism", "Watercolor", "Minimalist",
		"Geometric", "Japanese", "Tribal", "Blackwork", "Dotwork",
	}},
	{Kind: KindColor, Label: "Color", Required: true, Values: []string{
		"Black & Grey", "Color", "Blackwork", "Watercolor",
	}},
	{Kind: KindPlacement, Label: "Where", Values: []string{
		"Forearm", "Upper Arm", "Shoulder", "Back", "Chest",
		"Leg", "Ankle", "Wrist", "Neck", "Rib",
	}},
	{Kind: KindSize, Label: "Size", Values: []string{
		"Small", "Medium", "Large", "Extra Large",
	}},
	{Kind: KindMood, Label: "Mood", Required: true, Values: []string{
		"Happy", "Dark", "Calm", "Bold", "Romantic", "Spiritual", "Energetic", "Minimalist",
		"Mysterious", "Playful", "Fierce", "Peaceful", "Adventurous", "Elegant", "Free", "Wild",
		"Joyful", "Melancholy", "Passionate", "Mystic", "Rebellious", "Serene", "Powerful", "Dreamy",
	}},
	{Kind: KindAspectRatio, Label: "Aspect Ratio", Values: []string{
		"21:9", "16:9", "3:2", "5:4", "1:1", "4:5", "9:16", "9:21",
	}},
	{Kind: KindOutputType, Label: "Output", Values: []string{OutputTypeColor, OutputTypeStencil}},
	{Kind: KindModel, Label: "Model", Values: []string{ModelLarge, ModelTurbo}},
}

// index maps each kind to folded value -> canonical spelling.
var index = buildIndex()

var kindAliases = map[string]Kind{
	"where":            KindPlacement,
	"colorpreference":  KindColor,
	"color_preference": KindColor,
	"tattoo_style":     KindStyle,
	"aspect_ratio":     KindAspectRatio,
	"aspectratio":      KindAspectRatio,
	"output_type":      KindOutputType,
	"outputtype":       KindOutputType,
}

func buildIndex() map[Kind]map[string]string {
	folder := cases.Fold()
	out := make(map[Kind]map[string]string, len(ordered))
	for _, c := range ordered {
		m := make(map[string]string, len(c.Values))
		for _, v := range c.Values {
			m[folder.String(v)] = v
		}
		out[c.Kind] = m
	}
	return out
}

// All returns a copy of every catalog in display order.
func All() []Catalog {
	out := make([]Catalog, len(ordered))
	for i, c := range ordered {
		out[i] = c
		out[i].Values = append([]string(nil), c.Values...)
	}
	return out
}

// Values returns the canonical values of one catalog, or nil for an unknown kind.
func Values(kind Kind) []string {
	for _, c := range ordered {
		if c.Kind == kind {
			return append([]string(nil), c.Values...)
		}
	}
	return nil
}

// ParseKind resolves a field name, including the legacy aliases used by older clients.
func ParseKind(field string) (Kind, bool) {
	field = strings.TrimSpace(field)
	if _, ok := index[Kind(field)]; ok {
		return Kind(field), true
	}
	if k, ok := kindAliases[strings.ToLower(field)]; ok {
		return k, true
	}
	return "", false
}

// Lookup resolves value to its canonical spelling within kind using Unicode case
// folding. It reports false for values outside the catalog.
func Lookup(kind Kind, value string) (string, bool) {
	m, ok := index[kind]
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	// Casers are stateful, so each lookup folds with its own.
	canonical, ok := m[cases.Fold().String(value)]
	return canonical, ok
}

// Contains reports whether value is a canonical member of kind.
func Contains(kind Kind, value string) bool {
	canonical, ok := Lookup(kind, value)
	return ok && canonical == value
}
