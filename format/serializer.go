// Package format renders a canonical tag list into the prompt string each
// image-generation back-end expects. Every target format is one entry in a
// strategy table; the back-ends disagree on how emphasis is written (bracket
// weights, adverbs in prose, or nothing at all), so each renderer owns its
// convention outright.
package format

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"tagpipe/types"
)

// ErrUnknownFormat is returned for a format id outside the supported set
var ErrUnknownFormat = errors.New("unknown output format")

// Format identifies a serialization target
type Format int

const (
	FormatSDXL Format = iota
	FormatFlux
	FormatImageFX
	FormatImageFXNatural
	FormatNatural
	FormatWeighted
)

// AllFormats lists every supported format in presentation order
var AllFormats = []Format{
	FormatSDXL,
	FormatFlux,
	FormatImageFX,
	FormatImageFXNatural,
	FormatNatural,
	FormatWeighted,
}

// String returns the wire id of the Format
func (f Format) String() string {
	switch f {
	case FormatSDXL:
		return "sdxl"
	case FormatFlux:
		return "flux"
	case FormatImageFX:
		return "imagefx"
	case FormatImageFXNatural:
		return "imagefx-natural"
	case FormatNatural:
		return "natural"
	case FormatWeighted:
		return "weighted"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ParseFormat converts a wire id to a Format
func ParseFormat(id string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(id)) {
	case "sdxl":
		return FormatSDXL, nil
	case "flux":
		return FormatFlux, nil
	case "imagefx":
		return FormatImageFX, nil
	case "imagefx-natural", "imagefx_natural":
		return FormatImageFXNatural, nil
	case "natural":
		return FormatNatural, nil
	case "weighted":
		return FormatWeighted, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, id)
	}
}

// MarshalText implements encoding.TextMarshaler
func (f Format) MarshalText() ([]byte, error) {
	if _, ok := renderers[f]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (f *Format) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Options tunes the format conventions that are empirical rather than fixed
type Options struct {
	FluxHighThreshold    float64        `json:"flux_high_threshold"` // flux adds "highly " above this
	FluxLowThreshold     float64        `json:"flux_low_threshold"`  // flux adds "slightly " below this
	ImageFXNaturalPrefix string         `json:"imagefx_natural_prefix"`
	Language             types.Language `json:"language"` // surface form used by natural and weighted
}

// DefaultOptions returns the stock conventions
func DefaultOptions() Options {
	return Options{
		FluxHighThreshold:    1.2,
		FluxLowThreshold:     0.8,
		ImageFXNaturalPrefix: "Create an image of ",
		Language:             types.LanguageEN,
	}
}

type renderer func(tags []types.Tag, opts Options) string

var renderers = map[Format]renderer{
	FormatSDXL:           renderSDXL,
	FormatFlux:           renderFlux,
	FormatImageFX:        renderImageFX,
	FormatImageFXNatural: renderImageFXNatural,
	FormatNatural:        renderNatural,
	FormatWeighted:       renderWeighted,
}

// Serializer renders tag lists with a fixed set of Options
type Serializer struct {
	opts Options
}

// NewSerializer creates a Serializer with the given options
func NewSerializer(opts Options) *Serializer {
	return &Serializer{opts: opts}
}

// Options returns the serializer's conventions
func (s *Serializer) Options() Options {
	return s.opts
}

// Serialize renders tags for format f. Empty input yields "" for every format.
func (s *Serializer) Serialize(tags []types.Tag, f Format) (string, error) {
	render, ok := renderers[f]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, f)
	}
	if len(tags) == 0 {
		return "", nil
	}
	return render(tags, s.opts), nil
}

// MustSerialize is Serialize for callers that only pass known formats; it panics otherwise
func (s *Serializer) MustSerialize(tags []types.Tag, f Format) string {
	out, err := s.Serialize(tags, f)
	if err != nil {
		panic(err)
	}
	return out
}

// SerializeAll renders tags in every supported format
func (s *Serializer) SerializeAll(tags []types.Tag) map[Format]string {
	out := make(map[Format]string, len(AllFormats))
	for _, f := range AllFormats {
		out[f] = s.MustSerialize(tags, f)
	}
	return out
}

// Serialize renders tags with DefaultOptions
func Serialize(tags []types.Tag, f Format) (string, error) {
	return NewSerializer(DefaultOptions()).Serialize(tags, f)
}

// sdxl: "(text:1.20)" above 1.0, "[text:0.80]" below, bare at exactly 1.0
func renderSDXL(tags []types.Tag, _ Options) string {
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		switch {
		case t.Weight > 1.0:
			parts = append(parts, fmt.Sprintf("(%s:%.2f)", t.EN, t.Weight))
		case t.Weight < 1.0:
			parts = append(parts, fmt.Sprintf("[%s:%.2f]", t.EN, t.Weight))
		default:
			parts = append(parts, t.EN)
		}
	}
	return strings.Join(parts, ", ")
}

// flux: emphasis as adverbs, rendered as one capitalized sentence
func renderFlux(tags []types.Tag, opts Options) string {
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		switch {
		case t.Weight > opts.FluxHighThreshold:
			parts = append(parts, "highly "+t.EN)
		case t.Weight < opts.FluxLowThreshold:
			parts = append(parts, "slightly "+t.EN)
		default:
			parts = append(parts, t.EN)
		}
	}
	return capitalizeFirst(strings.Join(parts, ", ")) + "."
}

func renderImageFX(tags []types.Tag, _ Options) string {
	return joinText(tags, types.LanguageEN, " ")
}

func renderImageFXNatural(tags []types.Tag, opts Options) string {
	return opts.ImageFXNaturalPrefix + joinText(tags, types.LanguageEN, ", ")
}

func renderNatural(tags []types.Tag, opts Options) string {
	return joinText(tags, opts.Language, ", ")
}

// weighted: "(text:w)" with the raw weight for anything other than 1.0
func renderWeighted(tags []types.Tag, opts Options) string {
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		text := t.Text(opts.Language)
		if t.Weight != types.DefaultWeight {
			text = "(" + text + ":" + strconv.FormatFloat(t.Weight, 'f', -1, 64) + ")"
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, ", ")
}

func joinText(tags []types.Tag, lang types.Language, sep string) string {
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		parts = append(parts, t.Text(lang))
	}
	return strings.Join(parts, sep)
}

func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
