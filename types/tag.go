package types

import (
	"fmt"
	"strings"
)

// Weight bounds shared by every stage of the tag pipeline.
const (
	MinWeight     = 0.1
	MaxWeight     = 2.0
	DefaultWeight = 1.0
	// GroupWeight is applied to a parenthesized group that carries no explicit weight suffix
	GroupWeight = 1.2
)

// ClampWeight pins a weight into [MinWeight, MaxWeight]
func ClampWeight(w float64) float64 {
	if w < MinWeight {
		return MinWeight
	}
	if w > MaxWeight {
		return MaxWeight
	}
	return w
}

// Category represents the closed set of tag categories
type Category int

const (
	CategoryOther Category = iota
	CategoryPerson
	CategoryAppearance
	CategoryClothing
	CategoryPose
	CategoryBackground
	CategoryQuality
	CategoryStyle
	CategoryComposition
	CategoryObject
)

// AllCategories lists every category in display order
var AllCategories = []Category{
	CategoryPerson,
	CategoryAppearance,
	CategoryClothing,
	CategoryPose,
	CategoryBackground,
	CategoryQuality,
	CategoryStyle,
	CategoryComposition,
	CategoryObject,
	CategoryOther,
}

// String returns the string representation of the Category
func (c Category) String() string {
	switch c {
	case CategoryPerson:
		return "person"
	case CategoryAppearance:
		return "appearance"
	case CategoryClothing:
		return "clothing"
	case CategoryPose:
		return "pose/action"
	case CategoryBackground:
		return "background"
	case CategoryQuality:
		return "quality"
	case CategoryStyle:
		return "style"
	case CategoryComposition:
		return "composition"
	case CategoryObject:
		return "object"
	default:
		return "other"
	}
}

// ParseCategory converts a string to Category with fallback to other.
// The second return value reports whether the name was recognized.
func ParseCategory(name string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "person":
		return CategoryPerson, true
	case "appearance":
		return CategoryAppearance, true
	case "clothing":
		return CategoryClothing, true
	case "pose", "action", "pose/action":
		return CategoryPose, true
	case "background":
		return CategoryBackground, true
	case "quality":
		return CategoryQuality, true
	case "style":
		return CategoryStyle, true
	case "composition":
		return CategoryComposition, true
	case "object":
		return CategoryObject, true
	case "other":
		return CategoryOther, true
	default:
		return CategoryOther, false
	}
}

// MarshalText implements encoding.TextMarshaler so categories travel as names
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler; unknown names become other
func (c *Category) UnmarshalText(text []byte) error {
	*c, _ = ParseCategory(string(text))
	return nil
}

// Tag is the canonical weighted bilingual prompt unit.
//
// A validated Tag always has a trimmed, non-empty EN field and a Weight inside
// [MinWeight, MaxWeight]. Tags are values: the update methods return a modified
// copy and leave the receiver untouched, so a caller holding a slice of tags
// decides when a change becomes visible.
type Tag struct {
	ID       string   `json:"id"`
	EN       string   `json:"en"`
	JA       string   `json:"ja"`
	Weight   float64  `json:"weight"`
	Category Category `json:"category"`
}

// WithText returns a copy with new surface forms. An empty en is rejected.
func (t Tag) WithText(en, ja string) (Tag, error) {
	en = strings.TrimSpace(en)
	if en == "" {
		return t, fmt.Errorf("tag %s: en text must not be empty", t.ID)
	}
	t.EN = en
	t.JA = strings.TrimSpace(ja)
	return t, nil
}

// WithWeight returns a copy carrying the clamped weight
func (t Tag) WithWeight(w float64) Tag {
	t.Weight = ClampWeight(w)
	return t
}

// WithCategory returns a recategorized copy
func (t Tag) WithCategory(c Category) Tag {
	t.Category = c
	return t
}

// Text returns the surface form for the requested language, falling back to
// EN when the secondary form is empty.
func (t Tag) Text(lang Language) string {
	if lang == LanguageJA && t.JA != "" {
		return t.JA
	}
	return t.EN
}

// Language selects which surface form of a tag is rendered
type Language int

const (
	LanguageEN Language = iota
	LanguageJA
)

// String returns the string representation of the Language
func (l Language) String() string {
	if l == LanguageJA {
		return "ja"
	}
	return "en"
}

// ParseLanguage converts a string to Language with fallback to en
func ParseLanguage(lang string) Language {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "ja", "jp", "japanese":
		return LanguageJA
	default:
		return LanguageEN
	}
}

// Token is transient tokenizer output before it becomes a Tag
type Token struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

// ToTag promotes a token into a Tag with the given id and category other
func (tk Token) ToTag(id string) Tag {
	return Tag{
		ID:       id,
		EN:       strings.TrimSpace(tk.Text),
		Weight:   ClampWeight(tk.Weight),
		Category: CategoryOther,
	}
}

// CandidatePair is one untrusted entry of a model-produced record. Every field
// may be missing or malformed; Weight holds whatever JSON value the model sent.
type CandidatePair struct {
	EN       interface{} `json:"en,omitempty"`
	JA       interface{} `json:"ja,omitempty"`
	Weight   interface{} `json:"weight,omitempty"`
	Category interface{} `json:"category,omitempty"`
	ID       interface{} `json:"id,omitempty"`
}

// CandidateRecord is the unvalidated record shape returned by a language model
type CandidateRecord struct {
	Pairs []CandidatePair `json:"pairs"`
}

// Record is the validated output of the record validator
type Record struct {
	Pairs []Tag `json:"pairs"`
}
