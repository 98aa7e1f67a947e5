// Package parser turns raw prompt text and raw model output into inputs the
// rest of the tag pipeline can trust. It recognizes the weighted-group prompt
// notation "(text:1.3)" with backslash escapes, and narrows free-form language
// model replies down to the JSON record they carry.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"tagpipe/types"
)

const (
	groupOpen  = '('
	groupClose = ')'
	escapeRune = '\\'
)

// weightSuffix is the plain decimal form accepted after the last colon of a group
var weightSuffix = regexp.MustCompile(`^[+-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)$`)

// separators end a plain-text token outside of a group and are never content
var separators = map[rune]bool{
	',': true,
	'，': true,
	'.': true,
	'。': true,
	'．': true,
	'、': true,
}

// IsSeparator reports whether r splits plain-text tokens
func IsSeparator(r rune) bool {
	return separators[r]
}

// scanState is the tokenizer state: plain text or inside a weighted group
type scanState int

const (
	statePlain scanState = iota
	stateGroup
)

// parsedGroup is the content between a matched pair of group delimiters
type parsedGroup struct {
	text   string
	weight float64
}

// tokenizer holds the scan state for a single Tokenize call
type tokenizer struct {
	state  scanState
	depth  int
	buf    strings.Builder
	tokens []types.Token
}

// Tokenize splits prompt text into ordered weighted tokens.
//
// Plain text is split on latin and full-width commas and periods and gets
// weight 1.0. A parenthesized group becomes a single token; "(text:1.3)"
// carries an explicit weight clamped to [0.1, 2.0], "(text)" gets 1.2.
// Groups nest, "\(" and "\)" are literal parentheses, and an unterminated
// group degrades to plain text. Empty tokens are dropped.
func Tokenize(input string) []types.Token {
	tz := &tokenizer{}
	runes := []rune(input)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == escapeRune && i+1 < len(runes) && (runes[i+1] == groupOpen || runes[i+1] == groupClose) {
			tz.buf.WriteRune(runes[i+1])
			i++
			continue
		}

		switch tz.state {
		case statePlain:
			tz.scanPlain(r)
		case stateGroup:
			tz.scanGroup(r)
		}
	}

	// Unterminated group: whatever was buffered is kept as plain text
	tz.flushPlain()
	return tz.tokens
}

func (tz *tokenizer) scanPlain(r rune) {
	switch {
	case r == groupOpen:
		tz.flushPlain()
		tz.state = stateGroup
		tz.depth = 1
	case IsSeparator(r):
		tz.flushPlain()
	default:
		tz.buf.WriteRune(r)
	}
}

func (tz *tokenizer) scanGroup(r rune) {
	switch r {
	case groupOpen:
		tz.depth++
		tz.buf.WriteRune(r)
	case groupClose:
		tz.depth--
		if tz.depth > 0 {
			tz.buf.WriteRune(r)
			return
		}
		group := parseGroup(tz.buf.String())
		tz.buf.Reset()
		tz.emit(group.text, group.weight)
		tz.state = statePlain
	default:
		tz.buf.WriteRune(r)
	}
}

func (tz *tokenizer) flushPlain() {
	text := tz.buf.String()
	tz.buf.Reset()
	tz.emit(text, types.DefaultWeight)
}

func (tz *tokenizer) emit(text string, weight float64) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	tz.tokens = append(tz.tokens, types.Token{Text: text, Weight: weight})
}

// parseGroup splits group content at its last colon into text and weight.
// A missing suffix, or one that is not a plain decimal (hex floats, digit
// underscores, exponents, NaN), leaves the whole content as text at the
// default group weight.
func parseGroup(content string) parsedGroup {
	idx := strings.LastIndex(content, ":")
	if idx < 0 {
		return parsedGroup{text: strings.TrimSpace(content), weight: types.GroupWeight}
	}

	suffix := strings.TrimSpace(content[idx+1:])
	if !weightSuffix.MatchString(suffix) {
		return parsedGroup{text: strings.TrimSpace(content), weight: types.GroupWeight}
	}
	weight, err := strconv.ParseFloat(suffix, 64)
	if err != nil {
		return parsedGroup{text: strings.TrimSpace(content), weight: types.GroupWeight}
	}

	return parsedGroup{
		text:   strings.TrimSpace(content[:idx]),
		weight: types.ClampWeight(weight),
	}
}

// TokensToTags promotes tokens into category-other tags, assigning ids with newID
func TokensToTags(tokens []types.Token, newID func() string) []types.Tag {
	tags := make([]types.Tag, 0, len(tokens))
	for _, tk := range tokens {
		tags = append(tags, tk.ToTag(newID()))
	}
	return tags
}
