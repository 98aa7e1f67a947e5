package correction

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"tagpipe/logger"
	"tagpipe/parser"
	"tagpipe/types"

	"github.com/google/uuid"
	"golang.org/x/text/width"
)

// DefaultLongEntryLimit is the en length above which an entry is treated as
// narrative and split into one tag per comma segment
const DefaultLongEntryLimit = 100

var (
	enSplitter      = regexp.MustCompile(`,\s+`)
	jaSplitter      = regexp.MustCompile(`[,，、]`)
	weightNoise     = regexp.MustCompile(`[^0-9.]`)
	leadingDecimals = regexp.MustCompile(`^[0-9]*\.?[0-9]*`)
)

// LogFunc receives observability events; logger.ObservabilityLogger.Event satisfies it
type LogFunc func(component, category, requestID, message string, fields map[string]interface{})

// RecordParseError reports model output that could not be decoded as a record at all.
// Raw keeps the untouched model text for caller-level fallback.
type RecordParseError struct {
	Raw string
	Err error
}

// Error implements the error interface
func (e *RecordParseError) Error() string {
	return fmt.Sprintf("model output is not a structured record: %v", e.Err)
}

// Unwrap returns the underlying decode error
func (e *RecordParseError) Unwrap() error {
	return e.Err
}

// DroppedEntry describes an input entry that did not survive validation
type DroppedEntry struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Report summarizes what validation repaired or discarded
type Report struct {
	Input   int            `json:"input"`
	Output  int            `json:"output"`
	Split   int            `json:"split"`
	Dropped []DroppedEntry `json:"dropped,omitempty"`
}

// Validator repairs untrusted candidate records into well-formed tags
type Validator struct {
	longEntryLimit int
	newID          func() string
	logFunc        LogFunc
	requestID      string
}

// Option configures a Validator
type Option func(*Validator)

// WithLongEntryLimit overrides the narrative split threshold
func WithLongEntryLimit(limit int) Option {
	return func(v *Validator) {
		if limit > 0 {
			v.longEntryLimit = limit
		}
	}
}

// WithIDGenerator replaces the uuid id source
func WithIDGenerator(newID func() string) Option {
	return func(v *Validator) {
		if newID != nil {
			v.newID = newID
		}
	}
}

// WithLogFunc attaches an observability callback
func WithLogFunc(logFunc LogFunc) Option {
	return func(v *Validator) {
		v.logFunc = logFunc
	}
}

// NewValidator creates a Validator with uuid ids and the default split threshold
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		longEntryLimit: DefaultLongEntryLimit,
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logFunc == nil {
		v.logFunc = func(component, category, requestID, message string, fields map[string]interface{}) {}
	}
	return v
}

// ForRequest returns a copy whose log events carry requestID
func (v *Validator) ForRequest(requestID string) *Validator {
	cp := *v
	cp.requestID = requestID
	return &cp
}

// Validate is a convenience wrapper around a default Validator
func Validate(candidate interface{}) types.Record {
	record, _ := NewValidator().Validate(candidate)
	return record
}

// Validate turns a candidate record into tags. It never fails: entries without
// usable en text are dropped, other fields are repaired, and narrative entries
// are split in place. Output order follows input order.
//
// candidate may be a decoded JSON value (an object with a "pairs" array, or a
// bare array of entries) or a types.CandidateRecord.
func (v *Validator) Validate(candidate interface{}) (types.Record, Report) {
	entries := candidateEntries(candidate)
	record := types.Record{Pairs: make([]types.Tag, 0, len(entries))}
	report := Report{Input: len(entries)}

	for i, raw := range entries {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			v.drop(&report, i, "entry is not an object")
			continue
		}

		tag, reason, ok := v.repairEntry(entry)
		if !ok {
			v.drop(&report, i, reason)
			continue
		}

		if utf8.RuneCountInString(tag.EN) > v.longEntryLimit {
			parts := v.splitLongEntry(tag)
			report.Split++
			v.logFunc(logger.ComponentValidator, logger.CategoryTransformation, v.requestID, "Split narrative entry into tags", map[string]interface{}{
				"index":    i,
				"length":   utf8.RuneCountInString(tag.EN),
				"segments": len(parts),
			})
			record.Pairs = append(record.Pairs, parts...)
			continue
		}

		record.Pairs = append(record.Pairs, tag)
	}

	report.Output = len(record.Pairs)
	v.logFunc(logger.ComponentValidator, logger.CategoryValidation, v.requestID, "Record validated", map[string]interface{}{
		"input":   report.Input,
		"output":  report.Output,
		"split":   report.Split,
		"dropped": len(report.Dropped),
	})
	return record, report
}

func (v *Validator) drop(report *Report, index int, reason string) {
	report.Dropped = append(report.Dropped, DroppedEntry{Index: index, Reason: reason})
	v.logFunc(logger.ComponentValidator, logger.CategoryWarning, v.requestID, "Dropped invalid entry", map[string]interface{}{
		"index":  index,
		"reason": reason,
	})
}

// repairEntry applies the per-field rules to one decoded entry
func (v *Validator) repairEntry(entry map[string]interface{}) (types.Tag, string, bool) {
	en, ok := entry["en"].(string)
	if !ok {
		return types.Tag{}, "en is missing or not a string", false
	}
	en = strings.TrimSpace(en)
	if en == "" {
		return types.Tag{}, "en is empty", false
	}

	tag := types.Tag{
		EN:       en,
		Weight:   types.DefaultWeight,
		Category: types.CategoryOther,
	}

	if ja, ok := entry["ja"].(string); ok {
		tag.JA = strings.TrimSpace(ja)
	}

	if raw, ok := entry["weight"]; ok && raw != nil {
		tag.Weight = RepairWeight(raw)
	}

	tag.ID = stringValue(entry["id"])
	if tag.ID == "" {
		tag.ID = v.newID()
	}

	if name := stringValue(entry["category"]); name != "" {
		tag.Category, _ = types.ParseCategory(name)
	}

	return tag, "", true
}

// splitLongEntry breaks a narrative entry into one tag per comma segment
func (v *Validator) splitLongEntry(tag types.Tag) []types.Tag {
	enParts := splitSegments(enSplitter, tag.EN)
	jaParts := splitSegments(jaSplitter, tag.JA)

	if len(enParts) == 0 {
		return []types.Tag{tag}
	}
	// Nothing to pair against: keep the whole ja text with the single segment
	if len(enParts) == 1 {
		jaParts = []string{tag.JA}
	}

	out := make([]types.Tag, 0, len(enParts))
	for i, en := range enParts {
		ja := ""
		if i < len(jaParts) {
			ja = jaParts[i]
		}
		out = append(out, types.Tag{
			ID:       v.newID(),
			EN:       en,
			JA:       ja,
			Weight:   tag.Weight,
			Category: types.CategoryOther,
		})
	}
	return out
}

func splitSegments(re *regexp.Regexp, s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range re.Split(s, -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// RepairWeight coerces a model-supplied weight into range. Full-width digits are
// folded, every character other than a digit or "." is stripped, and the leading
// decimal is parsed. Unparsable input yields 1.0; anything else is clamped.
func RepairWeight(raw interface{}) float64 {
	var s string
	switch t := raw.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		s = fmt.Sprint(t)
	}

	s = width.Narrow.String(s)
	s = weightNoise.ReplaceAllString(s, "")
	s = leadingDecimals.FindString(s)

	w, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return types.DefaultWeight
	}
	return types.ClampWeight(w)
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// candidateEntries extracts the list of raw entries from any accepted candidate shape
func candidateEntries(candidate interface{}) []interface{} {
	switch c := candidate.(type) {
	case map[string]interface{}:
		pairs, _ := c["pairs"].([]interface{})
		return pairs
	case []interface{}:
		return c
	case types.CandidateRecord:
		return typedEntries(c)
	case *types.CandidateRecord:
		if c == nil {
			return nil
		}
		return typedEntries(*c)
	default:
		return nil
	}
}

func typedEntries(record types.CandidateRecord) []interface{} {
	entries := make([]interface{}, 0, len(record.Pairs))
	for _, p := range record.Pairs {
		entry := make(map[string]interface{})
		for key, val := range map[string]interface{}{
			"en":       p.EN,
			"ja":       p.JA,
			"weight":   p.Weight,
			"category": p.Category,
			"id":       p.ID,
		} {
			if val != nil {
				entry[key] = val
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

// ParseRecord sanitizes raw model output and decodes it. A bare array of
// entries is decoded when it opens before any object; otherwise the object
// span must carry a "pairs" array. Numbers are kept as json.Number so weights
// reach RepairWeight without float formatting noise.
func ParseRecord(raw string) (interface{}, error) {
	if span, ok := parser.SanitizeArray(raw); ok {
		if decoded, err := decodeJSON(span); err == nil {
			if entries, ok := decoded.([]interface{}); ok {
				return entries, nil
			}
		}
	}

	decoded, err := decodeJSON(parser.Sanitize(raw))
	if err != nil {
		return nil, &RecordParseError{Raw: raw, Err: err}
	}

	obj, ok := decoded.(map[string]interface{})
	if !ok {
		return nil, &RecordParseError{Raw: raw, Err: fmt.Errorf("decoded %T, want object", decoded)}
	}
	if _, ok := obj["pairs"].([]interface{}); !ok {
		return nil, &RecordParseError{Raw: raw, Err: errors.New(`record has no "pairs" array`)}
	}
	return obj, nil
}

// decodeJSON decodes the first JSON value in s
func decodeJSON(s string) (interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var decoded interface{}
	if err := dec.Decode(&decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

// Repair runs the model-output path: sanitize, decode, validate
func (v *Validator) Repair(raw string) (types.Record, Report, error) {
	candidate, err := ParseRecord(raw)
	if err != nil {
		v.logFunc(logger.ComponentValidator, logger.CategoryError, v.requestID, "Model output could not be decoded", map[string]interface{}{
			"error":      err.Error(),
			"raw_length": len(raw),
		})
		return types.Record{}, Report{}, err
	}
	record, report := v.Validate(candidate)
	return record, report, nil
}
