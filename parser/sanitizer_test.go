package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "narrative on both sides",
			input: `Here is the result: {"pairs":[]} Hope this helps!`,
			want:  `{"pairs":[]}`,
		},
		{
			name:  "json fence",
			input: "```json\n{\"pairs\":[]}\n```",
			want:  `{"pairs":[]}`,
		},
		{
			name:  "uppercase fence with prose",
			input: "Sure!\n```JSON\n{\"pairs\":[{\"en\":\"cat\"}]}\n```\nEnjoy.",
			want:  `{"pairs":[{"en":"cat"}]}`,
		},
		{
			name:  "bare fence",
			input: "```\n{\"a\":1}\n```",
			want:  `{"a":1}`,
		},
		{
			name:  "nested braces keep outer span",
			input: `prefix {"pairs":[{"en":"a"},{"en":"b"}]} suffix`,
			want:  `{"pairs":[{"en":"a"},{"en":"b"}]}`,
		},
		{
			name:  "no braces returns trimmed text",
			input: "  no record here  ",
			want:  "no record here",
		},
		{
			name:  "closing brace before opening brace",
			input: "} before { after",
			want:  "{ after",
		},
		{
			name:  "only closing brace",
			input: "text } trailing",
			want:  "text }",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "already clean",
			input: `{"pairs":[{"en":"sky","weight":1.2}]}`,
			want:  `{"pairs":[{"en":"sky","weight":1.2}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.input))
		})
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"plain prose only",
		`Here is the result: {"pairs":[]} Hope this helps!`,
		"```json\n{\"pairs\":[]}\n```",
		"````json\n{}\n````",
		"``````",
		"`````json`",
		"} { } {",
		"{ unterminated",
		"unopened }",
		"```\n```\n{\"x\":\"```\"}\n```",
		"text ```python\nprint(1)\n``` more {\"a\":{\"b\":2}} tail }",
	}

	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)
	}
}

func TestHasRecordSpan(t *testing.T) {
	assert.True(t, HasRecordSpan(`{"pairs":[]}`))
	assert.True(t, HasRecordSpan(`x {} y`))
	assert.False(t, HasRecordSpan(`} {`))
	assert.False(t, HasRecordSpan(`no braces`))
	assert.False(t, HasRecordSpan(`{`))
}

func TestSanitizeArray(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{
			name:   "fenced array",
			input:  "```json\n[{\"en\":\"cat\"}]\n```",
			want:   `[{"en":"cat"}]`,
			wantOK: true,
		},
		{
			name:   "array after prose",
			input:  `Sure: [{"en":"cat"}] Enjoy!`,
			want:   `[{"en":"cat"}]`,
			wantOK: true,
		},
		{
			name:  "object opens first",
			input: `{"pairs":[{"en":"cat"}]}`,
		},
		{
			name:  "no brackets",
			input: "no record here",
		},
		{
			name:  "unclosed array",
			input: "] then [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SanitizeArray(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
