package format

import (
	"encoding/json"
	"errors"
	"testing"

	"tagpipe/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tag(en string, weight float64) types.Tag {
	return types.Tag{EN: en, Weight: weight}
}

func TestSerializeEmptyInput(t *testing.T) {
	for _, f := range AllFormats {
		out, err := Serialize(nil, f)
		require.NoError(t, err, f.String())
		assert.Equal(t, "", out, f.String())

		out, err = Serialize([]types.Tag{}, f)
		require.NoError(t, err, f.String())
		assert.Equal(t, "", out, f.String())
	}
}

func TestSerialize(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		tags   []types.Tag
		want   string
	}{
		{
			name:   "sdxl wraps emphasis in parentheses",
			format: FormatSDXL,
			tags:   []types.Tag{tag("1girl", 1.2), tag("smile", 1.0)},
			want:   "(1girl:1.20), smile",
		},
		{
			name:   "sdxl wraps de-emphasis in brackets",
			format: FormatSDXL,
			tags:   []types.Tag{tag("blur", 0.5), tag("sky", 1.25)},
			want:   "[blur:0.50], (sky:1.25)",
		},
		{
			name:   "flux adverbs and sentence form",
			format: FormatFlux,
			tags:   []types.Tag{tag("a", 1.5), tag("b", 0.5), tag("c", 1.0)},
			want:   "Highly a, slightly b, c.",
		},
		{
			name:   "flux thresholds are exclusive",
			format: FormatFlux,
			tags:   []types.Tag{tag("sharp focus", 1.2), tag("haze", 0.8)},
			want:   "Sharp focus, haze.",
		},
		{
			name:   "flux keeps non-latin first rune",
			format: FormatFlux,
			tags:   []types.Tag{tag("猫", 1.0)},
			want:   "猫.",
		},
		{
			name:   "imagefx ignores weights",
			format: FormatImageFX,
			tags:   []types.Tag{tag("a cat", 1.8), tag("on a sofa", 0.3)},
			want:   "a cat on a sofa",
		},
		{
			name:   "imagefx-natural prefix",
			format: FormatImageFXNatural,
			tags:   []types.Tag{tag("a cat", 1.0), tag("a sofa", 1.4)},
			want:   "Create an image of a cat, a sofa",
		},
		{
			name:   "natural ignores weights",
			format: FormatNatural,
			tags:   []types.Tag{tag("cat", 1.4), tag("dog", 0.2)},
			want:   "cat, dog",
		},
		{
			name:   "weighted uses raw weight",
			format: FormatWeighted,
			tags:   []types.Tag{tag("x", 1.3)},
			want:   "(x:1.3)",
		},
		{
			name:   "weighted leaves default weight bare",
			format: FormatWeighted,
			tags:   []types.Tag{tag("x", 1.0)},
			want:   "x",
		},
		{
			name:   "weighted wraps de-emphasis too",
			format: FormatWeighted,
			tags:   []types.Tag{tag("x", 0.75), tag("y", 1.0), tag("z", 1.125)},
			want:   "(x:0.75), y, (z:1.125)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Serialize(tt.tags, tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSerializeLanguage(t *testing.T) {
	tags := []types.Tag{
		{EN: "cat", JA: "猫", Weight: 1.0},
		{EN: "dog", Weight: 1.5},
	}

	opts := DefaultOptions()
	opts.Language = types.LanguageJA
	s := NewSerializer(opts)

	assert.Equal(t, "猫, dog", s.MustSerialize(tags, FormatNatural))
	assert.Equal(t, "猫, (dog:1.5)", s.MustSerialize(tags, FormatWeighted))
	// back-end formats always render en
	assert.Equal(t, "cat dog", s.MustSerialize(tags, FormatImageFX))
	assert.Equal(t, "cat, (dog:1.50)", s.MustSerialize(tags, FormatSDXL))
}

func TestSerializeCustomOptions(t *testing.T) {
	s := NewSerializer(Options{
		FluxHighThreshold:    1.5,
		FluxLowThreshold:     0.5,
		ImageFXNaturalPrefix: "Draw ",
	})

	tags := []types.Tag{tag("a", 1.4), tag("b", 1.6), tag("c", 0.4)}
	assert.Equal(t, "A, highly b, slightly c.", s.MustSerialize(tags, FormatFlux))
	assert.Equal(t, "Draw a, b, c", s.MustSerialize(tags, FormatImageFXNatural))
	assert.Equal(t, 1.5, s.Options().FluxHighThreshold)
}

func TestSerializeUnknownFormat(t *testing.T) {
	unknown := Format(99)

	_, err := Serialize([]types.Tag{tag("x", 1.0)}, unknown)
	assert.True(t, errors.Is(err, ErrUnknownFormat))

	// the format check comes before the empty-input shortcut
	_, err = Serialize(nil, unknown)
	assert.True(t, errors.Is(err, ErrUnknownFormat))

	assert.Panics(t, func() {
		NewSerializer(DefaultOptions()).MustSerialize(nil, unknown)
	})
}

func TestSerializeAll(t *testing.T) {
	tags := []types.Tag{tag("1girl", 1.2), tag("smile", 1.0)}
	all := NewSerializer(DefaultOptions()).SerializeAll(tags)

	require.Len(t, all, len(AllFormats))
	assert.Equal(t, "(1girl:1.20), smile", all[FormatSDXL])
	assert.Equal(t, "1girl, smile.", all[FormatFlux])
	assert.Equal(t, "1girl smile", all[FormatImageFX])
	assert.Equal(t, "Create an image of 1girl, smile", all[FormatImageFXNatural])
	assert.Equal(t, "1girl, smile", all[FormatNatural])
	assert.Equal(t, "(1girl:1.2), smile", all[FormatWeighted])
}

func TestEveryFormatHasRenderer(t *testing.T) {
	assert.Len(t, renderers, len(AllFormats))
	for _, f := range AllFormats {
		_, ok := renderers[f]
		assert.True(t, ok, "format %s has no renderer", f)
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range AllFormats {
		parsed, err := ParseFormat(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, parsed)
	}

	parsed, err := ParseFormat(" ImageFX_Natural ")
	require.NoError(t, err)
	assert.Equal(t, FormatImageFXNatural, parsed)

	_, err = ParseFormat("midjourney")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestFormatJSON(t *testing.T) {
	var payload struct {
		Format Format `json:"format"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"format":"flux"}`), &payload))
	assert.Equal(t, FormatFlux, payload.Format)

	assert.Error(t, json.Unmarshal([]byte(`{"format":"bogus"}`), &payload))

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"format":"flux"}`, string(data))

	payload.Format = Format(42)
	_, err = json.Marshal(payload)
	assert.Error(t, err)
}
