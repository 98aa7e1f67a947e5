package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampWeight(t *testing.T) {
	assert.Equal(t, MinWeight, ClampWeight(-1))
	assert.Equal(t, MinWeight, ClampWeight(0.05))
	assert.Equal(t, 0.1, ClampWeight(0.1))
	assert.Equal(t, 1.37, ClampWeight(1.37))
	assert.Equal(t, 2.0, ClampWeight(2.0))
	assert.Equal(t, MaxWeight, ClampWeight(7))
}

// TestTagUpdatesReturnCopies checks that update methods leave the receiver untouched
func TestTagUpdatesReturnCopies(t *testing.T) {
	original := Tag{ID: "t1", EN: "cat", JA: "猫", Weight: 1.0, Category: CategoryOther}

	renamed, err := original.WithText("  dog ", " 犬 ")
	require.NoError(t, err)
	assert.Equal(t, "dog", renamed.EN)
	assert.Equal(t, "犬", renamed.JA)
	assert.Equal(t, "cat", original.EN)

	_, err = original.WithText("   ", "犬")
	assert.Error(t, err)

	heavy := original.WithWeight(3.5)
	assert.Equal(t, MaxWeight, heavy.Weight)
	assert.Equal(t, 1.0, original.Weight)

	posed := original.WithCategory(CategoryPose)
	assert.Equal(t, CategoryPose, posed.Category)
	assert.Equal(t, CategoryOther, original.Category)
}

func TestTagText(t *testing.T) {
	bilingual := Tag{EN: "cat", JA: "猫"}
	assert.Equal(t, "cat", bilingual.Text(LanguageEN))
	assert.Equal(t, "猫", bilingual.Text(LanguageJA))

	englishOnly := Tag{EN: "cat"}
	assert.Equal(t, "cat", englishOnly.Text(LanguageJA))
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		name  string
		want  Category
		known bool
	}{
		{"person", CategoryPerson, true},
		{" Clothing ", CategoryClothing, true},
		{"pose/action", CategoryPose, true},
		{"action", CategoryPose, true},
		{"other", CategoryOther, true},
		{"weather", CategoryOther, false},
		{"", CategoryOther, false},
	}

	for _, tt := range tests {
		got, known := ParseCategory(tt.name)
		assert.Equal(t, tt.want, got, tt.name)
		assert.Equal(t, tt.known, known, tt.name)
	}

	for _, c := range AllCategories {
		parsed, known := ParseCategory(c.String())
		assert.True(t, known)
		assert.Equal(t, c, parsed)
	}
}

func TestTagJSON(t *testing.T) {
	data, err := json.Marshal(Tag{ID: "a", EN: "sky", Weight: 1.2, Category: CategoryBackground})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a","en":"sky","ja":"","weight":1.2,"category":"background"}`, string(data))

	var decoded Tag
	require.NoError(t, json.Unmarshal([]byte(`{"en":"sky","category":"scenery"}`), &decoded))
	assert.Equal(t, CategoryOther, decoded.Category)

	data, err = json.Marshal(Tag{EN: "walking", Weight: 1.0, Category: CategoryPose})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"category":"pose/action"`)

	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, CategoryPose, decoded.Category)
}

func TestParseLanguage(t *testing.T) {
	assert.Equal(t, LanguageJA, ParseLanguage("JA"))
	assert.Equal(t, LanguageJA, ParseLanguage("japanese"))
	assert.Equal(t, LanguageEN, ParseLanguage("en"))
	assert.Equal(t, LanguageEN, ParseLanguage("fr"))
	assert.Equal(t, "ja", LanguageJA.String())
}

func TestTokenToTag(t *testing.T) {
	tag := Token{Text: " cat ", Weight: 9}.ToTag("id-1")
	assert.Equal(t, Tag{ID: "id-1", EN: "cat", Weight: MaxWeight, Category: CategoryOther}, tag)
}
