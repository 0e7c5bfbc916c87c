package claude

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExtraction_PlainJSON(t *testing.T) {
	ex, err := ParseExtraction(`{
		"emails": ["office@smiledental.com"],
		"phones": ["+14125550134"],
		"social_links": {"facebook": "https://facebook.com/smiledental"},
		"services": ["teeth whitening", "implants"]
	}`)

	require.NoError(t, err)
	assert.Equal(t, []string{"office@smiledental.com"}, ex.Emails)
	assert.Equal(t, []string{"+14125550134"}, ex.Phones)
	assert.Equal(t, "https://facebook.com/smiledental", ex.SocialLinks["facebook"])
	assert.Len(t, ex.Services, 2)
	assert.False(t, ex.Empty())
}

func TestParseExtraction_MarkdownFenced(t *testing.T) {
	ex, err := ParseExtraction("```json\n{\"emails\": [\"office@smiledental.com\"], \"phones\": []}\n```")

	require.NoError(t, err)
	assert.Equal(t, []string{"office@smiledental.com"}, ex.Emails)
}

func TestParseExtraction_SurroundingProse(t *testing.T) {
	ex, err := ParseExtraction(`Here is the extracted data: {"emails": [], "phones": ["+14125550134"]} Hope that helps!`)

	require.NoError(t, err)
	assert.Equal(t, []string{"+14125550134"}, ex.Phones)
}

func TestParseExtraction_Malformed(t *testing.T) {
	ex, err := ParseExtraction("I could not find any contact information.")
	assert.Error(t, err)
	assert.Nil(t, ex)
}

func TestTruncate_KeepsRunesIntact(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 20))

	// A cut landing inside a multi-byte rune must back off to the rune start.
	s := strings.Repeat("a", 9) + "é" // é is two bytes: positions 9 and 10
	got := truncate(s, 10)
	assert.Equal(t, strings.Repeat("a", 9), got)
	assert.True(t, utf8.ValidString(got))

	// A cut on a rune boundary is kept as-is.
	assert.Equal(t, s, truncate(s, 11))
}

func TestExtraction_Empty(t *testing.T) {
	var nilEx *Extraction
	assert.True(t, nilEx.Empty())
	assert.True(t, (&Extraction{}).Empty())
	assert.False(t, (&Extraction{Services: []string{"implants"}}).Empty())
}
