package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt_IncludesExtractedText(t *testing.T) {
	prompt, err := BuildPrompt("en", "Mahnung 15.03.2025", false)
	require.NoError(t, err)
	assert.Contains(t, prompt, "Mahnung 15.03.2025")
	assert.Contains(t, prompt, "Summary")
	assert.Contains(t, prompt, "Urgency Level")
}

func TestBuildPrompt_NoTextNoImage(t *testing.T) {
	prompt, err := BuildPrompt("de", "", false)
	require.NoError(t, err)
	assert.Contains(t, prompt, "No document content is available")
	assert.Contains(t, prompt, "Zusammenfassung")
}

func TestBuildPrompt_UnknownLanguageFallsBackToEnglish(t *testing.T) {
	prompt, err := BuildPrompt("fr", "text", false)
	require.NoError(t, err)
	assert.Contains(t, prompt, "Summary")
}

func TestBuildPrompt_AllLanguagesRenderWithoutError(t *testing.T) {
	for _, lang := range []string{"en", "ru", "de", "uk"} {
		_, err := BuildPrompt(lang, "some text", true)
		require.NoError(t, err, lang)
	}
}
