package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyPreview_LongKey(t *testing.T) {
	p := KeyPreview("sk-ant-REDACTED")
	assert.LessOrEqual(t, len(p), 12)
	assert.Equal(t, 1, strings.Count(p, "…"))
	assert.True(t, strings.HasPrefix(p, "sk-a"))
	assert.True(t, strings.HasSuffix(p, "CTED"))
}

func TestKeyPreview_ShortKey(t *testing.T) {
	assert.Equal(t, "…", KeyPreview("short"))
}

func TestKeyPreview_Empty(t *testing.T) {
	assert.Equal(t, "", KeyPreview(""))
}
