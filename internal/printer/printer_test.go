package printer

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func withoutColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestSuccess(t *testing.T) {
	withoutColor(t)
	var buf bytes.Buffer

	Success(&buf, "saved %s\n", "flag")
	Success(&buf, "✓ already prefixed\n")

	assert.Equal(t, "✓ saved flag\n✓ already prefixed\n", buf.String())
}

func TestWarning(t *testing.T) {
	withoutColor(t)
	var buf bytes.Buffer

	Warning(&buf, "careful\n")

	assert.Equal(t, "⚠️  careful\n", buf.String())
}

func TestInfoAndHighlight(t *testing.T) {
	withoutColor(t)
	var buf bytes.Buffer

	Info(&buf, "%s -> %s\n", Highlight("/api/a"), Dim("/api/v1/a"))

	assert.Equal(t, "/api/a -> /api/v1/a\n", buf.String())
}

func TestErrorTo(t *testing.T) {
	withoutColor(t)

	t.Run("single suggestion", func(t *testing.T) {
		var buf bytes.Buffer
		err := ErrorTo(&buf, "request failed", "The API returned 503.", []string{"Retry later."})

		assert.EqualError(t, err, "request failed")
		assert.Equal(t, "request failed\n\nThe API returned 503.\n\nRetry later.\n", buf.String())
	})

	t.Run("several suggestions", func(t *testing.T) {
		var buf bytes.Buffer
		_ = ErrorTo(&buf, "bad flag", "Unknown value.", []string{"Use true.", "Use false."})

		assert.Contains(t, buf.String(), "Either:\n  1. Use true.\n  2. Use false.\n")
	})

	t.Run("no suggestions", func(t *testing.T) {
		var buf bytes.Buffer
		_ = ErrorTo(&buf, "oops", "Something broke.", nil)

		assert.Equal(t, "oops\n\nSomething broke.\n", buf.String())
	})
}
