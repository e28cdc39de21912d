package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderFactory(t *testing.T) {
	tests := []struct {
		name     string
		filePath string
		wantErr  bool
	}{
		{"json spans", "doc.json", false},
		{"markdown", "readme.md", false},
		{"markdown long ext", "readme.markdown", false},
		{"unsupported pdf", "doc.pdf", true},
		{"no extension", "doc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, err := LoaderFactory(tt.filePath)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedType)
				assert.Nil(t, loader)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, loader)
			}
		})
	}
}

func TestSpanLoaderDecode(t *testing.T) {
	loader := NewSpanLoader()

	input := `{
		"pages": [
			{"number": 1, "spans": [
				{"text": "1. Introduction", "font_size": 18.0, "y_position": 72.5},
				{"text": "Some body text."}
			]},
			{"number": 2, "spans": [
				{"text": "2. Details", "y_position": 70.0}
			]}
		]
	}`

	pages, err := loader.LoadReader(strings.NewReader(input), "doc.json")
	require.NoError(t, err)
	require.Len(t, pages, 2)

	assert.Equal(t, 1, pages[0].Number)
	require.Len(t, pages[0].Spans, 2)

	first := pages[0].Spans[0]
	assert.Equal(t, "1. Introduction", first.Text)
	require.True(t, first.HasFontSize())
	assert.Equal(t, 18.0, *first.FontSize)
	require.True(t, first.HasPosition())
	assert.Equal(t, 72.5, *first.YPosition)

	second := pages[0].Spans[1]
	assert.False(t, second.HasFontSize())
	assert.False(t, second.HasPosition())

	assert.Equal(t, 2, pages[1].Spans[0].Page)
}

func TestSpanLoaderValidation(t *testing.T) {
	loader := NewSpanLoader()

	t.Run("no pages", func(t *testing.T) {
		_, err := loader.LoadReader(strings.NewReader(`{"pages": []}`), "doc.json")
		assert.Error(t, err)
	})

	t.Run("non-contiguous page numbers", func(t *testing.T) {
		input := `{"pages": [
			{"number": 1, "spans": [{"text": "a"}]},
			{"number": 3, "spans": [{"text": "b"}]}
		]}`
		_, err := loader.LoadReader(strings.NewReader(input), "doc.json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected 2")
	})

	t.Run("zero-indexed pages", func(t *testing.T) {
		input := `{"pages": [{"number": 0, "spans": [{"text": "a"}]}]}`
		_, err := loader.LoadReader(strings.NewReader(input), "doc.json")
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := loader.LoadReader(strings.NewReader(`{"pages": [`), "doc.json")
		assert.Error(t, err)
	})
}

func TestSpanLoaderFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	content := `{"pages": [{"number": 1, "spans": [{"text": "hello"}]}]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	loader := NewSpanLoader()
	pages, err := loader.Load(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "hello", pages[0].Spans[0].Text)
}

func TestMarkdownLoaderHeadings(t *testing.T) {
	loader := NewMarkdownLoader()

	input := "# Title\n\nIntro paragraph.\n\n## Section One\n\nBody of section one.\n"
	pages, err := loader.LoadReader(strings.NewReader(input), "doc.md")
	require.NoError(t, err)
	require.Len(t, pages, 1)

	texts := make([]string, 0, len(pages[0].Spans))
	for _, span := range pages[0].Spans {
		texts = append(texts, span.Text)
	}
	assert.Equal(t, []string{
		"# Title",
		"Intro paragraph.",
		"## Section One",
		"Body of section one.",
	}, texts)
}

func TestMarkdownLoaderPageBreaks(t *testing.T) {
	loader := NewMarkdownLoader()

	input := "# First\n\ntext one\n\n---\n\n# Second\n\ntext two\n"
	pages, err := loader.LoadReader(strings.NewReader(input), "doc.md")
	require.NoError(t, err)
	require.Len(t, pages, 2)

	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "# First", pages[0].Spans[0].Text)
	assert.Equal(t, 2, pages[1].Number)
	assert.Equal(t, "# Second", pages[1].Spans[0].Text)
	assert.Equal(t, 2, pages[1].Spans[0].Page)
}

func TestMarkdownLoaderInlineFormatting(t *testing.T) {
	loader := NewMarkdownLoader()

	input := "Some **bold** and `code` in one paragraph.\n"
	pages, err := loader.LoadReader(strings.NewReader(input), "doc.md")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "Some bold and code in one paragraph.", pages[0].Spans[0].Text)
}

func TestMarkdownLoaderEmpty(t *testing.T) {
	loader := NewMarkdownLoader()

	_, err := loader.LoadReader(strings.NewReader(""), "doc.md")
	assert.Error(t, err)
}
