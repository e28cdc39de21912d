package preprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeTextPage 构造只含纯文本段的页面
func makeTextPage(number int, texts ...string) Page {
	page := Page{Number: number}
	for _, text := range texts {
		page.Spans = append(page.Spans, TextSpan{Page: number, Text: text})
	}
	return page
}

// TestSegmentNumberedHeadings 测试编号标题的层级分段
func TestSegmentNumberedHeadings(t *testing.T) {
	segmenter := NewSectionSegmenter(DefaultSegmenterConfig())

	// 两页文档："1. Intro"带一段正文，"1.1 Detail"带一段正文
	pages := []Page{
		makeTextPage(1, "1. Intro", "text a"),
		makeTextPage(2, "1.1 Detail", "text b"),
	}

	sections := segmenter.Segment(pages)

	require.Len(t, sections, 1)
	intro := sections[0]
	assert.Equal(t, "Intro", intro.Title)
	assert.Equal(t, 1, intro.Level)
	assert.Equal(t, PageRange{Start: 1, End: 2}, intro.PageRange)

	require.Len(t, intro.Subsections, 1)
	detail := intro.Subsections[0]
	assert.Equal(t, "Detail", detail.Title)
	assert.Equal(t, 2, detail.Level)
	assert.Equal(t, "text b", detail.Content)
}

// TestSegmentDeepHierarchy 测试多级编号的树构造和层级单调性
func TestSegmentDeepHierarchy(t *testing.T) {
	segmenter := NewSectionSegmenter(DefaultSegmenterConfig())

	pages := []Page{
		makeTextPage(1,
			"1. Overview", "intro text",
			"1.1 Background", "background text",
			"1.1.1 History", "history text",
			"1.2 Scope", "scope text",
		),
		makeTextPage(2,
			"2. Design", "design text",
		),
	}

	sections := segmenter.Segment(pages)

	require.Len(t, sections, 2)
	assert.Equal(t, "Overview", sections[0].Title)
	assert.Equal(t, "Design", sections[1].Title)

	overview := sections[0]
	require.Len(t, overview.Subsections, 2)
	assert.Equal(t, "Background", overview.Subsections[0].Title)
	assert.Equal(t, "Scope", overview.Subsections[1].Title)
	require.Len(t, overview.Subsections[0].Subsections, 1)
	assert.Equal(t, "History", overview.Subsections[0].Subsections[0].Title)

	// 层级单调性：每个子章节层级严格大于父章节
	var checkMonotonic func(parent *Section)
	checkMonotonic = func(parent *Section) {
		for _, sub := range parent.Subsections {
			assert.Greater(t, sub.Level, parent.Level,
				"subsection %q level must exceed parent %q", sub.Title, parent.Title)
			checkMonotonic(sub)
		}
	}
	for _, sec := range sections {
		checkMonotonic(sec)
	}
}

// TestSegmentHeadingStyles 测试其它标题样式：井号、韩文序号、方括号序号
func TestSegmentHeadingStyles(t *testing.T) {
	segmenter := NewSectionSegmenter(DefaultSegmenterConfig())

	t.Run("markdown hashes", func(t *testing.T) {
		sections := segmenter.Segment([]Page{
			makeTextPage(1, "# Title", "a", "## Subtitle", "b", "### Deep", "c"),
		})
		require.Len(t, sections, 1)
		assert.Equal(t, "Title", sections[0].Title)
		assert.Equal(t, 1, sections[0].Level)
		require.Len(t, sections[0].Subsections, 1)
		assert.Equal(t, 2, sections[0].Subsections[0].Level)
		require.Len(t, sections[0].Subsections[0].Subsections, 1)
		assert.Equal(t, 3, sections[0].Subsections[0].Subsections[0].Level)
	})

	t.Run("korean ordinal", func(t *testing.T) {
		sections := segmenter.Segment([]Page{
			makeTextPage(1, "가. 개요", "내용"),
		})
		require.Len(t, sections, 1)
		assert.Equal(t, "개요", sections[0].Title)
		assert.Equal(t, 1, sections[0].Level)
	})

	t.Run("bracketed ordinal", func(t *testing.T) {
		sections := segmenter.Segment([]Page{
			makeTextPage(1, "[1] References", "ref list"),
		})
		require.Len(t, sections, 1)
		assert.Equal(t, "References", sections[0].Title)
		assert.Equal(t, 1, sections[0].Level)
	})
}

// TestSegmentFontSizeFallback 测试无编号时的字体大小回退信号
func TestSegmentFontSizeFallback(t *testing.T) {
	segmenter := NewSectionSegmenter(DefaultSegmenterConfig())

	// 正文10点×6、标题28点和20点 → 平均13.5
	// 28/13.5≈2.07 ≥1.8 → 1级；20/13.5≈1.48 ≥1.2 → 3级
	body := func(page int, text string) TextSpan {
		return TextSpan{Page: page, Text: text, FontSize: floatPtr(10.0)}
	}
	pages := []Page{
		{Number: 1, Spans: []TextSpan{
			{Page: 1, Text: "Big Chapter Title", FontSize: floatPtr(28.0)},
			body(1, "regular paragraph one"),
			body(1, "regular paragraph two"),
			body(1, "regular paragraph three"),
			{Page: 1, Text: "Medium Heading", FontSize: floatPtr(20.0)},
			body(1, "more body text here"),
			body(1, "even more body text"),
			body(1, "closing body text"),
		}},
	}

	sections := segmenter.Segment(pages)

	require.Len(t, sections, 1)
	assert.Equal(t, "Big Chapter Title", sections[0].Title)
	assert.Equal(t, 1, sections[0].Level)
	require.Len(t, sections[0].Subsections, 1)
	assert.Equal(t, "Medium Heading", sections[0].Subsections[0].Title)
	assert.Equal(t, 3, sections[0].Subsections[0].Level)
}

// TestSegmentNoHeadingsFallback 测试无标题文档的兜底章节
// 无编号命中且字体均匀时，整个文档成为单个1级章节
func TestSegmentNoHeadingsFallback(t *testing.T) {
	segmenter := NewSectionSegmenter(DefaultSegmenterConfig())

	pages := []Page{
		{Number: 1, Spans: []TextSpan{
			{Page: 1, Text: "plain paragraph", FontSize: floatPtr(12.0)},
			{Page: 1, Text: "another paragraph", FontSize: floatPtr(12.0)},
		}},
		{Number: 2, Spans: []TextSpan{
			{Page: 2, Text: "final paragraph", FontSize: floatPtr(12.0)},
		}},
	}

	sections := segmenter.Segment(pages)

	require.Len(t, sections, 1)
	assert.Equal(t, fallbackSectionTitle, sections[0].Title)
	assert.Equal(t, 1, sections[0].Level)
	assert.Equal(t, PageRange{Start: 1, End: 2}, sections[0].PageRange)
	assert.Contains(t, sections[0].Content, "plain paragraph")
	assert.Contains(t, sections[0].Content, "final paragraph")
}

// TestSegmentPageRangeContainment 测试章节页码范围始终落在文档页界内
func TestSegmentPageRangeContainment(t *testing.T) {
	segmenter := NewSectionSegmenter(DefaultSegmenterConfig())

	pages := []Page{
		makeTextPage(1, "1. First", "a"),
		makeTextPage(2, "2. Second", "b"),
		makeTextPage(3, "3. Third", "c", "trailing text"),
	}

	sections := segmenter.Segment(pages)
	totalPages := 3

	for _, sec := range FlattenSections(sections) {
		assert.GreaterOrEqual(t, sec.PageRange.Start, 1)
		assert.LessOrEqual(t, sec.PageRange.Start, sec.PageRange.End)
		assert.LessOrEqual(t, sec.PageRange.End, totalPages)
	}
}

// TestSegmentNonEmptyGuarantee 测试非空输入必定产出章节
func TestSegmentNonEmptyGuarantee(t *testing.T) {
	segmenter := NewSectionSegmenter(DefaultSegmenterConfig())

	sections := segmenter.Segment([]Page{makeTextPage(1, "just one span")})
	assert.NotEmpty(t, sections)
}

// TestSegmentEmptyInput 测试空输入和纯空白输入
func TestSegmentEmptyInput(t *testing.T) {
	segmenter := NewSectionSegmenter(DefaultSegmenterConfig())

	assert.Empty(t, segmenter.Segment(nil))
	assert.Empty(t, segmenter.Segment([]Page{makeTextPage(1, "   ", "\n")}))
}

// TestDetermineLevel 测试编号到层级的换算
func TestDetermineLevel(t *testing.T) {
	assert.Equal(t, 1, determineLevel("3"))
	assert.Equal(t, 2, determineLevel("1.2"))
	assert.Equal(t, 3, determineLevel("1.2.3"))
	assert.Equal(t, 2, determineLevel("##"))
	assert.Equal(t, 4, determineLevel("####"))
}
