package preprocess

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// floatPtr 测试辅助函数
func floatPtr(v float64) *float64 {
	return &v
}

// makeSpan 构造带坐标的文本段
func makeSpan(page int, text string, y float64) TextSpan {
	return TextSpan{Page: page, Text: text, YPosition: floatPtr(y)}
}

// TestHeaderRemoval 测试跨页重复页眉的检测和移除
func TestHeaderRemoval(t *testing.T) {
	remover := NewHeaderFooterRemover(DefaultNoiseConfig())

	// 5页文档，每页顶部有相同页眉，正文各不相同
	var pages []Page
	for i := 1; i <= 5; i++ {
		pages = append(pages, Page{
			Number: i,
			Spans: []TextSpan{
				makeSpan(i, "Confidential — Draft v3", 10.0),
				makeSpan(i, fmt.Sprintf("unique body content number %d", i), 400.0),
			},
		})
	}

	cleaned, headers, footers := remover.Remove(pages)

	assert.Contains(t, headers, "Confidential — Draft v3")
	assert.Empty(t, footers)

	for _, page := range cleaned {
		for _, span := range page.Spans {
			assert.NotEqual(t, "Confidential — Draft v3", span.Text)
		}
		// 正文不受影响
		require.Len(t, page.Spans, 1)
		assert.Contains(t, page.Spans[0].Text, "unique body content")
	}
}

// TestNoFalseRemoval 测试重复次数不足的文本不会被误删
func TestNoFalseRemoval(t *testing.T) {
	remover := NewHeaderFooterRemover(DefaultNoiseConfig())

	// 顶部文本只出现在2页，低于默认的3页阈值
	pages := []Page{
		{Number: 1, Spans: []TextSpan{makeSpan(1, "Chapter Opening", 10.0), makeSpan(1, "first page text", 400.0)}},
		{Number: 2, Spans: []TextSpan{makeSpan(2, "Chapter Opening", 10.0), makeSpan(2, "second page text", 400.0)}},
		{Number: 3, Spans: []TextSpan{makeSpan(3, "different", 10.0), makeSpan(3, "third page text", 400.0)}},
		{Number: 4, Spans: []TextSpan{makeSpan(4, "other", 10.0), makeSpan(4, "fourth page text", 400.0)}},
	}

	cleaned, headers, _ := remover.Remove(pages)

	assert.NotContains(t, headers, "Chapter Opening")
	assert.Len(t, cleaned[0].Spans, 2)
	assert.Equal(t, "Chapter Opening", cleaned[0].Spans[0].Text)
}

// TestPageNumberAlwaysNoise 测试页码形状无论重复与否都视为噪声
func TestPageNumberAlwaysNoise(t *testing.T) {
	remover := NewHeaderFooterRemover(DefaultNoiseConfig())

	// 每页底部的页码互不相同，但都符合页码形状
	var pages []Page
	for i := 1; i <= 4; i++ {
		pages = append(pages, Page{
			Number: i,
			Spans: []TextSpan{
				makeSpan(i, "body text", 400.0),
				makeSpan(i, "Page "+string(rune('0'+i)), 800.0),
			},
		})
	}

	cleaned, _, footers := remover.Remove(pages)

	assert.NotEmpty(t, footers)
	for _, page := range cleaned {
		require.Len(t, page.Spans, 1)
		assert.Equal(t, "body text", page.Spans[0].Text)
	}
}

// TestPageNumberShapes 测试各种页码文本形状的识别
func TestPageNumberShapes(t *testing.T) {
	shapes := []string{"7", "Page 12", "3 / 10", "- 4 -", "p. 9", "第 2 页"}
	for _, shape := range shapes {
		assert.True(t, matchesPageNumber(shape), "should match page number shape: %q", shape)
	}

	notShapes := []string{"Chapter 1 Overview", "10 items", "page", ""}
	for _, text := range notShapes {
		assert.False(t, matchesPageNumber(text), "should not match: %q", text)
	}
}

// TestFewPagesPassthrough 测试页数少于最小重复数时原样通过
func TestFewPagesPassthrough(t *testing.T) {
	remover := NewHeaderFooterRemover(DefaultNoiseConfig())

	pages := []Page{
		{Number: 1, Spans: []TextSpan{makeSpan(1, "Header", 10.0), makeSpan(1, "1", 800.0)}},
		{Number: 2, Spans: []TextSpan{makeSpan(2, "Header", 10.0), makeSpan(2, "2", 800.0)}},
	}

	cleaned, headers, footers := remover.Remove(pages)

	assert.Empty(t, headers)
	assert.Empty(t, footers)
	// 页码形状也不移除，因为重复性无法建立
	assert.Len(t, cleaned[0].Spans, 2)
	assert.Len(t, cleaned[1].Spans, 2)
}

// TestFuzzyFooterRemoval 测试近似匹配移除逐页细微变化的页脚
func TestFuzzyFooterRemoval(t *testing.T) {
	remover := NewHeaderFooterRemover(DefaultNoiseConfig())

	// 前4页页脚完全一致，第5页多一个句号
	var pages []Page
	for i := 1; i <= 4; i++ {
		pages = append(pages, Page{
			Number: i,
			Spans: []TextSpan{
				makeSpan(i, "body", 400.0),
				makeSpan(i, "Acme Corp Confidential", 800.0),
			},
		})
	}
	pages = append(pages, Page{
		Number: 5,
		Spans: []TextSpan{
			makeSpan(5, "body", 400.0),
			makeSpan(5, "Acme Corp Confidential.", 800.0),
		},
	})

	cleaned, _, footers := remover.Remove(pages)

	assert.Contains(t, footers, "Acme Corp Confidential")
	for _, page := range cleaned {
		require.Len(t, page.Spans, 1, "page %d should only keep body", page.Number)
		assert.Equal(t, "body", page.Spans[0].Text)
	}
}

// TestSimilarityIsCharacterSetJaccard 测试相似度度量的已知行为
// 相似度是无序字符集合的Jaccard比值而不是编辑距离，
// 短字符串的乱序重排也会被判为相同，这是有意保留的历史行为
func TestSimilarityIsCharacterSetJaccard(t *testing.T) {
	remover := NewHeaderFooterRemover(DefaultNoiseConfig())

	// 相同字符集合、不同顺序 → 视为相似
	assert.True(t, remover.isSimilar("abc", "cab"))
	// 大小写不敏感
	assert.True(t, remover.isSimilar("Header", "header"))
	// 字符集合差异超过阈值 → 不相似
	assert.False(t, remover.isSimilar("abc", "xyz"))
	// 空字符串不参与匹配
	assert.False(t, remover.isSimilar("", "abc"))
}

// TestSpansWithoutPosition 测试缺少坐标信息的文本段不参与噪声检测
func TestSpansWithoutPosition(t *testing.T) {
	remover := NewHeaderFooterRemover(DefaultNoiseConfig())

	var pages []Page
	for i := 1; i <= 4; i++ {
		pages = append(pages, Page{
			Number: i,
			Spans: []TextSpan{
				{Page: i, Text: "Repeated Text"}, // 无坐标
				makeSpan(i, fmt.Sprintf("positioned body %d", i), 400.0),
			},
		})
	}

	cleaned, headers, footers := remover.Remove(pages)

	assert.Empty(t, headers)
	assert.Empty(t, footers)
	assert.Len(t, cleaned[0].Spans, 2)
}
