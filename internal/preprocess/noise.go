package preprocess

import (
	"regexp"
	"sort"
	"strings"
)

// NoiseConfig 页眉页脚识别配置
type NoiseConfig struct {
	MinRepetition       int     // 模式至少在多少个不同页面出现才视为页眉/页脚
	PositionThreshold   float64 // 距页面顶部/底部多少点以内算作候选区域
	SimilarityThreshold float64 // 近似匹配的相似度阈值（0.0-1.0）
}

// DefaultNoiseConfig 返回默认页眉页脚识别配置
func DefaultNoiseConfig() NoiseConfig {
	return NoiseConfig{
		MinRepetition:       3,
		PositionThreshold:   50.0,
		SimilarityThreshold: 0.9,
	}
}

// HeaderFooterRemover 页眉页脚移除器
// 检测跨页面重复出现在顶部/底部区域的文本模式并从所有页面中剔除
type HeaderFooterRemover struct {
	config NoiseConfig
}

// NewHeaderFooterRemover 创建页眉页脚移除器
func NewHeaderFooterRemover(config NoiseConfig) *HeaderFooterRemover {
	return &HeaderFooterRemover{config: config}
}

// 常见页码文本形状，无论重复次数多少都视为噪声
var pageNumberRegexps = []*regexp.Regexp{
	regexp.MustCompile(`^\d+$`),            // 纯数字
	regexp.MustCompile(`(?i)^Page\s+\d+$`), // "Page 1"
	regexp.MustCompile(`^\d+\s*/\s*\d+$`),  // "1 / 10"
	regexp.MustCompile(`^-\s*\d+\s*-$`),    // "- 1 -"
	regexp.MustCompile(`^\d+\s+페이지$`),      // "1 페이지"
	regexp.MustCompile(`(?i)^p\.\s*\d+$`),  // "p. 1"
	regexp.MustCompile(`^第\s*\d+\s*页$`),    // "第 1 页"
}

// Remove 从所有页面中移除检测到的页眉页脚
// 返回清理后的页面以及检测到的页眉、页脚模式（排序后）
// 页数少于MinRepetition时无法建立重复性，所有页面原样返回
func (r *HeaderFooterRemover) Remove(pages []Page) ([]Page, []string, []string) {
	headerPatterns := r.detectPatterns(pages, r.topBandTexts)
	footerPatterns := r.detectPatterns(pages, r.bottomBandTexts)

	if len(headerPatterns) == 0 && len(footerPatterns) == 0 {
		return pages, nil, nil
	}

	cleaned := make([]Page, len(pages))
	for i, page := range pages {
		cleaned[i] = r.removeFromPage(page, headerPatterns, footerPatterns)
	}

	return cleaned, sortedKeys(headerPatterns), sortedKeys(footerPatterns)
}

// detectPatterns 检测某个区域（顶部或底部）内跨页重复的文本模式
// bandFn负责提取单页的区域文本
func (r *HeaderFooterRemover) detectPatterns(pages []Page, bandFn func(Page) []string) map[string]bool {
	if len(pages) < r.config.MinRepetition {
		return nil
	}

	// 统计每个文本出现在多少个不同页面的区域中
	pageCount := make(map[string]int)
	patterns := make(map[string]bool)

	for _, page := range pages {
		seen := make(map[string]bool)
		for _, text := range bandFn(page) {
			if text == "" {
				continue
			}
			if !seen[text] {
				seen[text] = true
				pageCount[text]++
			}
			// 页码形状始终视为噪声
			if matchesPageNumber(text) {
				patterns[text] = true
			}
		}
	}

	for text, count := range pageCount {
		if count >= r.config.MinRepetition {
			patterns[text] = true
		}
	}

	return patterns
}

// topBandTexts 提取页面顶部区域内的文本
func (r *HeaderFooterRemover) topBandTexts(page Page) []string {
	var texts []string
	for _, span := range page.Spans {
		if !span.HasPosition() {
			continue
		}
		if *span.YPosition <= r.config.PositionThreshold {
			texts = append(texts, strings.TrimSpace(span.Text))
		}
	}
	return texts
}

// bottomBandTexts 提取页面底部区域内的文本
// 底部区域以该页观测到的最大纵向坐标为基准
func (r *HeaderFooterRemover) bottomBandTexts(page Page) []string {
	maxY := 0.0
	for _, span := range page.Spans {
		if span.HasPosition() && *span.YPosition > maxY {
			maxY = *span.YPosition
		}
	}

	threshold := maxY - r.config.PositionThreshold

	var texts []string
	for _, span := range page.Spans {
		if !span.HasPosition() {
			continue
		}
		if *span.YPosition >= threshold {
			texts = append(texts, strings.TrimSpace(span.Text))
		}
	}
	return texts
}

// removeFromPage 从单个页面中剔除匹配模式的文本段
func (r *HeaderFooterRemover) removeFromPage(page Page, headerPatterns, footerPatterns map[string]bool) Page {
	cleaned := Page{Number: page.Number}

	for _, span := range page.Spans {
		trimmed := strings.TrimSpace(span.Text)

		// 精确匹配
		if headerPatterns[trimmed] || footerPatterns[trimmed] {
			continue
		}

		// 近似匹配，覆盖页码嵌在固定文字中等逐页细微变化
		if r.matchesAnySimilar(trimmed, headerPatterns) || r.matchesAnySimilar(trimmed, footerPatterns) {
			continue
		}

		cleaned.Spans = append(cleaned.Spans, span)
	}

	return cleaned
}

// matchesAnySimilar 判断文本是否与任一模式近似匹配
func (r *HeaderFooterRemover) matchesAnySimilar(text string, patterns map[string]bool) bool {
	for pattern := range patterns {
		if r.isSimilar(text, pattern) {
			return true
		}
	}
	return false
}

// isSimilar 字符集合Jaccard相似度判断
// 注意：这是无序的字符集合比较而非编辑距离，对短字符串可能过度匹配，
// 与历史行为保持一致，相关测试明确标注了这一点
func (r *HeaderFooterRemover) isSimilar(text1, text2 string) bool {
	if text1 == "" || text2 == "" {
		return false
	}

	set1 := runeSet(strings.ToLower(text1))
	set2 := runeSet(strings.ToLower(text2))
	if len(set1) == 0 || len(set2) == 0 {
		return false
	}

	intersection := 0
	for ch := range set1 {
		if set2[ch] {
			intersection++
		}
	}
	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return false
	}

	return float64(intersection)/float64(union) >= r.config.SimilarityThreshold
}

// matchesPageNumber 判断文本是否符合常见页码形状
func matchesPageNumber(text string) bool {
	trimmed := strings.TrimSpace(text)
	for _, re := range pageNumberRegexps {
		if re.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// runeSet 构造字符集合
func runeSet(s string) map[rune]bool {
	set := make(map[rune]bool, len(s))
	for _, r := range s {
		set[r] = true
	}
	return set
}

// sortedKeys 返回排序后的模式列表，保证输出确定性
func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
