package preprocess

import (
	"regexp"
	"strings"
)

// SegmenterConfig 章节分段配置
type SegmenterConfig struct {
	MinHeadingFontSize     float64 // 视为标题的最小字体大小
	FontSizeRatioThreshold float64 // 字体大小相对平均值的比值阈值
}

// DefaultSegmenterConfig 返回默认章节分段配置
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		MinHeadingFontSize:     12.0,
		FontSizeRatioThreshold: 1.2,
	}
}

// 缺少字体信息时使用的参考字体大小
const defaultFontSize = 12.0

// 按优先级排列的标题编号样式
// 编号形式决定标题层级：点数+1、井号个数，其余为1级
var headingRegexps = []*regexp.Regexp{
	regexp.MustCompile(`^(\d+)\.\s+(.+)$`),         // "1. 标题"
	regexp.MustCompile(`^(\d+\.\d+)\s+(.+)$`),      // "1.1 标题"
	regexp.MustCompile(`^(\d+\.\d+\.\d+)\s+(.+)$`), // "1.1.1 标题"
	regexp.MustCompile(`^(#{1,6})\s+(.+)$`),        // "## 标题" Markdown风格
	regexp.MustCompile(`^([가-힣])\.\s+(.+)$`),       // "가. 标题" 韩文序号
	regexp.MustCompile(`^\[(\d+)\]\s+(.+)$`),       // "[1] 标题"
}

// 没有检测到任何标题时的兜底章节标题
const fallbackSectionTitle = "Document Content"

// SectionSegmenter 章节分段器
// 将平铺的文本段流切分为层级化的章节树
type SectionSegmenter struct {
	config SegmenterConfig
}

// NewSectionSegmenter 创建章节分段器
func NewSectionSegmenter(config SegmenterConfig) *SectionSegmenter {
	return &SectionSegmenter{config: config}
}

// textItem 分段过程中使用的文本项
type textItem struct {
	page     int
	text     string
	fontSize *float64
}

// headingItem 识别出的标题项
type headingItem struct {
	index int    // 在文本项流中的下标
	page  int    // 所在页码
	title string // 标题文本（去除编号后）
	level int    // 标题层级
}

// Segment 将页面流分段为顶层章节列表
// 文档中没有任何非空文本时返回空列表；有文本但无标题时返回单个兜底章节
func (s *SectionSegmenter) Segment(pages []Page) []*Section {
	avgFontSize := s.averageFontSize(pages)

	items := s.collectTextItems(pages)
	if len(items) == 0 {
		return nil
	}

	headings := s.identifyHeadings(items, avgFontSize)

	return s.buildHierarchy(headings, items)
}

// averageFontSize 计算全文档平均字体大小
// 没有任何字体信息时返回默认值
func (s *SectionSegmenter) averageFontSize(pages []Page) float64 {
	var sum float64
	count := 0
	for _, page := range pages {
		for _, span := range page.Spans {
			if span.HasFontSize() {
				sum += *span.FontSize
				count++
			}
		}
	}

	if count == 0 {
		return defaultFontSize
	}
	return sum / float64(count)
}

// collectTextItems 按文档顺序收集所有文本项
func (s *SectionSegmenter) collectTextItems(pages []Page) []textItem {
	var items []textItem
	for _, page := range pages {
		for _, span := range page.Spans {
			items = append(items, textItem{
				page:     page.Number,
				text:     span.Text,
				fontSize: span.FontSize,
			})
		}
	}
	return items
}

// identifyHeadings 识别标题项
// 优先匹配编号样式，未命中时回退到字体大小信号
func (s *SectionSegmenter) identifyHeadings(items []textItem, avgFontSize float64) []headingItem {
	var headings []headingItem

	for idx, item := range items {
		trimmed := strings.TrimSpace(item.text)
		if trimmed == "" {
			continue
		}

		if level, title, ok := matchHeadingPattern(trimmed); ok {
			headings = append(headings, headingItem{
				index: idx,
				page:  item.page,
				title: title,
				level: level,
			})
			continue
		}

		// 字体大小信号：显著大于平均字体的文本视为标题
		if item.fontSize != nil && *item.fontSize >= s.config.MinHeadingFontSize {
			if *item.fontSize >= avgFontSize*s.config.FontSizeRatioThreshold {
				headings = append(headings, headingItem{
					index: idx,
					page:  item.page,
					title: trimmed,
					level: inferLevelFromFontSize(*item.fontSize, avgFontSize),
				})
			}
		}
	}

	return headings
}

// matchHeadingPattern 按编号样式匹配标题
// 返回层级、去除编号后的标题文本和是否命中
func matchHeadingPattern(text string) (int, string, bool) {
	for _, re := range headingRegexps {
		match := re.FindStringSubmatch(text)
		if match == nil || len(match) < 3 {
			continue
		}
		return determineLevel(match[1]), strings.TrimSpace(match[2]), true
	}
	return 0, "", false
}

// determineLevel 根据编号部分推断标题层级
func determineLevel(numberPart string) int {
	// "1.1.1"形式按点数+1
	if strings.Contains(numberPart, ".") {
		return strings.Count(numberPart, ".") + 1
	}

	// Markdown井号按井号个数
	if strings.Contains(numberPart, "#") {
		return len(numberPart)
	}

	return 1
}

// inferLevelFromFontSize 根据字体与平均值的比值推断标题层级
func inferLevelFromFontSize(fontSize, avgFontSize float64) int {
	ratio := fontSize / avgFontSize

	switch {
	case ratio >= 1.8:
		return 1
	case ratio >= 1.5:
		return 2
	case ratio >= 1.2:
		return 3
	default:
		return 4
	}
}

// buildHierarchy 构建章节层级结构
// 使用显式的(层级, 章节)栈：弹出所有层级大于等于新标题的栈顶，
// 栈空则作为顶层章节，否则挂到栈顶章节之下，保证单遍、按文档顺序构造
func (s *SectionSegmenter) buildHierarchy(headings []headingItem, items []textItem) []*Section {
	if len(headings) == 0 {
		return s.fallbackSection(items)
	}

	var sections []*Section

	type stackEntry struct {
		level   int
		section *Section
	}
	var stack []stackEntry

	for i, heading := range headings {
		// 标题与下一个标题之间的内容归属当前章节
		startIdx := heading.index + 1
		endIdx := len(items)
		endPage := items[len(items)-1].page
		if i+1 < len(headings) {
			endIdx = headings[i+1].index
			endPage = headings[i+1].page
		}

		var contentLines []string
		for _, item := range items[startIdx:endIdx] {
			if strings.TrimSpace(item.text) != "" {
				contentLines = append(contentLines, item.text)
			}
		}

		section := &Section{
			Title:     heading.title,
			Level:     heading.level,
			Content:   strings.Join(contentLines, "\n"),
			PageRange: PageRange{Start: heading.page, End: endPage},
		}

		// 弹出不可能成为祖先的已打开章节
		for len(stack) > 0 && stack[len(stack)-1].level >= heading.level {
			stack = stack[:len(stack)-1]
		}

		if len(stack) == 0 {
			sections = append(sections, section)
		} else {
			parent := stack[len(stack)-1].section
			parent.Subsections = append(parent.Subsections, section)
		}
		stack = append(stack, stackEntry{level: heading.level, section: section})
	}

	return sections
}

// fallbackSection 无标题时的兜底：整个文档作为单个1级章节
func (s *SectionSegmenter) fallbackSection(items []textItem) []*Section {
	var lines []string
	for _, item := range items {
		if strings.TrimSpace(item.text) != "" {
			lines = append(lines, item.text)
		}
	}

	content := strings.TrimSpace(strings.Join(lines, "\n"))
	if content == "" {
		return nil
	}

	return []*Section{
		{
			Title:   fallbackSectionTitle,
			Level:   1,
			Content: content,
			PageRange: PageRange{
				Start: items[0].page,
				End:   items[len(items)-1].page,
			},
		},
	}
}
