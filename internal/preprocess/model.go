package preprocess

import "strings"

// TextSpan 从文档页面提取出的一段文本
// 由外部提取器（PDF解析、OCR等）产出，字体和坐标信息可能缺失
type TextSpan struct {
	Page      int      `json:"page"`                 // 所属页码，从1开始
	Text      string   `json:"text"`                 // 文本内容
	FontSize  *float64 `json:"font_size,omitempty"`  // 字体大小（点），可能缺失
	YPosition *float64 `json:"y_position,omitempty"` // 页面内纵向坐标（点），可能缺失
}

// HasFontSize 判断是否带有字体大小信息
func (s *TextSpan) HasFontSize() bool {
	return s.FontSize != nil
}

// HasPosition 判断是否带有坐标信息
func (s *TextSpan) HasPosition() bool {
	return s.YPosition != nil
}

// Page 一页文档的全部文本段
type Page struct {
	Number int        `json:"number"` // 页码，从1开始，文档内连续
	Spans  []TextSpan `json:"spans"`  // 页面内按阅读顺序排列的文本段
}

// PageRange 页码范围，Start <= End
type PageRange struct {
	Start int `json:"start"` // 起始页码
	End   int `json:"end"`   // 结束页码
}

// Section 文档章节
// 分段阶段构造后不再修改，后续阶段只读引用
type Section struct {
	Title       string     `json:"title"`       // 章节标题
	Level       int        `json:"level"`       // 层级，从1开始，子章节层级严格大于父章节
	Content     string     `json:"content"`     // 标题之后、下一个标题之前的正文，按行拼接
	PageRange   PageRange  `json:"page_range"`  // 章节覆盖的页码范围
	Subsections []*Section `json:"subsections"` // 子章节，按文档顺序
}

// FunctionalGroup 功能分组
// 按关键词命中将章节归入的主题桶，一个章节可同时出现在多个分组
type FunctionalGroup struct {
	Name     string     `json:"name"`     // 分组名称
	Sections []*Section `json:"sections"` // 命中该分组的章节（引用，不复制）
	Keywords []string   `json:"keywords"` // 该分组实际命中的关键词并集
}

// PreprocessResult 预处理结果
// 包含功能分组、被判定为噪声的页眉页脚模式以及诊断信息
type PreprocessResult struct {
	Groups                []*FunctionalGroup `json:"groups"`                  // 功能分组，分类顺序，未分类组在最后
	RemovedHeaderPatterns []string           `json:"removed_header_patterns"` // 被移除的页眉模式
	RemovedFooterPatterns []string           `json:"removed_footer_patterns"` // 被移除的页脚模式
	Warnings              []string           `json:"warnings"`                // 非致命问题的诊断警告
	Stats                 Stats              `json:"stats"`                   // 各阶段耗时统计
	Options               Options            `json:"options"`                 // 产生该结果的有效配置（审计用）
	Taxonomy              []TaxonomyGroup    `json:"taxonomy"`                // 实际使用的关键词分类表
}

// FlattenSections 将章节树展开为扁平列表（先序遍历）
func FlattenSections(sections []*Section) []*Section {
	var flat []*Section
	for _, sec := range sections {
		flat = append(flat, sec)
		if len(sec.Subsections) > 0 {
			flat = append(flat, FlattenSections(sec.Subsections)...)
		}
	}
	return flat
}

// FindSectionByTitle 按标题查找章节（忽略大小写，递归子章节）
func FindSectionByTitle(sections []*Section, title string) *Section {
	for _, sec := range sections {
		if strings.EqualFold(sec.Title, title) {
			return sec
		}
		if found := FindSectionByTitle(sec.Subsections, title); found != nil {
			return found
		}
	}
	return nil
}

// SectionCount 统计章节总数（含子章节）
func SectionCount(sections []*Section) int {
	count := 0
	for _, sec := range sections {
		count += 1 + SectionCount(sec.Subsections)
	}
	return count
}
