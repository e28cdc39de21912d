package preprocess

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Options 预处理配置
// 每次调用以值传递，内部使用新副本，可安全并发调用
type Options struct {
	NormalizeText        bool `json:"normalize_text"`         // 是否执行文本规范化
	RemoveHeadersFooters bool `json:"remove_headers_footers"` // 是否移除页眉页脚
	SegmentSections      bool `json:"segment_sections"`       // 是否执行章节分段
	GroupByFunction      bool `json:"group_by_function"`      // 是否执行功能分组

	MinRepetition          int     `json:"min_repetition"`            // 页眉页脚最小重复页数
	PositionThreshold      float64 `json:"position_threshold"`        // 页眉页脚候选区域高度（点）
	SimilarityThreshold    float64 `json:"similarity_threshold"`      // 噪声近似匹配阈值
	MinHeadingFontSize     float64 `json:"min_heading_font_size"`     // 标题最小字体
	FontSizeRatioThreshold float64 `json:"font_size_ratio_threshold"` // 标题字体比值阈值

	CustomKeywords map[string][]string `json:"custom_keywords,omitempty"` // 自定义分组关键词（追加式）
}

// DefaultOptions 返回默认预处理配置
func DefaultOptions() Options {
	return Options{
		NormalizeText:          true,
		RemoveHeadersFooters:   true,
		SegmentSections:        true,
		GroupByFunction:        true,
		MinRepetition:          3,
		PositionThreshold:      50.0,
		SimilarityThreshold:    0.9,
		MinHeadingFontSize:     12.0,
		FontSizeRatioThreshold: 1.2,
	}
}

// Clone 返回配置的深拷贝
// CustomKeywords为引用类型，拷贝后修改不影响原配置
func (o Options) Clone() Options {
	cloned := o
	if o.CustomKeywords != nil {
		cloned.CustomKeywords = make(map[string][]string, len(o.CustomKeywords))
		for name, words := range o.CustomKeywords {
			cloned.CustomKeywords[name] = append([]string(nil), words...)
		}
	}
	return cloned
}

// Stats 各阶段耗时统计
type Stats struct {
	NormalizationTime time.Duration `json:"normalization_time"` // 规范化耗时
	NoiseRemovalTime  time.Duration `json:"noise_removal_time"` // 页眉页脚移除耗时
	SegmentationTime  time.Duration `json:"segmentation_time"`  // 章节分段耗时
	GroupingTime      time.Duration `json:"grouping_time"`      // 功能分组耗时
	TotalTime         time.Duration `json:"total_time"`         // 总耗时
	SectionCount      int           `json:"section_count"`      // 章节总数（含子章节）
	GroupCount        int           `json:"group_count"`        // 分组数量
}

// 禁用功能分组时使用的整体分组名
const allSectionsGroupName = "全部"

// 结果校验中内容长度的告警阈值
const (
	veryShortContentLen = 10
	veryLongContentLen  = 100000
)

// Preprocessor 文档结构化引擎
// 按顺序执行规范化、页眉页脚移除、章节分段和功能分组，
// 纯内存计算，无I/O，对独立文档可并发调用
type Preprocessor struct {
	options Options
	logger  *logrus.Logger
}

// NewPreprocessor 创建文档结构化引擎
func NewPreprocessor(options Options, logger *logrus.Logger) *Preprocessor {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Preprocessor{
		options: options,
		logger:  logger,
	}
}

// Options 返回引擎当前配置的副本
func (p *Preprocessor) Options() Options {
	return p.options.Clone()
}

// Process 执行完整的预处理流水线
// 输入为空或完全没有文本段时返回ErrInvalidContent；
// 各阶段的内部错误包装为StageError立即返回，不做阶段级部分容错
func (p *Preprocessor) Process(pages []Page) (*PreprocessResult, error) {
	start := time.Now()

	var warnings []string

	if err := validateInput(pages); err != nil {
		return nil, err
	}
	if allSpansBlank(pages) {
		p.logger.Warn("Document has no non-blank text content")
		warnings = append(warnings, "document has no non-blank text content")
	}

	// 回显配置时深拷贝，避免调用方通过结果改写引擎配置
	result := &PreprocessResult{Options: p.options.Clone()}

	// 阶段1：文本规范化
	if p.options.NormalizeText {
		stageStart := time.Now()
		if err := runStage(StageNormalization, func() {
			pages = p.normalizePages(pages)
		}); err != nil {
			return nil, err
		}
		result.Stats.NormalizationTime = time.Since(stageStart)
		p.logger.WithField("duration", result.Stats.NormalizationTime).Debug("Text normalization completed")
	}

	// 阶段2：页眉页脚移除
	if p.options.RemoveHeadersFooters {
		stageStart := time.Now()
		remover := NewHeaderFooterRemover(NoiseConfig{
			MinRepetition:       p.options.MinRepetition,
			PositionThreshold:   p.options.PositionThreshold,
			SimilarityThreshold: p.options.SimilarityThreshold,
		})
		var headers, footers []string
		pages, headers, footers = remover.Remove(pages)
		result.RemovedHeaderPatterns = headers
		result.RemovedFooterPatterns = footers
		result.Stats.NoiseRemovalTime = time.Since(stageStart)

		p.logger.WithFields(logrus.Fields{
			"header_patterns": len(headers),
			"footer_patterns": len(footers),
		}).Info("Header/footer removal completed")
	}

	// 阶段3：章节分段
	var sections []*Section
	if p.options.SegmentSections {
		stageStart := time.Now()
		segmenter := NewSectionSegmenter(SegmenterConfig{
			MinHeadingFontSize:     p.options.MinHeadingFontSize,
			FontSizeRatioThreshold: p.options.FontSizeRatioThreshold,
		})
		if err := runStage(StageSegmentation, func() {
			sections = segmenter.Segment(pages)
		}); err != nil {
			return nil, err
		}
		result.Stats.SegmentationTime = time.Since(stageStart)

		p.logger.WithField("top_level_sections", len(sections)).Info("Section segmentation completed")
	}

	// 阶段4：功能分组
	if p.options.GroupByFunction && len(sections) > 0 {
		stageStart := time.Now()
		grouper := NewFunctionalGrouper(p.options.CustomKeywords)
		if err := runStage(StageGrouping, func() {
			result.Groups = grouper.Group(sections)
			result.Taxonomy = grouper.Taxonomy()
		}); err != nil {
			return nil, err
		}
		result.Stats.GroupingTime = time.Since(stageStart)

		p.logger.WithField("groups", len(result.Groups)).Info("Functional grouping completed")
	} else if len(sections) > 0 {
		// 未启用分组时将顶层章节放入单一整体分组
		result.Groups = []*FunctionalGroup{
			{Name: allSectionsGroupName, Sections: sections, Keywords: []string{}},
		}
	}

	result.Stats.SectionCount = SectionCount(sections)
	result.Stats.GroupCount = len(result.Groups)
	result.Stats.TotalTime = time.Since(start)

	warnings = append(warnings, validateResult(result.Groups)...)
	result.Warnings = warnings

	p.logger.WithFields(logrus.Fields{
		"sections": result.Stats.SectionCount,
		"groups":   result.Stats.GroupCount,
		"warnings": len(warnings),
		"total":    result.Stats.TotalTime,
	}).Info("Preprocessing completed")

	return result, nil
}

// runStage 执行单个阶段，将阶段内部的panic包装为StageError
// 违反Page/TextSpan约定的输入在阶段内部的意外失败由此统一出口
func runStage(stage string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if inner, ok := r.(error); ok {
				err = NewStageError(stage, inner)
			} else {
				err = NewStageError(stage, fmt.Errorf("%v", r))
			}
		}
	}()

	fn()
	return nil
}

// validateInput 校验输入页面
func validateInput(pages []Page) error {
	if len(pages) == 0 {
		return ErrInvalidContent
	}

	for _, page := range pages {
		if len(page.Spans) > 0 {
			return nil
		}
	}
	return ErrInvalidContent
}

// allSpansBlank 判断是否所有文本段都是空白
func allSpansBlank(pages []Page) bool {
	for _, page := range pages {
		for _, span := range page.Spans {
			if strings.TrimSpace(span.Text) != "" {
				return false
			}
		}
	}
	return true
}

// normalizePages 规范化所有页面的文本段
func (p *Preprocessor) normalizePages(pages []Page) []Page {
	normalizer := NewTextNormalizer(DefaultNormalizerConfig())

	normalized := make([]Page, len(pages))
	for i, page := range pages {
		normalized[i] = Page{Number: page.Number, Spans: make([]TextSpan, len(page.Spans))}
		for j, span := range page.Spans {
			span.Text = normalizer.Normalize(span.Text)
			normalized[i].Spans[j] = span
		}
	}
	return normalized
}

// validateResult 校验分组结果，收集非致命问题作为警告
// 多标签章节会同时出现在多个分组，按指针去重，每个章节只告警一次
func validateResult(groups []*FunctionalGroup) []string {
	var warnings []string

	seen := make(map[*Section]bool)
	for _, group := range groups {
		if len(group.Sections) == 0 {
			warnings = append(warnings, fmt.Sprintf("functional group %q has no sections", group.Name))
		}

		for _, section := range group.Sections {
			if seen[section] {
				continue
			}
			seen[section] = true

			if strings.TrimSpace(section.Title) == "" {
				warnings = append(warnings, fmt.Sprintf("section in group %q has empty title", group.Name))
			}

			if len(section.Content) > veryLongContentLen {
				warnings = append(warnings, fmt.Sprintf("section %q has very long content (%d chars)", section.Title, len(section.Content)))
			} else if len(section.Content) < veryShortContentLen {
				warnings = append(warnings, fmt.Sprintf("section %q has very short content (%d chars)", section.Title, len(section.Content)))
			}
		}

		if group.Name == UnclassifiedGroupName {
			warnings = append(warnings, fmt.Sprintf("%d sections matched no taxonomy keywords", len(group.Sections)))
		}
	}

	return warnings
}
