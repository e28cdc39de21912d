package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fyerfyer/doc-structure-system/internal/preprocess"
)

// spanDocument 跨度JSON文档的顶层结构
type spanDocument struct {
	Pages []spanPage `json:"pages"`
}

// spanPage 跨度JSON文档中的单页
type spanPage struct {
	Number int        `json:"number"`
	Spans  []spanItem `json:"spans"`
}

// spanItem 跨度JSON文档中的单条文本跨度
type spanItem struct {
	Text      string   `json:"text"`
	FontSize  *float64 `json:"font_size,omitempty"`
	YPosition *float64 `json:"y_position,omitempty"`
}

// SpanLoader 跨度JSON文档加载器
// 解析上游提取器输出的带页码、字号和纵向位置的文本跨度
type SpanLoader struct{}

// NewSpanLoader 创建新的跨度JSON加载器
func NewSpanLoader() Loader {
	return &SpanLoader{}
}

// Load 加载跨度JSON文件
func (l *SpanLoader) Load(filePath string) ([]preprocess.Page, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open span document: %v", err)
	}
	defer file.Close()

	return l.LoadReader(file, filePath)
}

// LoadReader 从Reader解析跨度JSON内容
func (l *SpanLoader) LoadReader(r io.Reader, filename string) ([]preprocess.Page, error) {
	var doc spanDocument
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode span document: %v", err)
	}

	if err := validateSpanDocument(&doc); err != nil {
		return nil, err
	}

	pages := make([]preprocess.Page, 0, len(doc.Pages))
	for _, p := range doc.Pages {
		page := preprocess.Page{Number: p.Number}
		for _, s := range p.Spans {
			page.Spans = append(page.Spans, preprocess.TextSpan{
				Page:      p.Number,
				Text:      s.Text,
				FontSize:  s.FontSize,
				YPosition: s.YPosition,
			})
		}
		pages = append(pages, page)
	}

	return pages, nil
}

// validateSpanDocument 校验跨度文档结构
// 页码必须从1开始连续递增
func validateSpanDocument(doc *spanDocument) error {
	if len(doc.Pages) == 0 {
		return fmt.Errorf("invalid span document: no pages")
	}

	for i, p := range doc.Pages {
		expected := i + 1
		if p.Number != expected {
			return fmt.Errorf("invalid span document: page %d has number %d, expected %d", i, p.Number, expected)
		}
	}

	return nil
}
