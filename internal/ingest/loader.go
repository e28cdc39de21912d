package ingest

import (
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/fyerfyer/doc-structure-system/internal/preprocess"
)

// Loader 跨度文档加载器接口
// 负责将不同格式的输入转换为带页码的文本跨度
type Loader interface {
	// Load 加载文档，返回页面列表
	Load(filePath string) ([]preprocess.Page, error)

	// LoadReader 从Reader加载文档，返回页面列表
	// filename用于确定文档类型
	LoadReader(r io.Reader, filename string) ([]preprocess.Page, error)
}

// ContentType 表示输入文档的内容类型
type ContentType string

const (
	// SpanJSON 跨度JSON文档类型
	SpanJSON ContentType = "spans"
	// Markdown 文档类型
	Markdown ContentType = "markdown"
	// Unknown 未知类型
	Unknown ContentType = "unknown"
)

// ErrUnsupportedType 不支持的文档类型
var ErrUnsupportedType = errors.New("unsupported document type")

// LoaderFactory 加载器工厂函数，根据文件类型创建对应的加载器
func LoaderFactory(filePath string) (Loader, error) {
	contentType := DetectContentType(filePath)

	switch contentType {
	case SpanJSON:
		return NewSpanLoader(), nil
	case Markdown:
		return NewMarkdownLoader(), nil
	default:
		return nil, ErrUnsupportedType
	}
}

// DetectContentType 根据文件扩展名检测内容类型
func DetectContentType(filePath string) ContentType {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".json":
		return SpanJSON
	case ".md", ".markdown":
		return Markdown
	default:
		return Unknown
	}
}
