package ingest

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"

	"github.com/fyerfyer/doc-structure-system/internal/preprocess"
)

// MarkdownLoader Markdown文档加载器
// 将Markdown结构映射为文本跨度：标题转换为带"#"前缀的跨度，
// 水平分割线视为分页符
type MarkdownLoader struct{}

// NewMarkdownLoader 创建新的Markdown加载器
func NewMarkdownLoader() Loader {
	return &MarkdownLoader{}
}

// Load 加载Markdown文件
func (l *MarkdownLoader) Load(filePath string) ([]preprocess.Page, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open markdown file: %v", err)
	}
	defer file.Close()

	return l.LoadReader(file, filePath)
}

// LoadReader 从Reader解析Markdown内容
func (l *MarkdownLoader) LoadReader(r io.Reader, filename string) ([]preprocess.Page, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown content: %v", err)
	}

	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	mdParser := parser.NewWithExtensions(extensions)
	doc := mdParser.Parse(content)

	pages := pagesFromAST(doc)
	if len(pages) == 0 {
		return nil, fmt.Errorf("invalid markdown document: no text content")
	}

	return pages, nil
}

// pagesFromAST 遍历顶层块节点构建页面列表
func pagesFromAST(doc ast.Node) []preprocess.Page {
	var pages []preprocess.Page
	current := preprocess.Page{Number: 1}

	flush := func() {
		if len(current.Spans) > 0 {
			pages = append(pages, current)
		}
		current = preprocess.Page{Number: len(pages) + 1}
	}

	for _, node := range doc.GetChildren() {
		switch n := node.(type) {
		case *ast.HorizontalRule:
			flush()
		case *ast.Heading:
			text := collectText(n)
			if text == "" {
				continue
			}
			current.Spans = append(current.Spans, preprocess.TextSpan{
				Page: current.Number,
				Text: strings.Repeat("#", n.Level) + " " + text,
			})
		default:
			text := collectText(node)
			if text == "" {
				continue
			}
			current.Spans = append(current.Spans, preprocess.TextSpan{
				Page: current.Number,
				Text: text,
			})
		}
	}
	flush()

	return pages
}

// collectText 收集节点下所有文本字面量
func collectText(node ast.Node) string {
	var sb strings.Builder

	ast.WalkFunc(node, func(n ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch t := n.(type) {
		case *ast.Text:
			sb.Write(t.Literal)
		case *ast.Code:
			sb.Write(t.Literal)
		case *ast.CodeBlock:
			sb.Write(t.Literal)
		case *ast.Softbreak, *ast.Hardbreak:
			sb.WriteString(" ")
		}
		return ast.GoToNext
	})

	return strings.TrimSpace(sb.String())
}
