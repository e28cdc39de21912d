package preprocess

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizerConfig 文本规范化配置
// 每个步骤可以单独开关
type NormalizerConfig struct {
	NormalizeUnicode    bool // 是否执行Unicode NFC规范化
	RemoveControlChars  bool // 是否移除控制字符（保留\t\n\r）
	NormalizeWhitespace bool // 是否规范化空白字符
}

// DefaultNormalizerConfig 返回默认规范化配置
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		NormalizeUnicode:    true,
		RemoveControlChars:  true,
		NormalizeWhitespace: true,
	}
}

// TextNormalizer 文本规范化器
// 纯函数式处理，Normalize是幂等的
type TextNormalizer struct {
	config NormalizerConfig
}

// NewTextNormalizer 创建文本规范化器
func NewTextNormalizer(config NormalizerConfig) *TextNormalizer {
	return &TextNormalizer{config: config}
}

var (
	horizontalSpaceRegexp = regexp.MustCompile(`[ \t]+`)
	multiNewlineRegexp    = regexp.MustCompile(`\n{3,}`)
	urlRegexp             = regexp.MustCompile(`https?://\S+|www\.\S+`)
	excessivePunctRegexp  = regexp.MustCompile(`([.,!?;:])[.,!?;:]{2,}`)
)

// Normalize 规范化文本
// 按配置依次执行Unicode规范化、控制字符移除和空白规范化
func (n *TextNormalizer) Normalize(text string) string {
	if text == "" {
		return ""
	}

	result := text

	if n.config.NormalizeUnicode {
		result = n.normalizeUnicode(result)
	}

	if n.config.RemoveControlChars {
		result = n.removeControlCharacters(result)
	}

	if n.config.NormalizeWhitespace {
		result = n.normalizeWhitespace(result)
	}

	return result
}

// NormalizeBatch 批量规范化文本
func (n *TextNormalizer) NormalizeBatch(texts []string) []string {
	results := make([]string, len(texts))
	for i, text := range texts {
		results[i] = n.Normalize(text)
	}
	return results
}

// normalizeUnicode 执行Unicode NFC规范化（先分解再组合）
func (n *TextNormalizer) normalizeUnicode(text string) string {
	return norm.NFC.String(text)
}

// removeControlCharacters 移除控制字符，保留制表符、换行符和回车符
func (n *TextNormalizer) removeControlCharacters(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\t' || r == '\n' || r == '\r' {
			b.WriteRune(r)
			continue
		}
		// Unicode C类（控制、格式等）字符一律去除
		if unicode.In(r, unicode.C) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// normalizeWhitespace 规范化空白字符
// 连续空格合并为一个，每行去除首尾空白，3个以上连续换行压缩为2个（保留段落分隔）
func (n *TextNormalizer) normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")

	normalized := make([]string, len(lines))
	for i, line := range lines {
		line = horizontalSpaceRegexp.ReplaceAllString(line, " ")
		normalized[i] = strings.TrimSpace(line)
	}

	result := strings.Join(normalized, "\n")
	result = multiNewlineRegexp.ReplaceAllString(result, "\n\n")

	return strings.TrimSpace(result)
}

// NormalizeQuotes 将各种弯引号、方引号统一为ASCII引号
func (n *TextNormalizer) NormalizeQuotes(text string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '‘', '’', '`':
			return '\''
		case '“', '”', '「', '」', '『', '』':
			return '"'
		}
		return r
	}, text)
}

// NormalizeNumbers 将全角数字转换为半角数字
func (n *TextNormalizer) NormalizeNumbers(text string) string {
	return strings.Map(func(r rune) rune {
		if r >= '０' && r <= '９' {
			return '0' + (r - '０')
		}
		return r
	}, text)
}

// RemoveURLs 移除文本中的URL
func (n *TextNormalizer) RemoveURLs(text string) string {
	return urlRegexp.ReplaceAllString(text, "")
}

// RemoveExcessivePunctuation 将3个以上连续标点压缩为2个
func (n *TextNormalizer) RemoveExcessivePunctuation(text string) string {
	return excessivePunctRegexp.ReplaceAllString(text, "$1$1")
}

// CleanSpecialCharacters 移除特殊字符，保留字母数字、空白和指定字符
// keepChars为空时使用默认的常用标点集合
func (n *TextNormalizer) CleanSpecialCharacters(text string, keepChars string) string {
	if keepChars == "" {
		keepChars = ".,!?;:()[]{}'\"-\n\t "
	}

	keep := make(map[rune]bool, len(keepChars))
	for _, r := range keepChars {
		keep[r] = true
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '_' || keep[r] {
			b.WriteRune(r)
		}
	}
	return b.String()
}
