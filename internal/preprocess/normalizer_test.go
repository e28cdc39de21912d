package preprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalizeWhitespace 测试空白字符规范化
func TestNormalizeWhitespace(t *testing.T) {
	normalizer := NewTextNormalizer(DefaultNormalizerConfig())

	t.Run("collapse spaces and trim lines", func(t *testing.T) {
		result := normalizer.Normalize("  hello   world  \n  foo\t\tbar  ")
		assert.Equal(t, "hello world\nfoo bar", result)
	})

	t.Run("collapse excessive newlines", func(t *testing.T) {
		result := normalizer.Normalize("para one\n\n\n\n\npara two")
		assert.Equal(t, "para one\n\npara two", result)
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		assert.Equal(t, "", normalizer.Normalize(""))
	})

	t.Run("blank input collapses to empty", func(t *testing.T) {
		assert.Equal(t, "", normalizer.Normalize("   \n\n  \t "))
	})
}

// TestNormalizeIdempotence 测试规范化的幂等性
// normalize(normalize(s)) == normalize(s) 对任意输入成立
func TestNormalizeIdempotence(t *testing.T) {
	normalizer := NewTextNormalizer(DefaultNormalizerConfig())

	inputs := []string{
		"",
		"simple text",
		"  spaced   out\ttext  ",
		"line one\n\n\n\nline two\n",
		"éclair café", // 组合字符，NFC后合并
		"mixed\x00control\achars",
		"这是中文文本，包含  多个空格",
		"1. Heading\n\ncontent here",
	}

	for _, input := range inputs {
		once := normalizer.Normalize(input)
		twice := normalizer.Normalize(once)
		assert.Equal(t, once, twice, "normalize should be idempotent for %q", input)
	}
}

// TestNormalizeUnicode 测试Unicode NFC规范化
func TestNormalizeUnicode(t *testing.T) {
	normalizer := NewTextNormalizer(DefaultNormalizerConfig())

	// "e" + 组合重音符 应合并为单个字符
	result := normalizer.Normalize("café")
	assert.Equal(t, "café", result)
}

// TestRemoveControlCharacters 测试控制字符移除
func TestRemoveControlCharacters(t *testing.T) {
	// 只开启控制字符移除，避免空白规范化干扰断言
	normalizer := NewTextNormalizer(NormalizerConfig{
		RemoveControlChars: true,
	})

	t.Run("strips control chars", func(t *testing.T) {
		result := normalizer.Normalize("a\x00b\ac\x1fd")
		assert.Equal(t, "abcd", result)
	})

	t.Run("keeps tab newline and carriage return", func(t *testing.T) {
		result := normalizer.Normalize("a\tb\nc\rd")
		assert.Equal(t, "a\tb\nc\rd", result)
	})

	t.Run("strips zero width format chars", func(t *testing.T) {
		result := normalizer.Normalize("zero​width")
		assert.Equal(t, "zerowidth", result)
	})
}

// TestNormalizerToggles 测试各步骤可独立开关
func TestNormalizerToggles(t *testing.T) {
	normalizer := NewTextNormalizer(NormalizerConfig{})

	// 全部关闭时原样返回
	input := "  raw\x00  text  "
	assert.Equal(t, input, normalizer.Normalize(input))
}

// TestNormalizeQuotes 测试引号统一
func TestNormalizeQuotes(t *testing.T) {
	normalizer := NewTextNormalizer(DefaultNormalizerConfig())

	result := normalizer.NormalizeQuotes("‘a’ “b” 「c」")
	assert.Equal(t, `'a' "b" "c"`, result)
}

// TestNormalizeNumbers 测试全角数字转半角
func TestNormalizeNumbers(t *testing.T) {
	normalizer := NewTextNormalizer(DefaultNormalizerConfig())

	assert.Equal(t, "page 123", normalizer.NormalizeNumbers("page １２３"))
}

// TestRemoveURLs 测试URL移除
func TestRemoveURLs(t *testing.T) {
	normalizer := NewTextNormalizer(DefaultNormalizerConfig())

	result := normalizer.RemoveURLs("see https://example.com/doc and www.example.org here")
	assert.NotContains(t, result, "example.com")
	assert.NotContains(t, result, "example.org")
	assert.Contains(t, result, "see")
	assert.Contains(t, result, "here")
}

// TestRemoveExcessivePunctuation 测试连续标点压缩
func TestRemoveExcessivePunctuation(t *testing.T) {
	normalizer := NewTextNormalizer(DefaultNormalizerConfig())

	assert.Equal(t, "wait!! what", normalizer.RemoveExcessivePunctuation("wait!!!!! what"))
}

// TestNormalizeBatch 测试批量规范化
func TestNormalizeBatch(t *testing.T) {
	normalizer := NewTextNormalizer(DefaultNormalizerConfig())

	results := normalizer.NormalizeBatch([]string{"  a  b ", "", "c\n\n\n\nd"})
	assert.Equal(t, []string{"a b", "", "c\n\nd"}, results)
}
