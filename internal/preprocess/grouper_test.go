package preprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeSection 构造测试章节
func makeSection(title, content string) *Section {
	return &Section{
		Title:     title,
		Level:     1,
		Content:   content,
		PageRange: PageRange{Start: 1, End: 1},
	}
}

// TestGroupByKeywords 测试关键词命中分组和未分类兜底
func TestGroupByKeywords(t *testing.T) {
	taxonomy := []TaxonomyGroup{
		{Name: "Auth", Keywords: []string{"login", "password"}},
	}
	grouper := NewFunctionalGrouperWithTaxonomy(taxonomy, nil)

	sections := []*Section{
		makeSection("Account Access", "the password reset flow requires email verification"),
		makeSection("Shipping", "orders ship within two business days"),
	}

	groups := grouper.Group(sections)

	require.Len(t, groups, 2)

	auth := groups[0]
	assert.Equal(t, "Auth", auth.Name)
	require.Len(t, auth.Sections, 1)
	assert.Equal(t, "Account Access", auth.Sections[0].Title)
	assert.Contains(t, auth.Keywords, "password")

	unclassified := groups[1]
	assert.Equal(t, UnclassifiedGroupName, unclassified.Name)
	require.Len(t, unclassified.Sections, 1)
	assert.Equal(t, "Shipping", unclassified.Sections[0].Title)
}

// TestGroupMultiLabel 测试一个章节可同时命中多个分组
func TestGroupMultiLabel(t *testing.T) {
	taxonomy := []TaxonomyGroup{
		{Name: "Auth", Keywords: []string{"login"}},
		{Name: "Security", Keywords: []string{"encryption"}},
	}
	grouper := NewFunctionalGrouperWithTaxonomy(taxonomy, nil)

	sections := []*Section{
		makeSection("Secure Login", "login uses end-to-end encryption"),
	}

	groups := grouper.Group(sections)

	require.Len(t, groups, 2)
	assert.Equal(t, "Auth", groups[0].Name)
	assert.Equal(t, "Security", groups[1].Name)
	// 两个分组引用同一个章节
	assert.Same(t, sections[0], groups[0].Sections[0])
	assert.Same(t, sections[0], groups[1].Sections[0])
}

// TestGroupFlattensSubsections 测试匹配遍历展开后的章节但保留原引用
func TestGroupFlattensSubsections(t *testing.T) {
	taxonomy := []TaxonomyGroup{
		{Name: "Payment", Keywords: []string{"refund"}},
	}
	grouper := NewFunctionalGrouperWithTaxonomy(taxonomy, nil)

	child := makeSection("Refund Policy", "refund within 30 days")
	child.Level = 2
	parent := makeSection("Orders", "order lifecycle overview")
	parent.Subsections = []*Section{child}

	groups := grouper.Group([]*Section{parent})

	// 子章节被独立分类
	var payment *FunctionalGroup
	for _, g := range groups {
		if g.Name == "Payment" {
			payment = g
		}
	}
	require.NotNil(t, payment)
	require.Len(t, payment.Sections, 1)
	assert.Same(t, child, payment.Sections[0])
}

// TestGroupingTotality 测试分组全覆盖：每个展开章节至少属于一个分组
func TestGroupingTotality(t *testing.T) {
	grouper := NewFunctionalGrouper(nil)

	child := makeSection("登录流程", "用户通过密码登录系统")
	child.Level = 2
	sections := []*Section{
		makeSection("订单管理", "订单的创建和退款处理"),
		makeSection("随便写点", "完全无关的内容而已"),
	}
	sections[0].Subsections = []*Section{child}

	groups := grouper.Group(sections)

	flat := FlattenSections(sections)
	for _, sec := range flat {
		found := false
		for _, group := range groups {
			for _, member := range group.Sections {
				if member == sec {
					found = true
				}
			}
		}
		assert.True(t, found, "section %q must belong to at least one group", sec.Title)
	}

	// 未分类分组只包含零命中的章节，且排在最后
	last := groups[len(groups)-1]
	if last.Name == UnclassifiedGroupName {
		for _, sec := range last.Sections {
			for _, group := range groups[:len(groups)-1] {
				for _, member := range group.Sections {
					assert.NotSame(t, sec, member, "unclassified section must not appear in named groups")
				}
			}
		}
	}
}

// TestCustomKeywordsAppend 测试自定义关键词是追加而不是替换
func TestCustomKeywordsAppend(t *testing.T) {
	custom := map[string][]string{
		"认证":   {"biometric"},
		"新分组A": {"alpha"},
		"新分组B": {"beta"},
	}
	grouper := NewFunctionalGrouper(custom)

	taxonomy := grouper.Taxonomy()

	// 默认分组保留原有关键词并追加新关键词
	var auth *TaxonomyGroup
	for i := range taxonomy {
		if taxonomy[i].Name == "认证" {
			auth = &taxonomy[i]
		}
	}
	require.NotNil(t, auth)
	assert.Contains(t, auth.Keywords, "登录")
	assert.Contains(t, auth.Keywords, "biometric")

	// 新分组按名称排序追加在默认分组之后
	n := len(taxonomy)
	assert.Equal(t, "新分组A", taxonomy[n-2].Name)
	assert.Equal(t, "新分组B", taxonomy[n-1].Name)
}

// TestDefaultTaxonomyIsolation 测试默认分类表不会被调用方修改污染
func TestDefaultTaxonomyIsolation(t *testing.T) {
	first := DefaultTaxonomy()
	first[0].Keywords[0] = "mutated"
	first[0].Name = "mutated"

	second := DefaultTaxonomy()
	assert.NotEqual(t, "mutated", second[0].Name)
	assert.NotEqual(t, "mutated", second[0].Keywords[0])
}

// TestMergeTaxonomyDoesNotMutateInput 测试合并不修改输入分类表
func TestMergeTaxonomyDoesNotMutateInput(t *testing.T) {
	base := []TaxonomyGroup{{Name: "A", Keywords: []string{"one"}}}
	merged := MergeTaxonomy(base, map[string][]string{"A": {"two"}})

	assert.Equal(t, []string{"one"}, base[0].Keywords)
	assert.Equal(t, []string{"one", "two"}, merged[0].Keywords)
}

// TestGroupEmptySections 测试空输入
func TestGroupEmptySections(t *testing.T) {
	grouper := NewFunctionalGrouper(nil)
	assert.Empty(t, grouper.Group(nil))
}
