package preprocess

import (
	"sort"
	"strings"
)

// TaxonomyGroup 关键词分类表中的一个分组条目
// 分类表是有序的，匹配和输出都按插入顺序进行
type TaxonomyGroup struct {
	Name     string   `json:"name"`     // 分组名称
	Keywords []string `json:"keywords"` // 该分组的关键词列表
}

// UnclassifiedGroupName 未命中任何分组的章节的兜底分组名
const UnclassifiedGroupName = "未分类"

// DefaultTaxonomy 返回内置的默认关键词分类表
// 每次调用返回新副本，调用方的修改不会影响内置默认值
func DefaultTaxonomy() []TaxonomyGroup {
	return []TaxonomyGroup{
		{Name: "认证", Keywords: []string{
			"登录", "登出", "注册", "注销", "密码", "认证", "权限", "会话",
			"login", "logout", "password", "token", "OAuth", "SSO",
		}},
		{Name: "支付", Keywords: []string{
			"支付", "购买", "订单", "退款", "结算", "积分", "优惠券", "折扣", "价格",
			"payment", "order", "refund", "billing",
		}},
		{Name: "用户管理", Keywords: []string{
			"用户", "会员", "个人资料", "个人信息", "账号", "账户",
			"user", "profile", "account",
		}},
		{Name: "商品管理", Keywords: []string{
			"商品", "产品", "目录", "库存", "上架", "下架",
			"product", "catalog", "inventory",
		}},
		{Name: "搜索", Keywords: []string{
			"搜索", "筛选", "排序", "查询", "检索",
			"search", "filter", "query",
		}},
		{Name: "通知", Keywords: []string{
			"通知", "推送", "消息", "邮件", "短信",
			"notification", "push", "email", "SMS",
		}},
		{Name: "管理后台", Keywords: []string{
			"管理员", "后台", "仪表盘", "统计", "监控",
			"admin", "dashboard", "monitoring",
		}},
		{Name: "数据管理", Keywords: []string{
			"数据库", "备份", "恢复", "迁移", "模式",
			"database", "backup", "migration", "schema",
		}},
		{Name: "API", Keywords: []string{
			"API", "接口", "端点", "REST", "GraphQL", "webhook",
		}},
		{Name: "安全", Keywords: []string{
			"安全", "加密", "漏洞", "XSS", "CSRF", "SQL Injection",
			"security", "encryption",
		}},
	}
}

// MergeTaxonomy 将调用方自定义关键词合并进分类表
// 已存在的分组追加关键词而不是替换；新分组按名称排序后追加在末尾，
// 保证合并结果的顺序是确定的。输入分类表不会被修改
func MergeTaxonomy(taxonomy []TaxonomyGroup, custom map[string][]string) []TaxonomyGroup {
	merged := make([]TaxonomyGroup, len(taxonomy))
	index := make(map[string]int, len(taxonomy))
	for i, group := range taxonomy {
		merged[i] = TaxonomyGroup{
			Name:     group.Name,
			Keywords: append([]string(nil), group.Keywords...),
		}
		index[group.Name] = i
	}

	if len(custom) == 0 {
		return merged
	}

	var newNames []string
	for name := range custom {
		if i, ok := index[name]; ok {
			merged[i].Keywords = append(merged[i].Keywords, custom[name]...)
		} else {
			newNames = append(newNames, name)
		}
	}

	sort.Strings(newNames)
	for _, name := range newNames {
		merged = append(merged, TaxonomyGroup{
			Name:     name,
			Keywords: append([]string(nil), custom[name]...),
		})
	}

	return merged
}

// FunctionalGrouper 功能分组器
// 按关键词命中将章节归入主题分组，多标签分类
type FunctionalGrouper struct {
	taxonomy   []TaxonomyGroup
	normalized [][]string // 与taxonomy对应的小写关键词
}

// NewFunctionalGrouper 创建功能分组器
// customKeywords会合并进默认分类表（追加而非替换）
func NewFunctionalGrouper(customKeywords map[string][]string) *FunctionalGrouper {
	return NewFunctionalGrouperWithTaxonomy(DefaultTaxonomy(), customKeywords)
}

// NewFunctionalGrouperWithTaxonomy 使用指定分类表创建功能分组器
func NewFunctionalGrouperWithTaxonomy(taxonomy []TaxonomyGroup, customKeywords map[string][]string) *FunctionalGrouper {
	merged := MergeTaxonomy(taxonomy, customKeywords)

	normalized := make([][]string, len(merged))
	for i, group := range merged {
		normalized[i] = make([]string, len(group.Keywords))
		for j, kw := range group.Keywords {
			normalized[i][j] = strings.ToLower(kw)
		}
	}

	return &FunctionalGrouper{
		taxonomy:   merged,
		normalized: normalized,
	}
}

// Taxonomy 返回实际使用的分类表（合并后的副本）
func (g *FunctionalGrouper) Taxonomy() []TaxonomyGroup {
	result := make([]TaxonomyGroup, len(g.taxonomy))
	copy(result, g.taxonomy)
	return result
}

// Group 对章节进行功能分组
// 匹配时遍历展开后的章节列表，但分组中保存的是原章节引用（不破坏层级）；
// 未命中任何分组的章节归入未分类分组（仅在非空时创建，始终排在最后）
func (g *FunctionalGrouper) Group(sections []*Section) []*FunctionalGroup {
	flat := FlattenSections(sections)

	groupSections := make([][]*Section, len(g.taxonomy))
	groupKeywords := make([]map[string]bool, len(g.taxonomy))
	matched := make([]bool, len(flat))

	for si, section := range flat {
		text := strings.ToLower(section.Title + " " + section.Content)

		for gi := range g.taxonomy {
			var hits []string
			for _, kw := range g.normalized[gi] {
				if kw != "" && strings.Contains(text, kw) {
					hits = append(hits, kw)
				}
			}
			if len(hits) == 0 {
				continue
			}

			matched[si] = true
			groupSections[gi] = append(groupSections[gi], section)
			if groupKeywords[gi] == nil {
				groupKeywords[gi] = make(map[string]bool)
			}
			for _, kw := range hits {
				groupKeywords[gi][kw] = true
			}
		}
	}

	var groups []*FunctionalGroup
	for gi, group := range g.taxonomy {
		if len(groupSections[gi]) == 0 {
			continue
		}
		groups = append(groups, &FunctionalGroup{
			Name:     group.Name,
			Sections: groupSections[gi],
			Keywords: sortedKeys(groupKeywords[gi]),
		})
	}

	// 未命中任何分组的章节收入兜底分组
	var unclassified []*Section
	for si, section := range flat {
		if !matched[si] {
			unclassified = append(unclassified, section)
		}
	}
	if len(unclassified) > 0 {
		groups = append(groups, &FunctionalGroup{
			Name:     UnclassifiedGroupName,
			Sections: unclassified,
			Keywords: []string{},
		})
	}

	return groups
}
