package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Veraticus/autoledger/internal/model"
)

// DirectionRule maps a set of phrases to one direction.
type DirectionRule struct {
	Direction model.Direction
	Keywords  []string
}

// DirectionRules is an ordered keyword table. Within a table, resolution
// follows DirectionPriority, not slice order.
type DirectionRules []DirectionRule

// DirectionPriority is the tie-break order when a text matches several directions.
var DirectionPriority = []model.Direction{
	model.DirectionRefund,
	model.DirectionIncome,
	model.DirectionTransfer,
	model.DirectionExpense,
}

// BaseDirectionRules is the provider-independent fallback table.
var BaseDirectionRules = DirectionRules{
	{Direction: model.DirectionRefund, Keywords: []string{"退款", "已退回", "退回", "撤销", "退货"}},
	{Direction: model.DirectionIncome, Keywords: []string{"已收款", "收款", "到账", "入账", "收入", "收益", "收到"}},
	{Direction: model.DirectionTransfer, Keywords: []string{"转账", "转出", "转入"}},
	{Direction: model.DirectionExpense, Keywords: []string{"支付成功", "已支付", "付款", "支出", "消费", "扣款", "扣费"}},
}

// Resolve returns the highest-priority direction whose keywords appear in text.
func (rules DirectionRules) Resolve(text string) model.Direction {
	for _, dir := range DirectionPriority {
		for _, rule := range rules {
			if rule.Direction != dir {
				continue
			}
			if containsAny(text, rule.Keywords) {
				return dir
			}
		}
	}
	return model.DirectionUnknown
}

// Keywords returns every keyword in the table, deduplicated, in table order.
func (rules DirectionRules) Keywords() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if _, ok := seen[kw]; ok {
				continue
			}
			seen[kw] = struct{}{}
			out = append(out, kw)
		}
	}
	return out
}

// InferDirection tries each table in turn and returns the first resolved
// direction, so a provider table shadows the base table passed after it.
func InferDirection(text string, tables ...DirectionRules) model.Direction {
	for _, table := range tables {
		if dir := table.Resolve(text); dir.IsKnown() {
			return dir
		}
	}
	return model.DirectionUnknown
}

// KeywordMatchRatio is the share of distinct keywords from the tables found in text.
func KeywordMatchRatio(text string, tables ...DirectionRules) float64 {
	var all DirectionRules
	for _, table := range tables {
		all = append(all, table...)
	}
	keywords := all.Keywords()
	if len(keywords) == 0 {
		return 0
	}

	matched := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			matched++
		}
	}
	return float64(matched) / float64(len(keywords))
}

// MethodRule maps a keyword to a payment method label.
type MethodRule struct {
	Keyword string
	Method  string
}

// BaseMethodRules is consulted after any provider table.
var BaseMethodRules = []MethodRule{
	{Keyword: "余额宝", Method: "余额宝"},
	{Keyword: "花呗", Method: "花呗"},
	{Keyword: "零钱通", Method: "零钱通"},
	{Keyword: "零钱", Method: "零钱"},
}

var cardTailPattern = regexp.MustCompile(`(信用卡|储蓄卡|借记卡|银行卡)?尾号(\d{4})`)

// InferPaymentMethod returns the first keyword hit from rules, then the base
// table, then a bank-card tail number ("银行卡尾号1234").
func InferPaymentMethod(text string, rules []MethodRule) (string, bool) {
	for _, table := range [][]MethodRule{rules, BaseMethodRules} {
		for _, rule := range table {
			if strings.Contains(text, rule.Keyword) {
				return rule.Method, true
			}
		}
	}

	if m := cardTailPattern.FindStringSubmatch(text); m != nil {
		kind := m[1]
		if kind == "" {
			kind = "银行卡"
		}
		return kind + "尾号" + m[2], true
	}
	return "", false
}

// TagRule attaches a classification label when its keyword is present.
type TagRule struct {
	Keyword string
	Tag     string
}

// ExtractTags returns every matching label, sorted and deduplicated.
func ExtractTags(text string, rules []TagRule) []string {
	set := make(map[string]struct{})
	for _, rule := range rules {
		if strings.Contains(text, rule.Keyword) {
			set[rule.Tag] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}

	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// ContainsAny reports whether text contains at least one of the keywords.
func ContainsAny(text string, keywords []string) bool {
	return containsAny(text, keywords)
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
