package extract

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/autoledger/internal/model"
)

func TestDirectionRulesResolve(t *testing.T) {
	tests := []struct {
		name string
		text string
		want model.Direction
	}{
		{name: "refund only", text: "退款成功 ¥50.00", want: model.DirectionRefund},
		{name: "refund beats expense", text: "已撤销付款", want: model.DirectionRefund},
		{name: "income", text: "已收款 到账¥100.00", want: model.DirectionIncome},
		{name: "income beats transfer", text: "转账已到账", want: model.DirectionIncome},
		{name: "transfer beats expense", text: "转账付款", want: model.DirectionTransfer},
		{name: "expense", text: "支付成功", want: model.DirectionExpense},
		{name: "nothing", text: "晚上一起吃饭吗", want: model.DirectionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BaseDirectionRules.Resolve(tt.text))
		})
	}
}

func TestInferDirection(t *testing.T) {
	provider := DirectionRules{
		{Direction: model.DirectionExpense, Keywords: []string{"买单"}},
	}

	t.Run("provider table shadows base table", func(t *testing.T) {
		assert.Equal(t, model.DirectionExpense, InferDirection("买单 收款", provider, BaseDirectionRules))
	})

	t.Run("falls back to base table", func(t *testing.T) {
		assert.Equal(t, model.DirectionIncome, InferDirection("收款成功", provider, BaseDirectionRules))
	})

	t.Run("no tables", func(t *testing.T) {
		assert.Equal(t, model.DirectionUnknown, InferDirection("收款成功"))
	})
}

func TestDirectionRulesKeywords(t *testing.T) {
	rules := DirectionRules{
		{Direction: model.DirectionExpense, Keywords: []string{"a", "b"}},
		{Direction: model.DirectionIncome, Keywords: []string{"b", "c"}},
	}
	assert.Equal(t, []string{"a", "b", "c"}, rules.Keywords())
}

func TestKeywordMatchRatio(t *testing.T) {
	rules := DirectionRules{
		{Direction: model.DirectionExpense, Keywords: []string{"a", "b"}},
		{Direction: model.DirectionIncome, Keywords: []string{"b", "c", "d"}},
	}

	assert.InDelta(t, 0.5, KeywordMatchRatio("ab", rules), 1e-9)
	assert.InDelta(t, 1.0, KeywordMatchRatio("abcd", rules), 1e-9)
	assert.InDelta(t, 0.0, KeywordMatchRatio("xyz", rules), 1e-9)
	assert.InDelta(t, 0.0, KeywordMatchRatio("abc"), 1e-9)
}

func TestInferPaymentMethod(t *testing.T) {
	provider := []MethodRule{{Keyword: "借呗", Method: "借呗"}}

	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{name: "provider rule", text: "借呗付款¥20.00", want: "借呗", wantOK: true},
		{name: "base rule", text: "使用花呗付款", want: "花呗", wantOK: true},
		{name: "longer base keyword first", text: "零钱通支付", want: "零钱通", wantOK: true},
		{name: "credit card tail", text: "招商银行信用卡尾号1234消费", want: "信用卡尾号1234", wantOK: true},
		{name: "bare card tail", text: "您尾号5678的卡支出", want: "银行卡尾号5678", wantOK: true},
		{name: "nothing", text: "付款成功", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := InferPaymentMethod(tt.text, provider)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractTags(t *testing.T) {
	rules := []TagRule{
		{Keyword: "扫码", Tag: "扫码支付"},
		{Keyword: "红包", Tag: "红包"},
		{Keyword: "二维码收款", Tag: "收款码"},
		{Keyword: "收款码", Tag: "收款码"},
	}

	tags := ExtractTags("扫码付款 收到红包 二维码收款码", rules)
	assert.ElementsMatch(t, []string{"扫码支付", "红包", "收款码"}, tags)
	assert.True(t, sort.StringsAreSorted(tags))

	assert.Nil(t, ExtractTags("付款成功", rules))
}

func TestContainsAny(t *testing.T) {
	assert.True(t, ContainsAny("您的快递已签收", []string{"包裹", "快递"}))
	assert.False(t, ContainsAny("付款成功", []string{"快递"}))
	assert.False(t, ContainsAny("付款成功", []string{""}))
}
