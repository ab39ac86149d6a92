package parser

import (
	"regexp"

	"github.com/Veraticus/autoledger/internal/extract"
	"github.com/Veraticus/autoledger/internal/model"
)

// UnionPayPackage is the UnionPay (云闪付) app id.
const UnionPayPackage = "com.unionpay"

// UnionPayParser handles UnionPay card consumption and account credit notices.
type UnionPayParser struct {
	*ProviderParser
}

// NewUnionPayParser creates a UnionPay parser.
func NewUnionPayParser(thresholds Thresholds) *UnionPayParser {
	return &UnionPayParser{ProviderParser: NewProviderParser(UnionPayProfile(), thresholds)}
}

// UnionPayProfile returns the UnionPay keyword and pattern tables (version 1).
func UnionPayProfile() Profile {
	return Profile{
		Name:       "UnionPayNotificationParser",
		SourceType: model.SourceUnionPay,
		Packages:   []string{UnionPayPackage},
		Version:    1,
		Exclusions: []string{
			"快递", "物流",
			"活动", "优惠", "券", "积分", "签到", "抽奖",
			"登录", "更新", "版本",
		},
		LogisticsHints: []string{"到达", "签收"},
		MerchantPatterns: []*regexp.Regexp{
			regexp.MustCompile(`在(.+?)(?:消费|支付)`),
			regexp.MustCompile(`商户(?:名称)?:\s*([^\s,｡]+)`),
			regexp.MustCompile(`向(.+?)的?付款`),
			regexp.MustCompile(`收到(.+?)的?转账`),
		},
		QuickRules: extract.DirectionRules{
			{Direction: model.DirectionRefund, Keywords: []string{"退款", "退货", "撤销"}},
			{Direction: model.DirectionIncome, Keywords: []string{"入账", "收入", "到账"}},
			{Direction: model.DirectionExpense, Keywords: []string{"消费", "支出", "扣款", "付款成功", "支付成功"}},
		},
		DirectionRules: extract.DirectionRules{
			{Direction: model.DirectionRefund, Keywords: []string{"退款", "退货", "撤销"}},
			{Direction: model.DirectionIncome, Keywords: []string{"入账", "收入", "到账", "收款"}},
			{Direction: model.DirectionTransfer, Keywords: []string{"转账", "转出"}},
			{Direction: model.DirectionExpense, Keywords: []string{"消费", "支出", "扣款", "付款", "支付"}},
		},
		MethodRules: []extract.MethodRule{
			{Keyword: "云闪付余额", Method: "云闪付余额"},
		},
		TagRules: []extract.TagRule{
			{Keyword: "扫码", Tag: "扫码支付"},
			{Keyword: "NFC", Tag: "NFC"},
			{Keyword: "二维码", Tag: "二维码"},
		},
		Bonuses: Bonuses{
			Trust:              0.05,
			DirectionAmount:    0.1,
			KeywordRatioWeight: 0.2,
			HighRatioThreshold: 0.5,
			HighRatioBonus:     0.1,
			Complete:           0.05,
		},
	}
}
