package parser

import (
	"regexp"

	"github.com/Veraticus/autoledger/internal/extract"
	"github.com/Veraticus/autoledger/internal/model"
)

// WeChatPackage is the WeChat app id.
const WeChatPackage = "com.tencent.mm"

// WeChatParser handles WeChat Pay receipts, collections, transfers and red packets.
// Chat notifications share the package, so most WeChat events end in Failed.
type WeChatParser struct {
	*ProviderParser
}

// NewWeChatParser creates a WeChat parser.
func NewWeChatParser(thresholds Thresholds) *WeChatParser {
	return &WeChatParser{ProviderParser: NewProviderParser(WeChatProfile(), thresholds)}
}

// WeChatProfile returns the WeChat keyword and pattern tables (version 1).
func WeChatProfile() Profile {
	return Profile{
		Name:       "WeChatNotificationParser",
		SourceType: model.SourceWeChat,
		Packages:   []string{WeChatPackage},
		Version:    1,
		Exclusions: []string{
			"快递", "包裹", "物流", "取件",
			"朋友圈", "视频通话", "语音通话", "邀请你", "公众号",
			"活动", "优惠", "券", "积分", "签到",
			"登录", "更新", "升级", "版本",
		},
		LogisticsHints: []string{"到达", "签收"},
		MerchantPatterns: []*regexp.Regexp{
			regexp.MustCompile(`在(.+?)消费`),
			regexp.MustCompile(`向(.+?)的?付款`),
			regexp.MustCompile(`付款给([^\d¥\s,｡]+)`),
			regexp.MustCompile(`转账给([^\d¥\s,｡]+)`),
			regexp.MustCompile(`收到(.+?)的?(?:转账|红包|付款)`),
			regexp.MustCompile(`([^\s\]:,｡]+?)向你转账`),
			regexp.MustCompile(`商户(?:名称)?:\s*([^\s,｡]+)`),
			regexp.MustCompile(`收款方:\s*([^\s,｡]+)`),
		},
		QuickRules: extract.DirectionRules{
			{Direction: model.DirectionRefund, Keywords: []string{"退款", "已退回", "退还"}},
			{Direction: model.DirectionIncome, Keywords: []string{"收款到账", "已收款", "已存入零钱", "向你转账", "到账"}},
			{Direction: model.DirectionExpense, Keywords: []string{"支付成功", "付款成功", "已支付", "扣费成功", "付款"}},
		},
		DirectionRules: extract.DirectionRules{
			{Direction: model.DirectionRefund, Keywords: []string{"退款", "已退回", "退还"}},
			{Direction: model.DirectionIncome, Keywords: []string{"收款", "已收款", "到账", "收到", "向你转账", "已存入零钱"}},
			{Direction: model.DirectionTransfer, Keywords: []string{"转账给", "你已转账", "转账"}},
			{Direction: model.DirectionExpense, Keywords: []string{"付款", "支付凭证", "消费", "扣费", "已支付", "发出红包"}},
		},
		MethodRules: []extract.MethodRule{
			{Keyword: "零钱通", Method: "零钱通"},
			{Keyword: "零钱", Method: "零钱"},
			{Keyword: "亲属卡", Method: "亲属卡"},
		},
		TagRules: []extract.TagRule{
			{Keyword: "红包", Tag: "红包"},
			{Keyword: "转账", Tag: "转账"},
			{Keyword: "扫码", Tag: "扫码支付"},
			{Keyword: "收款码", Tag: "收款码"},
			{Keyword: "二维码收款", Tag: "收款码"},
			{Keyword: "零钱", Tag: "零钱"},
			{Keyword: "自动扣费", Tag: "自动扣费"},
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
