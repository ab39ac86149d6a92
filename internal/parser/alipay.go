package parser

import (
	"regexp"

	"github.com/Veraticus/autoledger/internal/extract"
	"github.com/Veraticus/autoledger/internal/model"
)

// AlipayPackage is the Alipay app id.
const AlipayPackage = "com.eg.android.AlipayGphone"

// AlipayParser handles Alipay payment, transfer, collection and refund notices.
//
// Typical inputs:
//
//	"向【星巴克咖啡】付款28.50元"
//	"你向星巴克付款￥28.50"
//	"转账给张三100.00元"
//	"退款28.50元已退回至余额宝"
type AlipayParser struct {
	*ProviderParser
}

// NewAlipayParser creates an Alipay parser.
func NewAlipayParser(thresholds Thresholds) *AlipayParser {
	return &AlipayParser{ProviderParser: NewProviderParser(AlipayProfile(), thresholds)}
}

// AlipayProfile returns the Alipay keyword and pattern tables (version 1).
func AlipayProfile() Profile {
	return Profile{
		Name:       "AlipayNotificationParser",
		SourceType: model.SourceAlipay,
		Packages:   []string{AlipayPackage},
		Version:    1,
		Exclusions: []string{
			"快递", "包裹", "物流", "配送", "派送", "取件",
			"消息", "聊天", "会话", "好友",
			"余额变动提醒", "账单已生成", "系统维护",
			"活动", "优惠", "券", "积分", "签到",
			"天气", "新闻", "通知设置",
			"更新", "升级", "版本",
		},
		LogisticsHints: []string{"到达", "签收"},
		MerchantPatterns: []*regexp.Regexp{
			regexp.MustCompile(`你向(.+?)付款`),
			regexp.MustCompile(`向(.+?)的?付款`),
			regexp.MustCompile(`转账给([^\d¥\s,｡]+)`),
			regexp.MustCompile(`转账[\d.,]+元给([^\d¥\s,｡]+)`),
			regexp.MustCompile(`收到(.+?)的?(?:付款|转账)`),
			regexp.MustCompile(`付款给([^\d¥\s,｡]+)`),
		},
		QuickRules: extract.DirectionRules{
			{Direction: model.DirectionRefund, Keywords: []string{"退款", "已退回", "撤销"}},
			{Direction: model.DirectionIncome, Keywords: []string{"已收款", "收款到账", "到账", "入账", "收入"}},
			{Direction: model.DirectionExpense, Keywords: []string{"支付成功", "已支付", "付款", "扣款", "支出"}},
		},
		DirectionRules: extract.DirectionRules{
			{Direction: model.DirectionRefund, Keywords: []string{"退款", "已退回", "撤销", "已撤销"}},
			{Direction: model.DirectionIncome, Keywords: []string{"到账", "收钱码", "收款", "余额宝收益"}},
			{Direction: model.DirectionTransfer, Keywords: []string{"转账给", "转账到", "已转账"}},
			{Direction: model.DirectionExpense, Keywords: []string{"向【", "付款", "支付成功", "扫码支付", "刷脸支付", "消费", "支出", "付钱码"}},
		},
		MethodRules: []extract.MethodRule{
			{Keyword: "余额宝", Method: "余额宝"},
			{Keyword: "花呗", Method: "花呗"},
			{Keyword: "借呗", Method: "借呗"},
			{Keyword: "网商银行", Method: "网商银行"},
			{Keyword: "余额", Method: "支付宝余额"},
		},
		TagRules: []extract.TagRule{
			{Keyword: "扫码", Tag: "扫码支付"},
			{Keyword: "刷脸", Tag: "刷脸支付"},
			{Keyword: "收钱码", Tag: "收钱码"},
			{Keyword: "付钱码", Tag: "付钱码"},
			{Keyword: "转账", Tag: "转账"},
			{Keyword: "红包", Tag: "红包"},
			{Keyword: "余额宝收益", Tag: "余额宝收益"},
		},
		Bonuses: Bonuses{
			Trust:              0.05,
			DirectionAmount:    0.15,
			KeywordRatioWeight: 0.3,
			HighRatioThreshold: 0.5,
			HighRatioBonus:     0.1,
			Complete:           0.05,
		},
	}
}
