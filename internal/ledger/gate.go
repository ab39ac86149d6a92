package ledger

import (
	"fmt"
	"strings"

	"github.com/Veraticus/autoledger/internal/extract"
	"github.com/Veraticus/autoledger/internal/model"
)

// ecommercePackages post order confirmations that must never become transactions.
var ecommercePackages = map[string]struct{}{
	"com.taobao.taobao":                 {},
	"com.tmall.wireless":                {},
	"com.jingdong.app.mall":             {},
	"com.suning.mobile.ebuy":            {},
	"com.xunmeng.pinduoduo":             {},
	"com.amazon.mShop.android.shopping": {},
	"com.dangdang.buy2":                 {},
}

var orderKeywords = []string{
	"订单", "下单", "已下单", "商品", "订单确认", "购物",
	"发货", "物流", "包裹", "配送", "签收",
}

// strongPaymentKeywords let a notification through even when it mentions an order.
var strongPaymentKeywords = []string{
	"支付", "付款", "扣款", "支付成功", "已支付",
	"收款", "已收款", "到账", "入账",
}

// AppRule overrides processing for one notification source.
type AppRule struct {
	// Disabled turns automatic bookkeeping off for the app.
	Disabled bool
	// Blacklist holds extra keywords that mark the app's notifications as noise.
	Blacklist []string
}

// gate rejects notifications that are known noise before they reach a parser.
// It returns the skip reason, or "" when the event may proceed.
func gate(event model.RawNotificationEvent, apps map[string]AppRule) string {
	if _, ok := ecommercePackages[event.PackageName]; ok {
		return "e-commerce app notification"
	}

	content := strings.ToLower(event.Content())
	if extract.ContainsAny(content, orderKeywords) && !extract.ContainsAny(content, strongPaymentKeywords) {
		return "order notification without payment keywords"
	}

	rule, ok := apps[event.PackageName]
	if !ok {
		return ""
	}
	if rule.Disabled {
		return "automatic bookkeeping disabled for app"
	}
	for _, kw := range rule.Blacklist {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && strings.Contains(content, kw) {
			return fmt.Sprintf("matched app blacklist keyword %q", kw)
		}
	}
	return ""
}
