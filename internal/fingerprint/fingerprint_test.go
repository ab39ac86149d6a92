package fingerprint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/autoledger/internal/model"
)

func TestGenerate(t *testing.T) {
	base := model.NewEvent("com.eg.android.AlipayGphone", "支付宝", "向【星巴克咖啡】付款28.50元", 1700000000000)

	t.Run("deterministic", func(t *testing.T) {
		again := model.NewEvent("com.eg.android.AlipayGphone", "支付宝", "向【星巴克咖啡】付款28.50元", 1700000000000)
		assert.Equal(t, Generate(base), Generate(again))
	})

	t.Run("prefix carries package and post time", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(Generate(base), "com.eg.android.AlipayGphone_1700000000000_"))
	})

	variants := map[string]model.RawNotificationEvent{
		"post time plus 1ms": model.NewEvent("com.eg.android.AlipayGphone", "支付宝", "向【星巴克咖啡】付款28.50元", 1700000000001),
		"different package":  model.NewEvent("com.tencent.mm", "支付宝", "向【星巴克咖啡】付款28.50元", 1700000000000),
		"different text":     model.NewEvent("com.eg.android.AlipayGphone", "支付宝", "向【星巴克咖啡】付款28.51元", 1700000000000),
		"different title":    model.NewEvent("com.eg.android.AlipayGphone", "支付宝通知", "向【星巴克咖啡】付款28.50元", 1700000000000),
	}
	for name, ev := range variants {
		t.Run(name, func(t *testing.T) {
			assert.NotEqual(t, Generate(base), Generate(ev))
		})
	}

	t.Run("title and text boundary matters", func(t *testing.T) {
		a := model.NewEvent("pkg", "ab", "c", 1)
		b := model.NewEvent("pkg", "a", "bc", 1)
		assert.NotEqual(t, Generate(a), Generate(b))
	})

	t.Run("absent title equals empty title", func(t *testing.T) {
		text := "付款¥1.00"
		absent := model.RawNotificationEvent{PackageName: "pkg", Text: &text, PostTime: 5}
		empty := model.NewEvent("pkg", "", text, 5)
		assert.Equal(t, Generate(absent), Generate(empty))
	})
}

func TestContentHash(t *testing.T) {
	assert.Equal(t, ContentHash("Hello", "World"), ContentHash("hello", "world"))
	assert.Equal(t, ContentHash("支付宝", "付款¥1.00"), ContentHash(" 支付宝", "付款¥1.00 "))
	assert.NotEqual(t, ContentHash("hello", "world"), ContentHash("hello", "world!"))
	assert.Len(t, ContentHash("a", "b"), 16)
}
