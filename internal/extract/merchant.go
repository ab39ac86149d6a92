package extract

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	bracketMerchantPattern = regexp.MustCompile(`【([^】]+)】|\[([^\]]+)\]`)

	// Parenthetical decorations, both ASCII and after full-width folding.
	decorationPattern = regexp.MustCompile(`\([^)]*\)|（[^）]*）|<[^>]*>|《[^》]*》`)
)

// bracketLabels are bracketed tokens that are message-type labels, not merchants,
// e.g. "[转账]张三向你转账" or "[2条]".
var bracketLabels = map[string]struct{}{
	"转账":   {},
	"红包":   {},
	"微信红包": {},
	"微信支付": {},
	"图片":   {},
	"语音":   {},
	"视频":   {},
	"链接":   {},
	"文件":   {},
	"位置":   {},
	"动画表情": {},
	"支付宝":  {},
}

var countLabelPattern = regexp.MustCompile(`^\d+条$`)

// storefrontSuffixes are stripped repeatedly from the end of a merchant name.
var storefrontSuffixes = []string{"旗舰店", "专营店", "专卖店", "官方"}

// ExtractBracketMerchant returns the first 【…】 or […] token that is not a
// message label. It reports false when none is found.
func ExtractBracketMerchant(text string) (string, bool) {
	for _, m := range bracketMerchantPattern.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		name = strings.TrimSpace(name)
		if name == "" || isBracketLabel(name) {
			continue
		}
		return name, true
	}
	return "", false
}

func isBracketLabel(name string) bool {
	if _, ok := bracketLabels[name]; ok {
		return true
	}
	return countLabelPattern.MatchString(name)
}

// ExtractMerchant applies the bracket rule first and then each provider pattern
// in order. Every pattern must capture the merchant in group 1.
func ExtractMerchant(text string, patterns []*regexp.Regexp) (string, bool) {
	if name, ok := ExtractBracketMerchant(text); ok {
		return name, true
	}

	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		name := strings.TrimSpace(m[1])
		if name != "" {
			return name, true
		}
	}
	return "", false
}

// NormalizeMerchant strips emoji, parenthetical decorations and common
// storefront suffixes. If nothing is left it falls back to the trimmed input.
func NormalizeMerchant(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	name := stripEmoji(raw)
	name = decorationPattern.ReplaceAllString(name, "")
	name = strings.Trim(name, "【】[] \t")

	for trimmed := true; trimmed; {
		trimmed = false
		for _, suffix := range storefrontSuffixes {
			if strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
				name = strings.TrimSpace(strings.TrimSuffix(name, suffix))
				trimmed = true
			}
		}
	}

	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return raw
	}
	return name
}

func stripEmoji(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\u200d' || r == '\ufe0f' || r == '\ufe0e':
			return -1
		case r >= 0x1F000 && r <= 0x1FAFF:
			return -1
		case r >= 0x2600 && r <= 0x27BF:
			return -1
		case unicode.Is(unicode.So, r):
			return -1
		}
		return r
	}, s)
}
