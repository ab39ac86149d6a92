// Package extract holds the stateless text extractors shared by every notification parser.
// Nothing in here keeps mutable state; all tables are package-level constants or
// regexes compiled once at init.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// amountToken is a digit run that may carry commas and any number of decimals.
// Grouping and rounding are checked in parseAmountToken.
const amountToken = `(\d(?:[\d,]*\d)?(?:\.\d+)?)`

var (
	// Currency-marked amounts: "¥28.50", "RMB 100", "1,234.56元". The 元 form
	// needs a left boundary so "28.505元" is never read as "505元".
	markedAmountPattern = regexp.MustCompile(
		`(?:[¥￥]|RMB|CNY|人民币)\s*` + amountToken + `|(?:^|[^\d.,])` + amountToken + `\s*元`)
	// Fallback for unmarked decimals such as "付款28.50成功".
	decimalAmountPattern = regexp.MustCompile(`(?:^|[^\d.,])(\d(?:[\d,]*\d)?\.\d+)(?:[^\d.]|$)`)
	groupedIntPattern    = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
)

// balanceKeywords mark an amount as a balance or limit rather than the
// transaction itself.
var balanceKeywords = []string{"余额", "额度", "剩余"}

// maxAmountCents bounds parsed amounts well below int64 overflow.
const maxAmountCents = int64(1) << 53

// Fold maps full-width digits, letters and punctuation to their narrow forms
// so "￥１２．５０" reads like "¥12.50". CJK brackets have no narrow form and survive.
func Fold(text string) string {
	return width.Narrow.String(text)
}

// ExtractAmount finds the transaction amount in text and returns it in cents,
// rounded to the nearest cent. Currency-marked tokens win over bare decimals,
// and a marked token introduced by a balance keyword ("余额¥5,000.00") only
// counts when nothing else is marked. Malformed tokens such as "¥1,2345" are
// ignored. It reports false when no usable amount is present.
func ExtractAmount(text string) (int64, bool) {
	text = Fold(text)

	var (
		balance    int64
		hasBalance bool
		prevEnd    int
	)
	for _, m := range markedAmountPattern.FindAllStringSubmatchIndex(text, -1) {
		// Groups 1 and 2 are the prefixed and 元-suffixed forms.
		tokStart, tokEnd := m[2], m[3]
		if tokStart < 0 {
			tokStart, tokEnd = m[4], m[5]
		}
		lead := lastClause(text[prevEnd:tokStart])
		prevEnd = m[1]

		cents, ok := parseAmountToken(text[tokStart:tokEnd])
		if !ok {
			continue
		}
		if !isBalanceLead(lead) {
			return cents, true
		}
		if !hasBalance {
			balance, hasBalance = cents, true
		}
	}
	if hasBalance {
		return balance, true
	}

	if m := decimalAmountPattern.FindStringSubmatch(text); m != nil {
		return parseAmountToken(m[1])
	}

	return 0, false
}

// HasAmount reports whether text contains a parseable amount.
func HasAmount(text string) bool {
	_, ok := ExtractAmount(text)
	return ok
}

// lastClause returns the words directly in front of an amount token.
func lastClause(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// isBalanceLead reports whether the words before an amount name a balance.
// 余额宝 is a payment method, not a balance.
func isBalanceLead(lead string) bool {
	return containsAny(strings.ReplaceAll(lead, "余额宝", ""), balanceKeywords)
}

func parseAmountToken(token string) (int64, bool) {
	intPart, fracPart, _ := strings.Cut(token, ".")
	if strings.Contains(intPart, ",") {
		if !groupedIntPattern.MatchString(intPart) {
			return 0, false
		}
		intPart = strings.ReplaceAll(intPart, ",", "")
	}
	return toCents(intPart, fracPart)
}

// toCents converts an integer part and a decimal fraction into minor units
// without float arithmetic, rounding half up on the third decimal.
func toCents(intPart, fracPart string) (int64, bool) {
	units, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, false
	}

	var frac int64
	if fracPart != "" {
		frac, err = strconv.ParseInt((fracPart + "0")[:2], 10, 64)
		if err != nil {
			return 0, false
		}
		if len(fracPart) > 2 && fracPart[2] >= '5' {
			frac++
		}
	}

	if units > (maxAmountCents-frac)/100 {
		return 0, false
	}
	return units*100 + frac, true
}
