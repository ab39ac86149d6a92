package audit

import "strings"

const maskRune = '*'

// MaskText redacts the middle of a notification string, keeping more context
// the longer it is: up to 2 runes are fully hidden, up to 6 keep one rune at
// each end, up to 12 keep two, anything longer keeps three.
func MaskText(s string) string {
	runes := []rune(s)
	n := len(runes)
	switch {
	case n == 0:
		return ""
	case n <= 2:
		return strings.Repeat(string(maskRune), n)
	case n <= 6:
		return keepEnds(runes, 1)
	case n <= 12:
		return keepEnds(runes, 2)
	default:
		return keepEnds(runes, 3)
	}
}

// MaskMerchant redacts a merchant name. Short names keep their first and
// last character; long ones follow MaskText.
func MaskMerchant(s string) string {
	runes := []rune(s)
	n := len(runes)
	switch {
	case n == 0:
		return ""
	case n == 1:
		return string(maskRune)
	case n == 2:
		return string(runes[0]) + string(maskRune)
	case n <= 4:
		return keepEnds(runes, 1)
	default:
		return MaskText(s)
	}
}

func keepEnds(runes []rune, keep int) string {
	out := make([]rune, len(runes))
	for i, r := range runes {
		if i < keep || i >= len(runes)-keep {
			out[i] = r
		} else {
			out[i] = maskRune
		}
	}
	return string(out)
}
