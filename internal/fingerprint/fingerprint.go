// Package fingerprint derives stable deduplication keys for notification events.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Veraticus/autoledger/internal/model"
)

// separator keeps ("ab","c") and ("a","bc") apart.
const separator = "\x1f"

// Generate returns the dedup key for an event: package, post time and a
// content digest of title and text. Equal inputs always give equal keys.
func Generate(event model.RawNotificationEvent) string {
	return fmt.Sprintf("%s_%d_%s",
		event.PackageName,
		event.PostTime,
		digest(event.TitleOrEmpty()+separator+event.TextOrEmpty()))
}

// ContentHash hashes normalized title and text only. It ignores post time so
// re-deliveries of the same text a few seconds apart hash alike.
func ContentHash(title, text string) string {
	content := strings.ToLower(strings.TrimSpace(title + " " + text))
	return digest(content)
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
