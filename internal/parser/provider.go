package parser

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Veraticus/autoledger/internal/extract"
	"github.com/Veraticus/autoledger/internal/fingerprint"
	"github.com/Veraticus/autoledger/internal/model"
)

// Bonuses are the provider-specific confidence terms added on top of the
// shared formula in the full path.
type Bonuses struct {
	// Trust is granted for notifications posted by the provider's own app.
	Trust float64
	// DirectionAmount is added when both direction and amount resolved.
	DirectionAmount float64
	// KeywordRatioWeight scales the share of provider keywords found.
	KeywordRatioWeight float64
	// HighRatioThreshold and HighRatioBonus reward dense keyword matches.
	HighRatioThreshold float64
	HighRatioBonus     float64
	// Complete is added when amount, merchant and direction all resolved.
	Complete float64
}

// Total sums the bonus terms that apply to the given signals.
func (b Bonuses) Total(s extract.Signals, keywordRatio float64) float64 {
	total := b.Trust + keywordRatio*b.KeywordRatioWeight
	if s.HasAmount && s.HasDirection {
		total += b.DirectionAmount
	}
	if keywordRatio > b.HighRatioThreshold {
		total += b.HighRatioBonus
	}
	if s.HasAmount && s.HasMerchant && s.HasDirection {
		total += b.Complete
	}
	return total
}

// Profile is everything that differs between providers. The extraction
// pipeline itself is shared.
type Profile struct {
	Name       string
	SourceType model.SourceType
	Packages   []string
	Version    int

	// Exclusions mark logistics, chat, marketing and system notices.
	Exclusions []string
	// LogisticsHints exclude only when no amount is present ("已到达", "已签收").
	LogisticsHints []string

	MerchantPatterns []*regexp.Regexp
	// QuickRules drive the fast path; DirectionRules the full path.
	QuickRules     extract.DirectionRules
	DirectionRules extract.DirectionRules
	MethodRules    []extract.MethodRule
	TagRules       []extract.TagRule

	Bonuses Bonuses
}

// ProviderParser runs the two-phase extraction for one provider profile.
// It holds no mutable state and is safe for concurrent use.
type ProviderParser struct {
	packages   map[string]struct{}
	profile    Profile
	thresholds Thresholds
}

// NewProviderParser builds a parser from a profile.
func NewProviderParser(profile Profile, thresholds Thresholds) *ProviderParser {
	packages := make(map[string]struct{}, len(profile.Packages))
	for _, pkg := range profile.Packages {
		packages[pkg] = struct{}{}
	}
	return &ProviderParser{
		profile:    profile,
		thresholds: thresholds,
		packages:   packages,
	}
}

// SupportedPackages implements Parser.
func (p *ProviderParser) SupportedPackages() []string {
	out := make([]string, len(p.profile.Packages))
	copy(out, p.profile.Packages)
	return out
}

// Name implements Parser.
func (p *ProviderParser) Name() string { return p.profile.Name }

// Version implements Parser.
func (p *ProviderParser) Version() int { return p.profile.Version }

// SourceType returns the provider this parser reports.
func (p *ProviderParser) SourceType() model.SourceType { return p.profile.SourceType }

// CanParse accepts events from a supported package that carry some content.
func (p *ProviderParser) CanParse(event model.RawNotificationEvent) bool {
	if _, ok := p.packages[event.PackageName]; !ok {
		return false
	}
	return event.Content() != ""
}

// Parse implements Parser.
func (p *ProviderParser) Parse(event model.RawNotificationEvent) (*model.PaymentNotification, error) {
	if !utf8.ValidString(event.TitleOrEmpty()) || !utf8.ValidString(event.TextOrEmpty()) {
		return nil, ErrInvalidEncoding
	}

	content := extract.Fold(event.Content())
	amount, hasAmount := extract.ExtractAmount(content)
	hasAmount = hasAmount && amount > 0

	if p.isExcluded(content, hasAmount) {
		return nil, ErrNotTransactional
	}

	// Direction plus amount is a near-certain signal; skip scoring.
	if p.thresholds.FastPathConfidence >= p.thresholds.MinConfidence && hasAmount {
		if dir := p.profile.QuickRules.Resolve(content); dir.IsKnown() {
			return p.build(event, content, dir, amount, p.thresholds.FastPathConfidence), nil
		}
	}

	if !hasAmount {
		return nil, ErrNoAmount
	}

	_, hasMerchant := extract.ExtractMerchant(content, p.profile.MerchantPatterns)
	direction := extract.InferDirection(content, p.profile.DirectionRules, extract.BaseDirectionRules)
	_, hasMethod := extract.InferPaymentMethod(content, p.profile.MethodRules)

	signals := extract.Signals{
		HasAmount:    true,
		HasMerchant:  hasMerchant,
		HasDirection: direction.IsKnown(),
		HasMethod:    hasMethod,
	}
	ratio := extract.KeywordMatchRatio(content, p.profile.DirectionRules)
	confidence := extract.Score(signals, p.profile.Bonuses.Total(signals, ratio))

	if confidence < p.thresholds.MinConfidence {
		return nil, fmt.Errorf("%w (%.2f < %.2f)", ErrLowConfidence, confidence, p.thresholds.MinConfidence)
	}

	return p.build(event, content, direction, amount, confidence), nil
}

func (p *ProviderParser) isExcluded(content string, hasAmount bool) bool {
	lower := strings.ToLower(content)
	if extract.ContainsAny(lower, p.profile.Exclusions) {
		return true
	}
	return !hasAmount && extract.ContainsAny(lower, p.profile.LogisticsHints)
}

func (p *ProviderParser) build(
	event model.RawNotificationEvent,
	content string,
	direction model.Direction,
	amount int64,
	confidence float64,
) *model.PaymentNotification {
	rawMerchant, _ := extract.ExtractMerchant(content, p.profile.MerchantPatterns)
	method, _ := extract.InferPaymentMethod(content, p.profile.MethodRules)

	n := &model.PaymentNotification{
		SourceApp:          event.PackageName,
		SourceType:         p.profile.SourceType,
		Direction:          direction,
		AmountCents:        amount,
		Currency:           model.DefaultCurrency,
		RawMerchant:        rawMerchant,
		NormalizedMerchant: extract.NormalizeMerchant(rawMerchant),
		PaymentMethod:      method,
		PostedTime:         event.PostTime,
		NotificationKey:    event.KeyOrEmpty(),
		ParserVersion:      p.profile.Version,
		Confidence:         confidence,
		Fingerprint:        fingerprint.Generate(event),
		Tags:               extract.ExtractTags(content, p.profile.TagRules),
		OriginalTitle:      event.TitleOrEmpty(),
		OriginalText:       event.TextOrEmpty(),
	}
	if confidence < p.thresholds.RetainRawBelow {
		n.RawText = event.Content()
	}
	return n
}
