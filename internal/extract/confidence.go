package extract

// Field weights of the shared confidence formula.
const (
	WeightAmount    = 0.4
	WeightMerchant  = 0.3
	WeightDirection = 0.2
	WeightMethod    = 0.1
)

// Signals records which fields an extraction resolved.
type Signals struct {
	HasAmount    bool
	HasMerchant  bool
	HasDirection bool
	HasMethod    bool
}

// BaseScore is the weighted sum of resolved fields, capped at 1.
func BaseScore(s Signals) float64 {
	score := 0.0
	if s.HasAmount {
		score += WeightAmount
	}
	if s.HasMerchant {
		score += WeightMerchant
	}
	if s.HasDirection {
		score += WeightDirection
	}
	if s.HasMethod {
		score += WeightMethod
	}
	return Clamp(score)
}

// Score adds a provider bonus to the base score and clamps the result to [0,1].
func Score(s Signals, bonus float64) float64 {
	return Clamp(BaseScore(s) + bonus)
}

// Clamp limits v to [0,1].
func Clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
