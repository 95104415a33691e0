// Package risk combines producer flags into a 0-100 risk score, a verdict and
// the detection statistics shown with it. Everything here is pure.
package risk

import "threatlens/internal/domain"

// Factor weights. The sum is capped at MaxScore.
const (
	WeightMalicious     = 40
	WeightSuspicious    = 20
	WeightEncryption    = 15
	WeightObfuscation   = 15
	WeightHighRiskPerms = 10

	MaxScore = 100
)

// Classification thresholds on the score.
const (
	MaliciousThreshold  = 70
	SuspiciousThreshold = 40
)

// Input is everything the aggregator needs for one scan.
type Input struct {
	Factors domain.RiskFactors
	// Sources is the total number of rules, engines and checks consulted.
	Sources int
	// Details is the number of detection details emitted.
	Details int
}

// Assessment is the aggregator output.
type Assessment struct {
	Score              int                   `json:"score"`
	Verdict            domain.Verdict        `json:"verdict"`
	HasHighRiskFactors bool                  `json:"has_high_risk_factors"`
	Stats              domain.DetectionStats `json:"stats"`
	Factors            domain.RiskFactors    `json:"factors"`
}

// Score returns the capped weighted sum of the factors.
func Score(f domain.RiskFactors) int {
	score := 0
	if f.Malicious {
		score += WeightMalicious
	}
	if f.Suspicious {
		score += WeightSuspicious
	}
	if f.HasEncryption {
		score += WeightEncryption
	}
	if f.HasObfuscation {
		score += WeightObfuscation
	}
	if f.HighRiskPermissions {
		score += WeightHighRiskPerms
	}
	if score > MaxScore {
		score = MaxScore
	}
	return score
}

func Classify(score int) domain.Verdict {
	switch {
	case score >= MaliciousThreshold:
		return domain.VerdictMalicious
	case score >= SuspiciousThreshold:
		return domain.VerdictSuspicious
	default:
		return domain.VerdictClean
	}
}

// DeriveStats splits the consulted sources according to the verdict rather
// than tallying what each source reported. The split is formulaic and is kept
// that way until product decides otherwise.
func DeriveStats(v domain.Verdict, sources, details int) domain.DetectionStats {
	if sources < 0 {
		sources = 0
	}
	var st domain.DetectionStats
	switch v {
	case domain.VerdictMalicious:
		st.Malicious = (7*sources + 9) / 10 // ceil(0.7n)
		st.Suspicious = 3 * sources / 10   // floor(0.3n)
	case domain.VerdictSuspicious:
		st.Suspicious = (sources + 1) / 2 // ceil(0.5n)
	default:
		st.Harmless = sources
	}
	st.Undetected = sources - details
	if st.Undetected < 0 {
		st.Undetected = 0
	}
	return st
}

// Aggregate scores, classifies and derives stats. It cannot fail and holds no
// state between calls.
func Aggregate(in Input) Assessment {
	score := Score(in.Factors)
	verdict := Classify(score)
	return Assessment{
		Score:              score,
		Verdict:            verdict,
		HasHighRiskFactors: score >= MaliciousThreshold,
		Stats:              DeriveStats(verdict, in.Sources, in.Details),
		Factors:            in.Factors,
	}
}
