// Package report shapes aggregator output and raw producer signals into the
// ScanResult that gets persisted and displayed.
package report

import (
	"time"

	"github.com/google/uuid"

	"threatlens/internal/domain"
	"threatlens/internal/risk"
	"threatlens/internal/signals"
)

// Formatter assigns identity and time. Both are injectable for tests.
type Formatter struct {
	NewID func() string
	Now   func() time.Time
}

func NewFormatter() *Formatter {
	return &Formatter{
		NewID: func() string { return uuid.New().String() },
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

// Format builds the ScanResult. Every signal lands in Metadata under its
// producer name, even when it triggered nothing, and details keep producer
// order.
func (f *Formatter) Format(s signals.Subject, sigs []signals.Signal, a risk.Assessment) domain.ScanResult {
	res := domain.ScanResult{
		ID:          f.NewID(),
		SubjectType: s.Type,
		Target:      s.Target,
		Timestamp:   f.Now(),
		Verdict:     a.Verdict,
		RiskScore:   a.Score,
		Warning:     a.HasHighRiskFactors,
		Stats:       a.Stats,
		Metadata:    make(map[string]any, len(sigs)+2),
		Details:     []domain.DetectionDetail{},
	}

	switch {
	case s.URL != nil:
		res.Metadata["url"] = *s.URL
	case s.File != nil:
		res.Metadata["file"] = *s.File
	}
	res.Metadata["risk_factors"] = a.Factors

	for _, sig := range sigs {
		res.Metadata[sig.Producer] = map[string]any{
			"consulted": sig.Consulted,
			"triggered": len(sig.Details),
			"output":    sig.Raw,
		}
		res.Details = append(res.Details, sig.Details...)
		if ml, ok := sig.Raw.(domain.MLAnalysis); ok {
			res.ML = &ml
		}
	}
	return res
}

// Totals sums consulted sources and emitted details across signals.
func Totals(sigs []signals.Signal) (sources, details int) {
	for _, s := range sigs {
		sources += s.Consulted
		details += len(s.Details)
	}
	return sources, details
}
