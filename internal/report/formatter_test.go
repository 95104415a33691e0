package report

import (
	"testing"
	"time"

	"threatlens/internal/domain"
	"threatlens/internal/metadata"
	"threatlens/internal/risk"
	"threatlens/internal/signals"
)

func fixedFormatter() *Formatter {
	return &Formatter{
		NewID: func() string { return "result-1" },
		Now:   func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) },
	}
}

func TestFormat_KeepsEverySource(t *testing.T) {
	info, _ := metadata.ParseURL("http://example.com/")
	subject := signals.Subject{Type: domain.SubjectURL, Target: "http://example.com/", URL: &info}
	sigs := []signals.Signal{
		{Producer: "patterns", Consulted: 7, Raw: []signals.Match(nil)},
		{Producer: "network_ids", Consulted: 6, Details: []domain.DetectionDetail{{Source: "a"}, {Source: "b"}}},
		{Producer: "url_heuristics", Consulted: 3, Details: []domain.DetectionDetail{{Source: "c"}}},
		{Producer: "ml_analysis", Consulted: 1, Raw: domain.MLAnalysis{Score: 1, Status: "safe"}},
	}
	a := risk.Aggregate(risk.Input{Sources: 17, Details: 3})

	res := fixedFormatter().Format(subject, sigs, a)

	if res.ID != "result-1" || !res.Timestamp.Equal(time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("identity not assigned: %s %v", res.ID, res.Timestamp)
	}
	for _, name := range []string{"patterns", "network_ids", "url_heuristics", "ml_analysis", "url", "risk_factors"} {
		if _, ok := res.Metadata[name]; !ok {
			t.Errorf("metadata missing %q", name)
		}
	}
	if len(res.Details) != 3 || res.Details[0].Source != "a" || res.Details[2].Source != "c" {
		t.Errorf("details out of order: %+v", res.Details)
	}
	if res.ML == nil || res.ML.Status != "safe" {
		t.Errorf("ML = %+v", res.ML)
	}
	if res.Verdict != domain.VerdictClean || res.Stats.Harmless != 17 {
		t.Errorf("assessment not copied: %+v", res)
	}
}

func TestFormat_EmptyDetailsNotNil(t *testing.T) {
	res := fixedFormatter().Format(signals.Subject{Type: domain.SubjectFile}, nil, risk.Aggregate(risk.Input{}))
	if res.Details == nil {
		t.Error("Details should be an empty slice so it encodes as []")
	}
	if res.ML != nil {
		t.Error("ML should be nil when no scorer ran")
	}
}

func TestTotals(t *testing.T) {
	sources, details := Totals([]signals.Signal{
		{Consulted: 4, Details: make([]domain.DetectionDetail, 2)},
		{Consulted: 6},
	})
	if sources != 10 || details != 2 {
		t.Errorf("Totals() = %d, %d", sources, details)
	}
}
