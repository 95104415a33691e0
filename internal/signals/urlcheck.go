package signals

import (
	"context"

	"threatlens/internal/domain"
)

// URLHeuristics turns the URL metadata flags into evidence entries. It adds
// no aggregator factor.
type URLHeuristics struct{}

func NewURLHeuristics() *URLHeuristics { return &URLHeuristics{} }

func (u *URLHeuristics) Name() string { return "url_heuristics" }

func (u *URLHeuristics) Produce(ctx context.Context, s Subject) (Signal, error) {
	sig := Signal{Producer: u.Name()}
	if s.URL == nil {
		return sig, nil
	}
	info := *s.URL
	sig.Consulted = 3
	sig.Raw = info
	add := func(result string) {
		sig.Details = append(sig.Details, domain.DetectionDetail{
			Source:       "URL Analysis",
			Category:     "url",
			Result:       result,
			Method:       "url-heuristics",
			EngineUpdate: RulesVersion,
		})
	}
	if info.NotHTTPS {
		add("Connection is not encrypted (no HTTPS)")
	}
	if info.SuspiciousPath {
		add("Path points at an executable or server script")
	}
	if info.SuspiciousParams {
		add("Query contains redirect parameters")
	}
	return sig, nil
}
