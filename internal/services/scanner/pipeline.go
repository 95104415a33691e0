package scanner

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"threatlens/internal/domain"
	"threatlens/internal/report"
	"threatlens/internal/risk"
	"threatlens/internal/signals"
)

// Pipeline runs every producer for a subject, waits for all of them, then
// aggregates and formats.
type Pipeline struct {
	producers []signals.Producer
	formatter *report.Formatter
}

func NewPipeline(formatter *report.Formatter, producers ...signals.Producer) *Pipeline {
	return &Pipeline{producers: producers, formatter: formatter}
}

// Producers returns the names in evaluation order.
func (p *Pipeline) Producers() []string {
	names := make([]string, len(p.producers))
	for i, pr := range p.producers {
		names[i] = pr.Name()
	}
	return names
}

func (p *Pipeline) Run(ctx context.Context, s signals.Subject) (domain.ScanResult, error) {
	sigs := make([]signals.Signal, len(p.producers))

	g, gctx := errgroup.WithContext(ctx)
	for i, pr := range p.producers {
		i, pr := i, pr // per-iteration copies; module targets go1.21 loop semantics
		g.Go(func() error {
			sig, err := pr.Produce(gctx, s)
			if err != nil {
				return fmt.Errorf("%s: %w", pr.Name(), err)
			}
			if sig.Producer == "" {
				sig.Producer = pr.Name()
			}
			sigs[i] = sig
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.ScanResult{}, err
	}

	sources, details := report.Totals(sigs)
	assessment := risk.Aggregate(risk.Input{
		Factors: MergeFactors(sigs),
		Sources: sources,
		Details: details,
	})
	return p.formatter.Format(s, sigs, assessment), nil
}

// MergeFactors ORs the flags contributed by each signal. Suspicious ends up
// true when network alerts or host findings were present.
func MergeFactors(sigs []signals.Signal) domain.RiskFactors {
	var f domain.RiskFactors
	for _, s := range sigs {
		f.Malicious = f.Malicious || s.Factors.Malicious
		f.Suspicious = f.Suspicious || s.Factors.Suspicious
		f.HasEncryption = f.HasEncryption || s.Factors.HasEncryption
		f.HasObfuscation = f.HasObfuscation || s.Factors.HasObfuscation
		f.HighRiskPermissions = f.HighRiskPermissions || s.Factors.HighRiskPermissions
	}
	return f
}
