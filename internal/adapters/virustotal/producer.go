package virustotal

import (
	"context"
	"fmt"
	"log"
	"sort"

	"threatlens/internal/domain"
	"threatlens/internal/signals"
)

// Producer exposes the client as a signal producer. Each malicious or
// suspicious engine verdict becomes a detection detail.
type Producer struct {
	client *Client
}

func NewProducer(c *Client) *Producer { return &Producer{client: c} }

func (p *Producer) Name() string { return "virustotal" }

func (p *Producer) Produce(ctx context.Context, s signals.Subject) (signals.Signal, error) {
	var (
		id  string
		err error
	)
	switch s.Type {
	case domain.SubjectURL:
		id, err = p.client.SubmitURL(ctx, s.Target)
	case domain.SubjectFile:
		id, err = p.client.SubmitFile(ctx, s.Target, s.Content)
	default:
		return signals.Signal{}, fmt.Errorf("unsupported subject type %q", s.Type)
	}
	if err != nil {
		return signals.Signal{}, err
	}
	log.Printf("virustotal: submitted %s as analysis %s", s.Target, id)

	a, err := p.client.Wait(ctx, id)
	if err != nil {
		return signals.Signal{}, err
	}
	return toSignal(a), nil
}

func toSignal(a Analysis) signals.Signal {
	sig := signals.Signal{
		Producer:  "virustotal",
		Consulted: a.Stats.Total(),
		Factors:   domain.RiskFactors{Malicious: a.Stats.Malicious > 0},
		Raw:       a,
	}
	engines := make([]string, 0, len(a.Results))
	for name := range a.Results {
		engines = append(engines, name)
	}
	sort.Strings(engines)
	for _, name := range engines {
		r := a.Results[name]
		if r.Category != "malicious" && r.Category != "suspicious" {
			continue
		}
		source := r.EngineName
		if source == "" {
			source = name
		}
		sig.Details = append(sig.Details, domain.DetectionDetail{
			Source:       source,
			Category:     r.Category,
			Result:       r.Result,
			Method:       r.Method,
			EngineUpdate: r.EngineUpdate,
		})
	}
	return sig
}
