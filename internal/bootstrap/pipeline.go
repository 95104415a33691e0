// Package bootstrap assembles the scan pipeline from configuration for the
// server and the CLI.
package bootstrap

import (
	"log"
	"time"

	"threatlens/internal/adapters/virustotal"
	"threatlens/internal/config"
	"threatlens/internal/report"
	scansvc "threatlens/internal/services/scanner"
	"threatlens/internal/signals"
)

// Pipeline builds every configured producer in evaluation order. VirusTotal
// is only added when an API key is set.
func Pipeline(cfg config.Config) (*scansvc.Pipeline, error) {
	rules := signals.DefaultRules()
	if cfg.RulesFile != "" {
		loaded, err := signals.LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}
	patterns, err := signals.NewPatternMatcher(rules)
	if err != nil {
		return nil, err
	}

	seed := cfg.SimSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	producers := []signals.Producer{
		patterns,
		signals.NewAlertSimulator(signals.SourceFor(seed, "network_ids")),
		signals.NewHostSimulator(signals.SourceFor(seed, "host_ids")),
		signals.NewMLScorer(),
		signals.NewURLHeuristics(),
	}
	if cfg.VirusTotalAPIKey != "" {
		vt := virustotal.NewClient(cfg.VirusTotalAPIKey)
		if cfg.VirusTotalBaseURL != "" {
			vt.BaseURL = cfg.VirusTotalBaseURL
		}
		vt.PollInterval = cfg.VTPollInterval
		vt.MaxAttempts = cfg.VTMaxAttempts
		producers = append(producers, virustotal.NewProducer(vt))
	}

	p := scansvc.NewPipeline(report.NewFormatter(), producers...)
	log.Printf("pipeline: producers %v, %d rules", p.Producers(), len(rules))
	return p, nil
}
