// Package signals implements the evidence producers consumed by the risk
// aggregator. Every producer sits behind Producer so the simulated ones can be
// swapped for real detectors without touching aggregation.
package signals

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sync"

	"threatlens/internal/domain"
	"threatlens/internal/metadata"
)

// Subject is the scan input every producer reads. Producers must not mutate it.
type Subject struct {
	Type    domain.SubjectType
	Target  string
	Content []byte
	URL     *metadata.URLInfo
	File    *metadata.FileInfo
}

// Signal is one producer's output for one subject.
type Signal struct {
	Producer string
	// Consulted counts the rules, engines or checks evaluated.
	Consulted int
	Details   []domain.DetectionDetail
	// Factors holds only the flags this producer contributes.
	Factors domain.RiskFactors
	Raw     any
}

// Producer emits one category of evidence.
type Producer interface {
	Name() string
	Produce(ctx context.Context, s Subject) (Signal, error)
}

// Entropy is the randomness the simulated producers draw from. *rand.Rand
// satisfies it.
type Entropy interface {
	Float64() float64
}

// EntropySource hands out an independent Entropy per Produce call so that
// concurrent scans never share a generator.
type EntropySource func() Entropy

// SeededSource seeds each generator it hands out from a master generator.
// Successive scans draw different values; two sources built from the same
// seed hand out the same sequence of generators.
func SeededSource(seed int64) EntropySource {
	var mu sync.Mutex
	master := rand.New(rand.NewSource(seed))
	return func() Entropy {
		mu.Lock()
		defer mu.Unlock()
		return rand.New(rand.NewSource(master.Int63()))
	}
}

// SourceFor derives a per-producer source from a shared seed so producers
// configured with one seed never read the same stream.
func SourceFor(seed int64, producer string) EntropySource {
	h := fnv.New64a()
	h.Write([]byte(producer))
	return SeededSource(seed ^ int64(h.Sum64()))
}
