package backtest

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Sampler genera los drifts del backtest. Inyectable para tests deterministas.
type Sampler interface {
	Normal(mean, std float64) float64
}

// RandSampler es el Sampler por defecto sobre math/rand/v2. Seguro para uso concurrente.
type RandSampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandSampler crea un sampler con seed fija. seed 0 usa el reloj.
func NewRandSampler(seed uint64) *RandSampler {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &RandSampler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Normal devuelve un draw de N(mean, std).
func (s *RandSampler) Normal(mean, std float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return mean + std*s.rng.NormFloat64()
}

// FixedSampler devuelve siempre el mismo drift.
type FixedSampler float64

// Normal ignora la distribución.
func (f FixedSampler) Normal(_, _ float64) float64 { return float64(f) }
