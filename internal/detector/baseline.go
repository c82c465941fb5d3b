package detector

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/polywatch/internal/domain"
	"github.com/alejandrodnm/polywatch/internal/ports"
	"gonum.org/v1/gonum/stat"
)

const (
	// minBaselineWallets es la población mínima para reemplazar los defaults.
	minBaselineWallets = 10
	// minBaselineStd evita divisiones casi nulas en los z-scores.
	minBaselineStd = 1.0
)

// Baseline son las estadísticas de población usadas para normalizar un wallet.
type Baseline struct {
	AgeMean    float64
	AgeStd     float64
	VolumeMean float64
	VolumeStd  float64
	TradesMean float64
	TradesStd  float64
	Wallets    int // población usada; 0 = defaults
}

// DefaultBaseline devuelve el baseline usado hasta tener suficientes wallets.
func DefaultBaseline() Baseline {
	return Baseline{
		AgeMean:    30,
		AgeStd:     15,
		VolumeMean: 1000,
		VolumeStd:  500,
		TradesMean: 10,
		TradesStd:  5,
	}
}

// ComputeBaseline calcula media y desviación muestral por métrica.
// Devuelve false si la población no alcanza minBaselineWallets.
func ComputeBaseline(rows []domain.WalletRow, now time.Time) (Baseline, bool) {
	if len(rows) < minBaselineWallets {
		return Baseline{}, false
	}

	ages := make([]float64, len(rows))
	volumes := make([]float64, len(rows))
	trades := make([]float64, len(rows))
	for i, r := range rows {
		ages[i] = r.AgeDays(now)
		volumes[i] = r.TotalVolume
		trades[i] = float64(r.TotalTrades)
	}

	return Baseline{
		AgeMean:    stat.Mean(ages, nil),
		AgeStd:     math.Max(stat.StdDev(ages, nil), minBaselineStd),
		VolumeMean: stat.Mean(volumes, nil),
		VolumeStd:  math.Max(stat.StdDev(volumes, nil), minBaselineStd),
		TradesMean: stat.Mean(trades, nil),
		TradesStd:  math.Max(stat.StdDev(trades, nil), minBaselineStd),
		Wallets:    len(rows),
	}, true
}

// BaselineTracker es el único dueño del baseline de proceso.
// Los lectores obtienen un snapshot inmutable; Refresh publica uno nuevo con un swap atómico.
type BaselineTracker struct {
	current atomic.Pointer[Baseline]
	now     func() time.Time
}

// NewBaselineTracker crea un tracker con el baseline por defecto.
func NewBaselineTracker() *BaselineTracker {
	t := &BaselineTracker{now: time.Now}
	b := DefaultBaseline()
	t.current.Store(&b)
	return t
}

// Snapshot devuelve el baseline vigente.
func (t *BaselineTracker) Snapshot() Baseline {
	return *t.current.Load()
}

// Refresh recalcula el baseline desde la población del store.
// Un error de la fuente o una población insuficiente conservan el baseline vigente.
func (t *BaselineTracker) Refresh(ctx context.Context, src ports.PopulationSource) Baseline {
	rows, err := src.BaselinePopulation(ctx)
	if err != nil {
		slog.Warn("baseline refresh failed, keeping current", "err", err)
		return t.Snapshot()
	}

	b, ok := ComputeBaseline(rows, t.now())
	if !ok {
		slog.Info("not enough wallet data for baseline, keeping current", "wallets", len(rows))
		return t.Snapshot()
	}

	t.current.Store(&b)
	slog.Info("baseline refreshed",
		"wallets", b.Wallets,
		"age", fmt.Sprintf("%.1f±%.1f", b.AgeMean, b.AgeStd),
		"volume", fmt.Sprintf("%.0f±%.0f", b.VolumeMean, b.VolumeStd),
	)
	return b
}
