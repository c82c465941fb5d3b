package tracker

// concurrent.go: worker pool para procesar mercados en paralelo.
// Los rate limiters del cliente HTTP acotan el ritmo real de peticiones.

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/alejandrodnm/polywatch/internal/detector"
	"github.com/alejandrodnm/polywatch/internal/domain"
)

// processMarketsConcurrent procesa todos los mercados con un pool de workers.
// Si workers <= 0 usa runtime.NumCPU() × 2.
func processMarketsConcurrent(
	ctx context.Context,
	t *Tracker,
	markets []domain.Market,
	baseline detector.Baseline,
	workers int,
) []marketResult {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	workCh := make(chan domain.Market, len(markets))
	resultCh := make(chan marketResult, len(markets))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range workCh {
				if ctx.Err() != nil {
					continue
				}
				resultCh <- t.processMarket(ctx, m, baseline)
			}
		}()
	}

	for _, m := range markets {
		workCh <- m
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]marketResult, 0, len(markets))
	for r := range resultCh {
		results = append(results, r)
	}

	slog.Debug("concurrent processing complete",
		"markets", len(markets),
		"processed", len(results),
		"workers", workers,
	)
	return results
}
