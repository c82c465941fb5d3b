package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/alejandrodnm/polywatch/internal/ports"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

var (
	_ ports.MarketProvider = (*Client)(nil)
	_ ports.TradeProvider  = (*Client)(nil)
	_ ports.TradeHistory   = (*Client)(nil)
	_ ports.BookProvider   = (*Client)(nil)
)

const (
	defaultCLOBBase  = "https://clob.polymarket.com"
	defaultGammaBase = "https://gamma-api.polymarket.com"
	defaultDataBase  = "https://data-api.polymarket.com"

	// Rate limits al 60% de los límites reales documentados.
	// CLOB /book: 1500/10s → 900/10s → 90/s
	booksRatePerSec = 90
	// Gamma /events: 500/10s → 300/10s → 30/s
	gammaRatePerSec = 30
	// Data API /trades: 200/10s → 120/10s → 12/s
	dataRatePerSec = 12

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond

	defaultBreakerFailures = 5
	defaultBreakerTimeout  = 30 * time.Second
)

// errClientStatus marca respuestas 4xx: son culpa de la request, no abren el breaker.
var errClientStatus = errors.New("client error")

// Config son los endpoints y el breaker del cliente. Los campos vacíos usan producción.
type Config struct {
	CLOBBase        string
	GammaBase       string
	DataBase        string
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	// OnBreakerChange se llama en cada transición del breaker (métricas).
	OnBreakerChange func(name string, from, to gobreaker.State)
}

// Client es el HTTP client de Polymarket con rate limiting, retries y circuit breaker.
type Client struct {
	http         *http.Client
	clobBase     string
	gammaBase    string
	dataBase     string
	booksLimiter *rate.Limiter
	gammaLimiter *rate.Limiter
	dataLimiter  *rate.Limiter
	breaker      *gobreaker.CircuitBreaker
	retryWait    time.Duration
}

// NewClient crea un Client.
func NewClient(cfg Config) *Client {
	if cfg.CLOBBase == "" {
		cfg.CLOBBase = defaultCLOBBase
	}
	if cfg.GammaBase == "" {
		cfg.GammaBase = defaultGammaBase
	}
	if cfg.DataBase == "" {
		cfg.DataBase = defaultDataBase
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = defaultBreakerFailures
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = defaultBreakerTimeout
	}

	failures := cfg.BreakerFailures
	onChange := cfg.OnBreakerChange
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "polymarket",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errClientStatus) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			if onChange != nil {
				onChange(name, from, to)
			}
		},
	})

	return &Client{
		http:         &http.Client{Timeout: 10 * time.Second},
		clobBase:     cfg.CLOBBase,
		gammaBase:    cfg.GammaBase,
		dataBase:     cfg.DataBase,
		booksLimiter: rate.NewLimiter(booksRatePerSec, 10),
		gammaLimiter: rate.NewLimiter(gammaRatePerSec, 5),
		dataLimiter:  rate.NewLimiter(dataRatePerSec, 5),
		breaker:      breaker,
		retryWait:    baseRetryWait,
	}
}

// BreakerState devuelve el estado actual del breaker.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// get hace un GET con breaker, rate limiting y retries.
// Con el breaker abierto falla inmediatamente con gobreaker.ErrOpenState.
func (c *Client) get(ctx context.Context, limiter *rate.Limiter, url string, out any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.doWithRetry(ctx, limiter, func() (*http.Response, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Accept", "application/json")
			return c.http.Do(req)
		}, out)
	})
	return err
}

// doWithRetry ejecuta la función con backoff exponencial.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by API", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("%w %d: %s", errClientStatus, resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.retryWait
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
