package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/wateryu2030/newhigh-zh/internal/config"
	"github.com/wateryu2030/newhigh-zh/internal/domain"
	"github.com/wateryu2030/newhigh-zh/internal/util"
)

// Compile-time interface check.
var _ Provider = (*Client)(nil)

// Client wraps another Provider with pacing and retry. Pacing is
// provider-wide: the minimum delay runs from the end of one upstream call
// to the start of the next, whichever goroutine makes it. Retry repeats
// failed calls with exponential backoff while Retryable says the failure
// is worth repeating.
type Client struct {
	inner Provider
	pace  *util.Pacer
	retry util.RetryPolicy
	log   *slog.Logger
}

// NewClient builds the paced client from the provider section of the config.
func NewClient(inner Provider, cfg config.Provider, log *slog.Logger) *Client {
	retry := util.DefaultRetryPolicy()
	if cfg.RetryMaxAttempts > 0 {
		retry.MaxAttempts = cfg.RetryMaxAttempts
	}
	if cfg.RetryBaseMS > 0 {
		retry.BaseDelay = time.Duration(cfg.RetryBaseMS) * time.Millisecond
	}
	if cfg.RetryMaxMS > 0 {
		retry.MaxDelay = time.Duration(cfg.RetryMaxMS) * time.Millisecond
	}
	return &Client{
		inner: inner,
		pace:  util.NewPacer(time.Duration(cfg.RateLimitMS) * time.Millisecond),
		retry: retry,
		log:   log.With("component", "provider"),
	}
}

// call runs one upstream operation under the pacer and retry policy.
func call[T any](ctx context.Context, c *Client, op string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	attempt := 0
	err := c.retry.Do(ctx, Retryable, func() error {
		if attempt > 0 {
			c.log.Warn("retrying upstream call", "op", op, "attempt", attempt)
		}
		attempt++
		if err := c.pace.Wait(ctx); err != nil {
			return err
		}
		defer c.pace.Done()
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

func (c *Client) Instruments(ctx context.Context) ([]domain.Instrument, error) {
	return call(ctx, c, "instruments", c.inner.Instruments)
}

func (c *Client) DailyBars(ctx context.Context, code, start, end string) ([]domain.DailyBar, error) {
	return call(ctx, c, "daily_bars", func(ctx context.Context) ([]domain.DailyBar, error) {
		return c.inner.DailyBars(ctx, code, start, end)
	})
}

func (c *Client) Financials(ctx context.Context, code, start, end string) ([]domain.FinancialSnapshot, error) {
	return call(ctx, c, "financials", func(ctx context.Context) ([]domain.FinancialSnapshot, error) {
		return c.inner.Financials(ctx, code, start, end)
	})
}

func (c *Client) MoneyFlows(ctx context.Context, code, start, end string) ([]domain.MoneyFlow, error) {
	return call(ctx, c, "money_flows", func(ctx context.Context) ([]domain.MoneyFlow, error) {
		return c.inner.MoneyFlows(ctx, code, start, end)
	})
}

func (c *Client) ConceptIndustry(ctx context.Context) ([]domain.ConceptIndustry, error) {
	return call(ctx, c, "concept_industry", c.inner.ConceptIndustry)
}

func (c *Client) IndexConstituents(ctx context.Context, indexKey string) ([]domain.IndexConstituent, error) {
	return call(ctx, c, "index_constituents", func(ctx context.Context) ([]domain.IndexConstituent, error) {
		return c.inner.IndexConstituents(ctx, indexKey)
	})
}

func (c *Client) IndexDailyBars(ctx context.Context, indexCode, start, end string) ([]domain.IndexDailyBar, error) {
	return call(ctx, c, "index_daily", func(ctx context.Context) ([]domain.IndexDailyBar, error) {
		return c.inner.IndexDailyBars(ctx, indexCode, start, end)
	})
}
