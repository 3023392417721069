// Package marketdata fetches historical candles used to calibrate the
// cost model from observed liquidity and volatility.
package marketdata

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"
)

const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 500 * time.Millisecond
)

// Config selects the market to fetch and tunes the retry policy for
// exchange calls.
type Config struct {
	Exchange      string
	Market        string
	RetryAttempts int
	RetryDelay    time.Duration
}

// Client fetches spot candles for one market through ccxt.
type Client struct {
	logger        *zap.Logger
	exchange      *ccxt.Binance
	market        string
	retryAttempts int
	retryDelay    time.Duration

	marketsMu     sync.Mutex
	marketsLoaded bool
}

// NewClient builds a candle client for the configured exchange and
// market. Only binance spot is supported at the moment.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !strings.EqualFold(cfg.Exchange, "binance") {
		return nil, fmt.Errorf("unsupported exchange %q", cfg.Exchange)
	}
	if cfg.Market == "" {
		return nil, fmt.Errorf("market must be set")
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	ex := ccxt.NewBinance(map[string]interface{}{
		"enableRateLimit": true,
	})

	return &Client{
		logger:        logger,
		exchange:      ex,
		market:        cfg.Market,
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
	}, nil
}

// Market returns the market symbol this client fetches.
func (c *Client) Market() string {
	return c.market
}

// FetchCandles returns up to limit recent OHLCV bars for the configured
// market at the given timeframe.
func (c *Client) FetchCandles(ctx context.Context, timeframe string, limit int64) ([]Candle, error) {
	if limit <= 0 {
		limit = 1
	}

	var raw []ccxt.OHLCV
	err := c.callWithRetry(ctx, fmt.Sprintf("fetch_ohlcv_%s", timeframe), func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		result, err := c.exchange.FetchOHLCV(
			c.market,
			ccxt.WithFetchOHLCVTimeframe(timeframe),
			ccxt.WithFetchOHLCVLimit(limit),
		)
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	candles := make([]Candle, 0, len(raw))
	for _, item := range raw {
		candles = append(candles, Candle{
			Timestamp: time.UnixMilli(item.Timestamp).UTC(),
			Open:      item.Open,
			High:      item.High,
			Low:       item.Low,
			Close:     item.Close,
			Volume:    item.Volume,
		})
	}
	return candles, nil
}

func (c *Client) ensureMarketsLoaded(ctx context.Context) error {
	if c.marketsLoaded {
		return nil
	}

	c.marketsMu.Lock()
	defer c.marketsMu.Unlock()

	if c.marketsLoaded {
		return nil
	}

	if err := c.callWithRetry(ctx, "load_markets", func() error {
		_, err := c.exchange.LoadMarkets()
		return err
	}); err != nil {
		return err
	}

	c.marketsLoaded = true
	c.logger.Info("market metadata loaded", zap.String("market", c.market))
	return nil
}

func (c *Client) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	delay := c.retryDelay
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err := fn()
		if err == nil {
			return nil
		}
		if attempt >= c.retryAttempts {
			c.logger.Error("exchange call failed",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return err
		}

		c.logger.Warn("exchange call failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}
