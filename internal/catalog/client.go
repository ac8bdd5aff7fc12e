package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"preciobot/internal"
	"preciobot/internal/config"
	"preciobot/internal/connectors"
)

// Client fetches worksheets through a SheetSource, rate limited and retried
// on transient upstream failures.
type Client struct {
	source      connectors.SheetSource
	limiter     *RateLimiter
	maxAttempts int
	backoff     time.Duration
	log         zerolog.Logger
}

func NewClient(cfg config.Config, source connectors.SheetSource, log zerolog.Logger) *Client {
	attempts := cfg.SheetsMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return &Client{
		source:      source,
		limiter:     NewRateLimiter(cfg.SheetsRateLimitRPS),
		maxAttempts: attempts,
		backoff:     250 * time.Millisecond,
		log:         log.With().Str("component", "catalog_client").Str("source", source.Name()).Logger(),
	}
}

// FetchRecords reads one sheet and validates it against required.
func (c *Client) FetchRecords(ctx context.Context, sheet string, required []string) ([]internal.CatalogRecord, error) {
	rows, err := c.fetchRows(ctx, sheet)
	if err != nil {
		return nil, err
	}
	return BuildRecords(sheet, rows, required)
}

func (c *Client) fetchRows(ctx context.Context, sheet string) ([][]string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		rows, err := c.source.FetchRows(ctx, sheet)
		if err == nil {
			return rows, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == c.maxAttempts {
			break
		}

		wait := c.backoff*time.Duration(1<<(attempt-1)) + time.Duration(rand.Int63n(int64(c.backoff/2)+1))
		c.log.Warn().Err(err).Str("sheet", sheet).Int("attempt", attempt).Dur("backoff", wait).Msg("catalog fetch failed, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("fetch sheet %s: %w", sheet, lastErr)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, connectors.ErrSheetNotFound) {
		return false
	}
	var statusErr *connectors.StatusError
	if errors.As(err, &statusErr) {
		return isRetryableStatus(statusErr.Code)
	}
	// Transport failures (timeouts, resets) carry no status.
	return true
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
