// Package sheets reads statement worksheets from and writes run tables back
// to Google Sheets.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dvloznov/statement-reconciler/internal/logger"
	"google.golang.org/api/googleapi"
)

// Defaults for the rate limiter and retry policy.
const (
	DefaultMinDelay       = 1500 * time.Millisecond
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 5 * time.Second
	jitterMin             = 100 * time.Millisecond
	jitterSpan            = 400 * time.Millisecond
)

// Clock abstracts time so the limiter can be tested without real delays.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func defaultJitter() time.Duration {
	return jitterMin + rand.N(jitterSpan)
}

// Options tunes a Client. Zero values fall back to the defaults.
type Options struct {
	MinDelay       time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	Clock          Clock
	Jitter         func() time.Duration
	// Timer drives backoff waits; nil uses a real timer.
	Timer backoff.Timer
}

// Client serialises calls to the Sheets API, keeping a minimum delay between
// them and backing off exponentially when the quota is exhausted.
type Client struct {
	api            API
	clock          Clock
	jitter         func() time.Duration
	timer          backoff.Timer
	minDelay       time.Duration
	maxRetries     int
	initialBackoff time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// NewClient wraps an API with rate limiting and retries.
func NewClient(api API, opts Options) *Client {
	c := &Client{
		api:            api,
		clock:          opts.Clock,
		jitter:         opts.Jitter,
		timer:          opts.Timer,
		minDelay:       opts.MinDelay,
		maxRetries:     opts.MaxRetries,
		initialBackoff: opts.InitialBackoff,
	}
	if c.clock == nil {
		c.clock = systemClock{}
	}
	if c.jitter == nil {
		c.jitter = defaultJitter
	}
	if c.minDelay <= 0 {
		c.minDelay = DefaultMinDelay
	}
	if c.maxRetries <= 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.initialBackoff <= 0 {
		c.initialBackoff = DefaultInitialBackoff
	}
	return c
}

// throttle sleeps until at least minDelay (plus jitter) has passed since the
// previous call.
func (c *Client) throttle(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastCall.IsZero() {
		elapsed := c.clock.Now().Sub(c.lastCall)
		if elapsed < c.minDelay {
			if err := c.clock.Sleep(ctx, c.minDelay-elapsed+c.jitter()); err != nil {
				return err
			}
		}
	}
	c.lastCall = c.clock.Now()
	return nil
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.initialBackoff << uint(c.maxRetries)
	b.MaxElapsedTime = 0
	b.Clock = c.clock
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries-1)), ctx)
}

// do runs one API call under the limiter. Only quota errors are retried.
func (c *Client) do(ctx context.Context, op string, call func() error) error {
	log := logger.FromContext(ctx)
	attempt := 0
	operation := func() error {
		attempt++
		if err := c.throttle(ctx); err != nil {
			return backoff.Permanent(err)
		}
		err := call()
		if err == nil {
			return nil
		}
		if !IsRateLimited(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("Sheets quota exhausted, backing off")
	}

	if err := backoff.RetryNotifyWithTimer(operation, c.newBackOff(ctx), notify, c.timer); err != nil {
		return fmt.Errorf("sheets %s: %w", op, err)
	}
	return nil
}

// IsRateLimited reports whether err is a quota or rate limit rejection.
func IsRateLimited(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusTooManyRequests {
			return true
		}
		for _, item := range gerr.Errors {
			if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
				return true
			}
		}
	}
	return err != nil && strings.Contains(err.Error(), "RESOURCE_EXHAUSTED")
}

// ReadRange returns the formatted cell values of a range as strings.
func (c *Client) ReadRange(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	var values [][]interface{}
	err := c.do(ctx, "read "+rng, func() error {
		var err error
		values, err = c.api.GetValues(ctx, spreadsheetID, rng)
		return err
	})
	if err != nil {
		return nil, err
	}

	rows := make([][]string, len(values))
	for i, row := range values {
		rows[i] = make([]string, len(row))
		for j, cell := range row {
			if cell != nil {
				rows[i][j] = fmt.Sprint(cell)
			}
		}
	}
	return rows, nil
}

// WriteSheet replaces the content of a worksheet, creating it when missing.
func (c *Client) WriteSheet(ctx context.Context, spreadsheetID, title string, rows [][]string) error {
	var titles []string
	if err := c.do(ctx, "list sheets", func() error {
		var err error
		titles, err = c.api.SheetTitles(ctx, spreadsheetID)
		return err
	}); err != nil {
		return err
	}

	exists := false
	for _, t := range titles {
		if t == title {
			exists = true
			break
		}
	}

	rng := QuoteSheet(title)
	if exists {
		if err := c.do(ctx, "clear "+rng, func() error {
			return c.api.ClearValues(ctx, spreadsheetID, rng)
		}); err != nil {
			return err
		}
	} else {
		if err := c.do(ctx, "add sheet "+rng, func() error {
			return c.api.AddSheet(ctx, spreadsheetID, title)
		}); err != nil {
			return err
		}
	}

	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = make([]interface{}, len(row))
		for j, cell := range row {
			values[i][j] = cell
		}
	}
	return c.do(ctx, "update "+rng, func() error {
		return c.api.UpdateValues(ctx, spreadsheetID, rng+"!A1", values)
	})
}

// QuoteSheet renders a sheet title as an A1 range prefix.
func QuoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
