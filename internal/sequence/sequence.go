package sequence

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/vidunsterling-afk/itroom-sub000/internal/ids"
	"github.com/vidunsterling-afk/itroom-sub000/internal/obs"
)

// EmployeeSeries is the global counter behind employee identifiers.
const EmployeeSeries = "employees"

var (
	ErrStorage       = errors.New("sequence: storage failure")
	ErrInvalidSeries = errors.New("sequence: invalid series")
)

var seriesPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// CounterStore provides the atomic primitive. IncrementCounter must create the counter at
// zero when absent and return the post-increment value in a single read-modify-write.
type CounterStore interface {
	IncrementCounter(ctx context.Context, key string) (int64, error)
	CurrentCounter(ctx context.Context, key string) (int64, error)
}

// Generator hands out monotonic values per named series.
type Generator struct {
	store CounterStore
	now   func() time.Time
}

// Option configures Generator.
type Option func(*Generator)

// WithClock overrides the clock used to pick the current document year.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

func NewGenerator(store CounterStore, opts ...Option) (*Generator, error) {
	if store == nil {
		return nil, errors.New("counter store is required")
	}
	g := &Generator{store: store, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// FingerprintSeries returns the year-scoped counter key for fingerprint documents.
func FingerprintSeries(year int) string {
	return fmt.Sprintf("fp-docs-%04d", year)
}

// Next atomically increments series and returns the new value. On error no value is consumed
// from the caller's point of view; a value committed by the store before a cancellation stays used.
func (g *Generator) Next(ctx context.Context, series string) (int64, error) {
	key, err := normalizeSeries(series)
	if err != nil {
		return 0, err
	}
	v, err := g.store.IncrementCounter(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("%w: increment %s: %v", ErrStorage, key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: increment %s returned %d", ErrStorage, key, v)
	}
	obs.SequenceIssued.WithLabelValues(metricSeries(key)).Inc()
	return v, nil
}

// Current returns the last issued value of series, or 0 when nothing was issued yet.
func (g *Generator) Current(ctx context.Context, series string) (int64, error) {
	key, err := normalizeSeries(series)
	if err != nil {
		return 0, err
	}
	v, err := g.store.CurrentCounter(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %v", ErrStorage, key, err)
	}
	return v, nil
}

// NextEmployeeID mints the next employee identifier, e.g. EMP000124.
func (g *Generator) NextEmployeeID(ctx context.Context) (string, error) {
	seq, err := g.Next(ctx, EmployeeSeries)
	if err != nil {
		return "", err
	}
	return ids.EmployeeID(seq), nil
}

// NextFingerprintDocNo mints the next document number for year. A non-positive year
// means the current UTC year.
func (g *Generator) NextFingerprintDocNo(ctx context.Context, year int) (string, error) {
	if year <= 0 {
		year = g.now().UTC().Year()
	}
	if year > 9999 {
		return "", fmt.Errorf("%w: year %d out of range", ErrInvalidSeries, year)
	}
	seq, err := g.Next(ctx, FingerprintSeries(year))
	if err != nil {
		return "", err
	}
	return ids.FingerprintDocNo(year, seq), nil
}

func normalizeSeries(series string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(series))
	if !seriesPattern.MatchString(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeries, series)
	}
	return key, nil
}

// metricSeries folds year-scoped keys into one label value.
func metricSeries(key string) string {
	if strings.HasPrefix(key, "fp-docs-") {
		return "fp-docs"
	}
	return key
}
