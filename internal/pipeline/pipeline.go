package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/mmaneta/eki-lpr-update/internal/domain"
	"github.com/mmaneta/eki-lpr-update/internal/observability"
	"golang.org/x/sync/errgroup"
)

// SeriesSource yields the depth-weighted input series of each accounting unit.
// *domain.SeriesBuilder implements it.
type SeriesSource interface {
	Units() []string
	Build(unit string) ([]domain.Sample, error)
}

// ResultWriter persists a unit's balance and returns where it was written.
type ResultWriter interface {
	WriteSeries(series domain.PartitionSeries) (string, error)
}

// StatementPublisher sends statements to a downstream consumer.
type StatementPublisher interface {
	PublishStatements(ctx context.Context, statements []domain.Statement) error
}

// Pipeline runs the soil moisture balance for accounting units and derives
// quarterly statements from it.
type Pipeline struct {
	source  SeriesSource
	params  domain.SoilParams
	workers int
	logger  *slog.Logger
	metrics *observability.Metrics
	cache   *seriesCache
}

// New creates a Pipeline. workers bounds how many units run concurrently.
func New(source SeriesSource, params domain.SoilParams, workers int, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		source:  source,
		params:  params,
		workers: workers,
		logger:  logger,
		metrics: metrics,
		cache:   newSeriesCache(1024),
	}
}

// Units lists the accounting units known to the source.
func (p *Pipeline) Units() []string {
	return p.source.Units()
}

// CheckReadiness returns nil once the source has at least one unit.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if len(p.source.Units()) == 0 {
		return errors.New("no accounting units loaded")
	}
	return nil
}

// CalculateConsumptiveUse runs the balance for unitID, or for every unit
// when unitID is empty. Units are independent and run concurrently; the
// first failure cancels the rest.
func (p *Pipeline) CalculateConsumptiveUse(ctx context.Context, unitID string) (map[string]domain.PartitionSeries, error) {
	if unitID != "" {
		s, err := p.unitSeries(ctx, unitID)
		if err != nil {
			return nil, err
		}
		return map[string]domain.PartitionSeries{unitID: s}, nil
	}

	units := p.source.Units()
	out := make(map[string]domain.PartitionSeries, len(units))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, unit := range units {
		g.Go(func() error {
			s, err := p.unitSeries(gctx, unit)
			if err != nil {
				return err
			}
			mu.Lock()
			out[unit] = s
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	p.logger.Info("consumptive use calculated", "units", len(out))
	return out, nil
}

// Statement builds the quarterly statement of agreement a. The balance is
// truncated at the quarter end before aggregating.
func (p *Pipeline) Statement(ctx context.Context, a domain.Agreement, waterYear int, q domain.Quarter) (domain.Statement, error) {
	end, err := domain.QuarterEndDate(waterYear, q)
	if err != nil {
		return domain.Statement{}, err
	}
	series, err := p.unitSeries(ctx, a.Number)
	if err != nil {
		return domain.Statement{}, err
	}

	summary, err := domain.AggregateWaterYear(series.Through(end), a.AreaAcres, waterYear)
	if err != nil {
		return domain.Statement{}, err
	}
	st, err := domain.NewStatement(a, waterYear, q, summary)
	if err != nil {
		return domain.Statement{}, err
	}

	compliant := 0.0
	if st.Compliant {
		compliant = 1
	}
	p.metrics.Compliance.WithLabelValues(a.Number).Set(compliant)
	p.logger.Info("statement generated",
		"unit", a.Number,
		"water_year", waterYear,
		"quarter", q,
		"cumulative_af", summary.Total.CumulativeAF,
		"max_consumptive_use_af", a.MaxConsumptiveUseAF,
		"compliant", st.Compliant,
	)
	return st, nil
}

// WriteResults persists each series in unit order and returns the paths.
func (p *Pipeline) WriteResults(results map[string]domain.PartitionSeries, w ResultWriter) ([]string, error) {
	units := make([]string, 0, len(results))
	for u := range results {
		units = append(units, u)
	}
	slices.Sort(units)

	paths := make([]string, 0, len(units))
	for _, u := range units {
		path, err := w.WriteSeries(results[u])
		if err != nil {
			return paths, err
		}
		p.logger.Debug("consumptive use written", "unit", u, "path", path)
		paths = append(paths, path)
	}
	return paths, nil
}

// Publish sends statements, retrying with exponential backoff until
// attempts are exhausted or ctx is done.
func (p *Pipeline) Publish(ctx context.Context, pub StatementPublisher, statements []domain.Statement, attempts int) error {
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	var err error
	for attempt := 1; ; attempt++ {
		if err = pub.PublishStatements(ctx, statements); err == nil {
			p.metrics.StatementsPublished.Add(float64(len(statements)))
			return nil
		}
		p.logger.Error("publish statements failed", "error", err, "count", len(statements), "attempt", attempt)
		if attempt >= attempts {
			break
		}
		if !retry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
	return fmt.Errorf("publish statements: %w", err)
}

func (p *Pipeline) unitSeries(ctx context.Context, unit string) (domain.PartitionSeries, error) {
	if s, ok := p.cache.get(unit); ok {
		p.metrics.SeriesCache.WithLabelValues("hit").Inc()
		return s, nil
	}
	p.metrics.SeriesCache.WithLabelValues("miss").Inc()

	if err := ctx.Err(); err != nil {
		return domain.PartitionSeries{}, err
	}

	start := time.Now()
	s, err := p.runUnit(unit)
	if err != nil {
		p.metrics.UnitFailures.WithLabelValues(ErrorKind(err)).Inc()
		p.logger.Warn("consumptive use failed", "unit", unit, "error", err)
		return domain.PartitionSeries{}, err
	}
	p.metrics.RecurrenceDuration.Observe(time.Since(start).Seconds())
	p.metrics.UnitsProcessed.Inc()
	p.cache.put(unit, s)
	return s, nil
}

func (p *Pipeline) runUnit(unit string) (domain.PartitionSeries, error) {
	samples, err := p.source.Build(unit)
	if err != nil {
		return domain.PartitionSeries{}, err
	}
	return domain.RunRecurrence(unit, p.params, samples)
}

// ErrorKind classifies err for metrics and logs.
func ErrorKind(err error) string {
	var (
		noData   *domain.NoDataError
		input    *domain.InputValidationError
		mismatch *domain.ConfigurationMismatchError
		capacity *domain.CapacityViolationError
	)
	switch {
	case errors.As(err, &noData):
		return "no_data"
	case errors.As(err, &input):
		return "input_validation"
	case errors.As(err, &mismatch):
		return "configuration_mismatch"
	case errors.As(err, &capacity):
		return "capacity_violation"
	default:
		return "other"
	}
}
