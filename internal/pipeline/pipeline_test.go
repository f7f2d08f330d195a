package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mmaneta/eki-lpr-update/internal/domain"
	"github.com/mmaneta/eki-lpr-update/internal/observability"
	"github.com/mmaneta/eki-lpr-update/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockSource struct {
	samples map[string][]domain.Sample
	order   []string
	errs    map[string]error
	builds  atomic.Int64
}

func (m *mockSource) Units() []string { return m.order }

func (m *mockSource) Build(unit string) ([]domain.Sample, error) {
	m.builds.Add(1)
	if err := m.errs[unit]; err != nil {
		return nil, err
	}
	s, ok := m.samples[unit]
	if !ok {
		return nil, &domain.NoDataError{Unit: unit, Variable: domain.VariableET}
	}
	return s, nil
}

type mockPublisher struct {
	failures  int
	calls     int
	published []domain.Statement
}

func (m *mockPublisher) PublishStatements(_ context.Context, statements []domain.Statement) error {
	m.calls++
	if m.calls <= m.failures {
		return errors.New("broker unavailable")
	}
	m.published = append(m.published, statements...)
	return nil
}

type mockWriter struct {
	units []string
}

func (m *mockWriter) WriteSeries(s domain.PartitionSeries) (string, error) {
	m.units = append(m.units, s.Unit)
	return s.Unit + ".csv", nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

// waterYear2023 returns one sample per month of water year 2023 with a wet
// winter and a dry summer.
func waterYear2023() []domain.Sample {
	start := time.Date(2022, time.October, 1, 0, 0, 0, 0, time.UTC)
	precip := []float64{0.4, 1.8, 3.1, 4.2, 3.3, 2.4, 0.9, 0.3, 0.1, 0, 0, 0.05}
	et := []float64{2.1, 1.0, 0.6, 0.8, 1.4, 2.6, 3.9, 5.2, 6.4, 7.1, 6.3, 4.4}
	out := make([]domain.Sample, len(precip))
	for i := range out {
		out[i] = domain.Sample{Time: start.AddDate(0, i, 0), Precip: precip[i], ET: et[i]}
	}
	return out
}

func newSource(units ...string) *mockSource {
	m := &mockSource{samples: map[string][]domain.Sample{}, errs: map[string]error{}}
	for _, u := range units {
		m.order = append(m.order, u)
		m.samples[u] = waterYear2023()
	}
	return m
}

// --- tests ---

func TestPipeline_CalculateConsumptiveUse_AllUnits(t *testing.T) {
	src := newSource("A", "B", "C", "D", "E")
	p := pipeline.New(src, domain.DefaultSoilParams(), 2, discardLogger(), newTestMetrics())

	got, err := p.CalculateConsumptiveUse(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, got, 5)

	want, err := domain.RunRecurrence("C", domain.DefaultSoilParams(), waterYear2023())
	require.NoError(t, err)
	assert.Equal(t, want, got["C"], "concurrent run matches a sequential one")
}

func TestPipeline_CalculateConsumptiveUse_SingleUnit(t *testing.T) {
	src := newSource("A", "B")
	p := pipeline.New(src, domain.DefaultSoilParams(), 4, discardLogger(), newTestMetrics())

	got, err := p.CalculateConsumptiveUse(context.Background(), "B")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 12, got["B"].Len())

	_, err = p.CalculateConsumptiveUse(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, int64(1), src.builds.Load(), "second call served from cache")
}

func TestPipeline_CalculateConsumptiveUse_UnknownUnit(t *testing.T) {
	p := pipeline.New(newSource("A"), domain.DefaultSoilParams(), 1, discardLogger(), newTestMetrics())

	_, err := p.CalculateConsumptiveUse(context.Background(), "nope")
	var noData *domain.NoDataError
	assert.True(t, errors.As(err, &noData))
}

func TestPipeline_CalculateConsumptiveUse_FailureAborts(t *testing.T) {
	src := newSource("A", "B", "C")
	src.errs["B"] = &domain.InputValidationError{Unit: "B", Field: "time", Reason: "mismatch"}
	p := pipeline.New(src, domain.DefaultSoilParams(), 1, discardLogger(), newTestMetrics())

	_, err := p.CalculateConsumptiveUse(context.Background(), "")
	var inputErr *domain.InputValidationError
	require.True(t, errors.As(err, &inputErr), "got %v", err)
	assert.Equal(t, "B", inputErr.Unit)
}

func TestPipeline_CalculateConsumptiveUse_Canceled(t *testing.T) {
	p := pipeline.New(newSource("A"), domain.DefaultSoilParams(), 1, discardLogger(), newTestMetrics())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.CalculateConsumptiveUse(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_Statement(t *testing.T) {
	fixed := time.Date(2023, 7, 5, 12, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { domain.SetClock(nil) })

	p := pipeline.New(newSource("LRP-001"), domain.DefaultSoilParams(), 1, discardLogger(), newTestMetrics())
	a := domain.Agreement{Number: "LRP-001", AreaAcres: 100, MaxConsumptiveUseAF: 1000}

	q2, err := p.Statement(context.Background(), a, 2023, domain.Q2)
	require.NoError(t, err)
	assert.Equal(t, fixed, q2.GeneratedAt)
	assert.True(t, q2.Compliant)
	assert.Zero(t, q2.Summary.Quarters[2].ET, "months after the quarter end are excluded")
	assert.Zero(t, q2.Summary.Quarters[3].ET)

	q4, err := p.Statement(context.Background(), a, 2023, domain.Q4)
	require.NoError(t, err)
	assert.Equal(t, q2.Summary.Quarters[0], q4.Summary.Quarters[0], "earlier quarters do not change")
	assert.Equal(t, q2.Summary.Quarters[1], q4.Summary.Quarters[1])
	assert.Greater(t, q4.Summary.Total.CumulativeAF, q2.Summary.Total.CumulativeAF)
	assert.InDelta(t, q4.Summary.Quarters[3].CumulativeAF, q4.Summary.Total.CumulativeAF, 1e-9)

	strict := a
	strict.MaxConsumptiveUseAF = q4.Summary.Total.CumulativeAF - 0.01
	q4, err = p.Statement(context.Background(), strict, 2023, domain.Q4)
	require.NoError(t, err)
	assert.False(t, q4.Compliant)
}

func TestPipeline_Statement_InvalidArea(t *testing.T) {
	p := pipeline.New(newSource("LRP-001"), domain.DefaultSoilParams(), 1, discardLogger(), newTestMetrics())
	_, err := p.Statement(context.Background(), domain.Agreement{Number: "LRP-001"}, 2023, domain.Q1)
	var inputErr *domain.InputValidationError
	assert.True(t, errors.As(err, &inputErr))
}

func TestPipeline_CheckReadiness(t *testing.T) {
	ready := pipeline.New(newSource("A"), domain.DefaultSoilParams(), 1, discardLogger(), newTestMetrics())
	require.NoError(t, ready.CheckReadiness(context.Background()))

	empty := pipeline.New(newSource(), domain.DefaultSoilParams(), 1, discardLogger(), newTestMetrics())
	assert.Error(t, empty.CheckReadiness(context.Background()))
}

func TestPipeline_WriteResults_SortedByUnit(t *testing.T) {
	p := pipeline.New(newSource("B", "A"), domain.DefaultSoilParams(), 2, discardLogger(), newTestMetrics())
	results, err := p.CalculateConsumptiveUse(context.Background(), "")
	require.NoError(t, err)

	w := &mockWriter{}
	paths, err := p.WriteResults(results, w)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, w.units)
	assert.Equal(t, []string{"A.csv", "B.csv"}, paths)
}

func TestPipeline_Publish_RetriesThenSucceeds(t *testing.T) {
	p := pipeline.New(newSource("A"), domain.DefaultSoilParams(), 1, discardLogger(), newTestMetrics())
	pub := &mockPublisher{failures: 1}

	err := p.Publish(context.Background(), pub, []domain.Statement{{ID: "s1"}}, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, pub.calls)
	require.Len(t, pub.published, 1)
}

func TestPipeline_Publish_GivesUp(t *testing.T) {
	p := pipeline.New(newSource("A"), domain.DefaultSoilParams(), 1, discardLogger(), newTestMetrics())
	pub := &mockPublisher{failures: 10}

	err := p.Publish(context.Background(), pub, []domain.Statement{{ID: "s1"}}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
	assert.Equal(t, 1, pub.calls)
}

func TestPipeline_Publish_StopsWhenContextDone(t *testing.T) {
	p := pipeline.New(newSource("A"), domain.DefaultSoilParams(), 1, discardLogger(), newTestMetrics())
	pub := &mockPublisher{failures: 10}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := p.Publish(ctx, pub, []domain.Statement{{ID: "s1"}}, 10)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, pub.calls, "backoff sleep is interrupted by the deadline")
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "no_data", pipeline.ErrorKind(&domain.NoDataError{}))
	assert.Equal(t, "input_validation", pipeline.ErrorKind(&domain.InputValidationError{}))
	assert.Equal(t, "configuration_mismatch", pipeline.ErrorKind(&domain.ConfigurationMismatchError{}))
	assert.Equal(t, "capacity_violation", pipeline.ErrorKind(&domain.CapacityViolationError{}))
	assert.Equal(t, "other", pipeline.ErrorKind(errors.New("boom")))
}
