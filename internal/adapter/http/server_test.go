package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/mmaneta/eki-lpr-update/internal/adapter/http"
	"github.com/mmaneta/eki-lpr-update/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	readyErr     error
	units        []string
	series       map[string]domain.PartitionSeries
	cuErr        error
	statementErr error

	gotAgreement domain.Agreement
	gotWaterYear int
	gotQuarter   domain.Quarter
}

func (m *mockService) CheckReadiness(_ context.Context) error { return m.readyErr }

func (m *mockService) Units() []string { return m.units }

func (m *mockService) CalculateConsumptiveUse(_ context.Context, unitID string) (map[string]domain.PartitionSeries, error) {
	if m.cuErr != nil {
		return nil, m.cuErr
	}
	s, ok := m.series[unitID]
	if !ok {
		return nil, &domain.NoDataError{Unit: unitID, Variable: domain.VariableET}
	}
	return map[string]domain.PartitionSeries{unitID: s}, nil
}

func (m *mockService) Statement(_ context.Context, a domain.Agreement, waterYear int, q domain.Quarter) (domain.Statement, error) {
	m.gotAgreement, m.gotWaterYear, m.gotQuarter = a, waterYear, q
	if m.statementErr != nil {
		return domain.Statement{}, m.statementErr
	}
	return domain.Statement{ID: "st-1", Agreement: a, WaterYear: waterYear, Quarter: q, Compliant: true}, nil
}

var testAgreements = map[string]domain.Agreement{
	"LRP-001": {Number: "LRP-001", AreaAcres: 100, MaxConsumptiveUseAF: 50},
}

func newTestServer(svc *mockService) *httpadapter.Server {
	return httpadapter.NewServer(":0", svc, testAgreements, slog.Default())
}

func get(t *testing.T, srv *httpadapter.Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(&mockService{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(t, newTestServer(&mockService{}), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(t, newTestServer(&mockService{readyErr: errors.New("no accounting units loaded")}), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(&mockService{}), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestUnitsListsService(t *testing.T) {
	rec := get(t, newTestServer(&mockService{units: []string{"LRP-001", "LRP-002"}}), "/v1/units")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Units []string `json:"units"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"LRP-001", "LRP-002"}, body.Units)
}

func TestUnitsEmptyIsArray(t *testing.T) {
	rec := get(t, newTestServer(&mockService{}), "/v1/units")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"units":[]}`, rec.Body.String())
}

func TestConsumptiveUseReturnsRows(t *testing.T) {
	ts := time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC)
	series := domain.SeriesFromRows("LRP-001", []domain.Partition{{
		Time: ts, Precip: 1, ET: 2, EffectivePrecip: 0.5, SoilStorage: 0.2, CUFromAppliedWater: 1.5, CUFromPrecip: 0.5,
	}})
	svc := &mockService{series: map[string]domain.PartitionSeries{"LRP-001": series}}

	rec := get(t, newTestServer(svc), "/v1/units/LRP-001/consumptive-use")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Unit string             `json:"unit"`
		Rows []domain.Partition `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "LRP-001", body.Unit)
	require.Len(t, body.Rows, 1)
	assert.True(t, ts.Equal(body.Rows[0].Time))
	assert.InDelta(t, 1.5, body.Rows[0].CUFromAppliedWater, 1e-12)
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no data", &domain.NoDataError{Unit: "LRP-001", Variable: domain.VariablePrecip}, http.StatusNotFound},
		{"input validation", &domain.InputValidationError{Unit: "LRP-001", Reason: "bad"}, http.StatusBadRequest},
		{"configuration mismatch", &domain.ConfigurationMismatchError{Tag: "status"}, http.StatusConflict},
		{"capacity violation", &domain.CapacityViolationError{Unit: "LRP-001"}, http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newTestServer(&mockService{cuErr: tt.err}), "/v1/units/LRP-001/consumptive-use")
			assert.Equal(t, tt.want, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

func TestUnknownUnitConsumptiveUseReturns404(t *testing.T) {
	rec := get(t, newTestServer(&mockService{}), "/v1/units/nope/consumptive-use")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatementPassesAgreementAndPeriod(t *testing.T) {
	svc := &mockService{}
	rec := get(t, newTestServer(svc), "/v1/units/LRP-001/statement?water_year=2025&quarter=q2")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testAgreements["LRP-001"], svc.gotAgreement)
	assert.Equal(t, 2025, svc.gotWaterYear)
	assert.Equal(t, domain.Q2, svc.gotQuarter)

	var st domain.Statement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "st-1", st.ID)
	assert.True(t, st.Compliant)
}

func TestStatementRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"unknown agreement", "/v1/units/LRP-999/statement?water_year=2025&quarter=Q1", http.StatusNotFound},
		{"missing water year", "/v1/units/LRP-001/statement?quarter=Q1", http.StatusBadRequest},
		{"non-numeric water year", "/v1/units/LRP-001/statement?water_year=abc&quarter=Q1", http.StatusBadRequest},
		{"bad quarter", "/v1/units/LRP-001/statement?water_year=2025&quarter=Q5", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newTestServer(&mockService{}), tt.target)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestStatementServiceErrorIsMapped(t *testing.T) {
	svc := &mockService{statementErr: &domain.NoDataError{Unit: "LRP-001", Variable: domain.VariableET}}
	rec := get(t, newTestServer(svc), "/v1/units/LRP-001/statement?water_year=2025&quarter=Q4")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSHeadersOnSimpleRequest(t *testing.T) {
	srv := newTestServer(&mockService{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/units", nil)
	req.Header.Set("Origin", "http://example.com")

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
