package api

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	forecaster "github.com/aouyang1/go-ndvi-forecaster"
	"github.com/aouyang1/go-ndvi-forecaster/backend"
	"github.com/aouyang1/go-ndvi-forecaster/internal/observability"
	"github.com/aouyang1/go-ndvi-forecaster/models"
	"github.com/aouyang1/go-ndvi-forecaster/region"
	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// shortModel returns fewer values than the forecast horizon
type shortModel struct{}

func (shortModel) Predict(x mat.Matrix) ([]float64, error) {
	return []float64{0.1, 0.2}, nil
}

func (shortModel) InputShape() (int, int) {
	return 5, 1
}

func (shortModel) OutputLen() int {
	return 2
}

type testServer struct {
	*Server
	clock   *clockwork.FakeClock
	metrics *observability.Metrics
	logs    *bytes.Buffer
}

func newTestServer(t *testing.T, opts ...ServerOption) *testServer {
	t.Helper()

	north, _, err := models.LoadFile("../../testdata/models/ndvi_predictor_north.json")
	require.Nil(t, err)
	reg, err := forecaster.NewRegistry(map[region.Region]models.SequenceModel{
		region.North: north,
		region.East:  shortModel{},
	})
	require.Nil(t, err)

	e, err := forecaster.New(&forecaster.Options{Registry: reg})
	require.Nil(t, err)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	clock := clockwork.NewFakeClockAt(time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC))
	metrics := observability.NewMetricsForTesting()
	gatherer := prometheus.NewRegistry()
	gatherer.MustRegister(metrics.Forecasts, metrics.HTTPRequests, metrics.LearnedModels)

	opts = append([]ServerOption{WithClock(clock), WithMetrics(metrics, gatherer)}, opts...)
	return &testServer{
		Server:  NewServer(e, logger, opts...),
		clock:   clock,
		metrics: metrics,
		logs:    &logs,
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) postForm(values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(values.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return s.do(req)
}

func form(r string, values ...string) url.Values {
	v := url.Values{}
	for i, val := range values {
		v.Set("ndvi"+string(rune('1'+i)), val)
	}
	if r != "" {
		v.Set("region", r)
	}
	return v
}

func TestPredict(t *testing.T) {
	testData := map[string]struct {
		values   url.Values
		backend  string
		status   int
		expected string
	}{
		"constant increase in the south": {
			values:   form("south", "0.5", "0.52", "0.54", "0.56", "0.58"),
			status:   http.StatusOK,
			expected: `{"year1":0.601,"year2":0.6178,"year3":0.6304}`,
		},
		"clamped in the north": {
			values:   form("North", "0.9", "0.95", "1.0", "0.98", "0.99"),
			status:   http.StatusOK,
			expected: `{"year1":1,"year2":1,"year3":1}`,
		},
		"learned in the north": {
			values:   form("north", "0.5", "0.52", "0.54", "0.56", "0.58"),
			backend:  "learned",
			status:   http.StatusOK,
			expected: `{"year1":0.4981,"year2":0.4804,"year3":0.4628}`,
		},
		"four values": {
			values:   form("south", "0.5", "0.52", "0.54", "0.56"),
			status:   http.StatusBadRequest,
			expected: `{"error":"expected 5 values, but got 4, wrong number of historical values"}`,
		},
		"not numeric": {
			values:   form("south", "0.5", "abc", "0.54", "0.56", "0.58"),
			status:   http.StatusBadRequest,
			expected: `{"error":"ndvi2: could not convert \"abc\" to a number"}`,
		},
		"above range": {
			values:   form("south", "0.5", "0.52", "1.5", "0.56", "0.58"),
			status:   http.StatusBadRequest,
			expected: `{"error":"NDVI values must be between -1 and 1, got 1.5"}`,
		},
		"below range": {
			values:   form("south", "-2.0", "0.52", "0.54", "0.56", "0.58"),
			status:   http.StatusBadRequest,
			expected: `{"error":"NDVI values must be between -1 and 1, got -2"}`,
		},
		"unknown region": {
			values:   form("atlantis", "0.5", "0.52", "0.54", "0.56", "0.58"),
			status:   http.StatusBadRequest,
			expected: `{"error":"invalid region: atlantis"}`,
		},
		"missing region": {
			values:   form("", "0.5", "0.52", "0.54", "0.56", "0.58"),
			status:   http.StatusBadRequest,
			expected: `{"error":"region is required"}`,
		},
		"unknown backend": {
			values:   form("south", "0.5", "0.52", "0.54", "0.56", "0.58"),
			backend:  "oracle",
			status:   http.StatusBadRequest,
			expected: `{"error":"\"oracle\", unknown backend"}`,
		},
		"learned model unavailable": {
			values:   form("west", "0.5", "0.52", "0.54", "0.56", "0.58"),
			backend:  "learned",
			status:   http.StatusServiceUnavailable,
			expected: `{"error":"no learned model available for region west"}`,
		},
		"learned model wrong output length": {
			values:   form("east", "0.5", "0.52", "0.54", "0.56", "0.58"),
			backend:  "learned",
			status:   http.StatusInternalServerError,
			expected: `{"error":"prediction failed"}`,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			s := newTestServer(t)
			if td.backend != "" {
				td.values.Set("backend", td.backend)
			}

			rec := s.postForm(td.values)
			assert.Equal(t, td.status, rec.Code)
			assert.JSONEq(t, td.expected, rec.Body.String())
		})
	}
}

func TestPredictJSONBody(t *testing.T) {
	s := newTestServer(t)

	body := `{"ndvi1": 0.5, "ndvi2": "0.52", "ndvi3": 0.54, "ndvi4": 0.56, "ndvi5": 0.58, "region": "south"}`
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := s.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"year1":0.601,"year2":0.6178,"year3":0.6304}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"ndvi1": [`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = s.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"malformed json body"}`, rec.Body.String())
}

func TestPredictDefaultBackend(t *testing.T) {
	s := newTestServer(t, WithDefaultBackend(backend.KindLearned))

	rec := s.postForm(form("north", "0.5", "0.52", "0.54", "0.56", "0.58"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"year1":0.4981,"year2":0.4804,"year3":0.4628}`, rec.Body.String())

	values := form("north", "0.5", "0.52", "0.54", "0.56", "0.58")
	values.Set("backend", "statistical")
	rec = s.postForm(values)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "0.4981")
}

func TestPredictRedactsInternalErrors(t *testing.T) {
	s := newTestServer(t)

	values := form("east", "0.5", "0.52", "0.54", "0.56", "0.58")
	values.Set("backend", "learned")
	rec := s.postForm(values)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "output values")
	assert.Contains(t, s.logs.String(), "expected 3 output values, but got 2")
	assert.Contains(t, s.logs.String(), "level=ERROR")
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, WithRateLimit(1, 1))
	values := form("south", "0.5", "0.52", "0.54", "0.56", "0.58")

	assert.Equal(t, http.StatusOK, s.postForm(values).Code)

	rec := s.postForm(values)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rec.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.RateLimited))

	// non forecast routes are not limited
	assert.Equal(t, http.StatusOK, s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)

	s.clock.Advance(time.Second)
	assert.Equal(t, http.StatusOK, s.postForm(values).Code)
}

func TestChart(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/chart?"+form("south", "0.5", "0.52", "0.54", "0.56", "0.58").Encode(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, echo.MIMETextHTMLCharsetUTF8, rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Body.String(), "NDVI forecast")
	assert.Contains(t, rec.Body.String(), "0.6304")

	values := form("south", "0.5", "0.52", "0.54", "0.56", "0.58")
	values.Set("title", "South field")
	rec = s.do(httptest.NewRequest(http.MethodGet, "/chart?"+values.Encode(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "South field")

	rec = s.do(httptest.NewRequest(http.MethodGet, "/chart?"+form("atlantis", "0.5", "0.52", "0.54", "0.56", "0.58").Encode(), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid region: atlantis"}`, rec.Body.String())
}

func TestIndexAndRegions(t *testing.T) {
	s := newTestServer(t, WithVersion("1.2.3"))

	rec := s.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var index IndexResponse
	require.Nil(t, json.Unmarshal(rec.Body.Bytes(), &index))
	assert.Equal(t, "ndvi-forecaster", index.Service)
	assert.Equal(t, "1.2.3", index.Version)
	assert.Equal(t, backend.KindStatistical, index.DefaultBackend)
	assert.Equal(t, 5, index.HistoryLen)
	assert.Equal(t, 3, index.Horizon)
	require.Len(t, index.Regions, 4)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/regions", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var regions []RegionInfo
	require.Nil(t, json.Unmarshal(rec.Body.Bytes(), &regions))
	require.Len(t, regions, 4)

	expected := map[region.Region]struct {
		factor  float64
		learned bool
	}{
		region.North: {factor: 0.95, learned: true},
		region.South: {factor: 1.05, learned: false},
		region.East:  {factor: 0.98, learned: true},
		region.West:  {factor: 1.02, learned: false},
	}
	for i, info := range regions {
		assert.Equal(t, region.All()[i], info.Region)
		assert.Equal(t, expected[info.Region].factor, info.Factor)
		assert.Equal(t, expected[info.Region].learned, info.Learned)
	}
	assert.Equal(t, index.Regions, regions)
}

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = s.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())

	require.Nil(t, s.Shutdown(context.Background()))

	rec = s.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"not ready","error":"shutting down"}`, rec.Body.String())
}

func TestReadinessWithoutEngine(t *testing.T) {
	s := NewServer(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, s.CheckReadiness(context.Background()), forecaster.ErrUninitializedEngine)

	rec := httptest.NewRecorder()
	values := form("south", "0.5", "0.52", "0.54", "0.56", "0.58")
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(values.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t)

	s.postForm(form("south", "0.5", "0.52", "0.54", "0.56", "0.58"))
	s.postForm(form("atlantis", "0.5", "0.52", "0.54", "0.56", "0.58"))
	values := form("west", "0.5", "0.52", "0.54", "0.56", "0.58")
	values.Set("backend", "learned")
	s.postForm(values)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Forecasts.WithLabelValues("south", "statistical", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Forecasts.WithLabelValues("invalid", "statistical", "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Forecasts.WithLabelValues("west", "learned", "unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.HTTPRequests.WithLabelValues("/predict", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.HTTPRequests.WithLabelValues("/predict", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.HTTPRequests.WithLabelValues("/predict", "503")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.LearnedModels.WithLabelValues("north")))
	assert.Equal(t, 0.0, testutil.ToFloat64(s.metrics.LearnedModels.WithLabelValues("west")))

	rec := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ndvi_forecaster_forecasts_total{backend="statistical",outcome="ok",region="south"} 1`)
	assert.Contains(t, rec.Body.String(), `ndvi_forecaster_learned_model_loaded{region="east"} 1`)
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not Found"}`, rec.Body.String())
}

func TestTokenUnmarshalJSON(t *testing.T) {
	testData := map[string]struct {
		input    string
		expected Token
	}{
		"number":   {input: `0.52`, expected: "0.52"},
		"string":   {input: `"0.52"`, expected: "0.52"},
		"negative": {input: `-1`, expected: "-1"},
		"null":     {input: `null`, expected: ""},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			var tok Token
			require.Nil(t, json.Unmarshal([]byte(td.input), &tok))
			assert.Equal(t, td.expected, tok)
		})
	}
}
