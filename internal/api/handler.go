package api

import (
	"context"
	"net/http"
	"time"

	forecaster "github.com/aouyang1/go-ndvi-forecaster"
	"github.com/aouyang1/go-ndvi-forecaster/backend"
	"github.com/aouyang1/go-ndvi-forecaster/region"
	"github.com/aouyang1/go-ndvi-forecaster/series"
	"github.com/labstack/echo/v4"
)

const serviceName = "ndvi-forecaster"

// RegionInfo describes how forecasts are served for a region
type RegionInfo struct {
	Region  region.Region          `json:"region"`
	Factor  float64                `json:"factor"`
	Learned bool                   `json:"learned"`
	Model   forecaster.ModelStatus `json:"model"`
}

// IndexResponse summarizes the service
type IndexResponse struct {
	Service        string       `json:"service"`
	Version        string       `json:"version"`
	DefaultBackend backend.Kind `json:"default_backend"`
	HistoryLen     int          `json:"history_len"`
	Horizon        int          `json:"horizon"`
	Regions        []RegionInfo `json:"regions"`
}

func (s *Server) regions() []RegionInfo {
	status := s.engine.Registry().Status()
	res := make([]RegionInfo, 0, len(status))
	for _, st := range status {
		res = append(res, RegionInfo{
			Region:  st.Region,
			Factor:  region.Factor(st.Region),
			Learned: st.State == forecaster.ModelLoaded,
			Model:   st,
		})
	}
	return res
}

func (s *Server) handleIndex(c echo.Context) error {
	return c.JSON(http.StatusOK, IndexResponse{
		Service:        serviceName,
		Version:        s.config.Version,
		DefaultBackend: s.config.DefaultBackend,
		HistoryLen:     series.HistoryLen,
		Horizon:        series.Horizon,
		Regions:        s.regions(),
	})
}

func (s *Server) handleRegions(c echo.Context) error {
	return c.JSON(http.StatusOK, s.regions())
}

func (s *Server) handlePredict(c echo.Context) error {
	var req PredictRequest
	if err := readAndValidateRequest(c, &req); err != nil {
		return err
	}

	_, f, err := s.forecast(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}

func (s *Server) handleChart(c echo.Context) error {
	var req ChartRequest
	if err := readAndValidateRequest(c, &req); err != nil {
		return err
	}

	h, f, err := s.forecast(c.Request().Context(), &req.PredictRequest)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return forecaster.PlotForecast(c.Response(), req.Title, h, f)
}

// forecast validates the request and runs the engine, recording the outcome and latency
func (s *Server) forecast(ctx context.Context, req *PredictRequest) (series.Historical, series.Forecast, error) {
	start := s.clock.Now()

	kind := s.config.DefaultBackend
	regionLabel := "invalid"

	h, r, err := series.Validate(req.Values(), req.Region)
	if err == nil {
		regionLabel = r.String()
		if req.Backend != "" {
			kind, err = backend.ParseKind(req.Backend)
		}
	}

	var f series.Forecast
	if err == nil {
		f, err = s.engine.ForecastSeries(ctx, h, r, kind)
	}

	kindLabel := kind.String()
	if err != nil && kind == "" {
		kindLabel = "invalid"
	}
	s.metrics.ForecastLatency.WithLabelValues(kindLabel).Observe(s.clock.Since(start).Seconds())
	s.metrics.Forecasts.WithLabelValues(regionLabel, kindLabel, outcome(err)).Inc()

	if err != nil {
		s.logger.Debug("forecast rejected", "region", req.Region, "backend", req.Backend, "error", err)
		return h, series.Forecast{}, err
	}
	return h, f, nil
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := s.CheckReadiness(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
