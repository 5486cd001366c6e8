package forecaster

import (
	"fmt"
	"io"

	"github.com/aouyang1/go-ndvi-forecaster/series"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// StepLabels returns the x axis labels of a historical series followed by its forecast where t
// is the most recent observation.
func StepLabels() []string {
	labels := make([]string, 0, series.HistoryLen+series.Horizon)
	for i := series.HistoryLen - 1; i > 0; i-- {
		labels = append(labels, fmt.Sprintf("t-%d", i))
	}
	labels = append(labels, "t")
	for i := 1; i <= series.Horizon; i++ {
		labels = append(labels, fmt.Sprintf("t+%d", i))
	}
	return labels
}

// LineForecast generates an echart line chart of the historical series and its forecast. The
// forecast line starts at the last observation so both lines connect. Steps a line does not
// cover are rendered as gaps.
func LineForecast(title string, h series.Historical, f series.Forecast) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: title,
			},
		),
		charts.WithYAxisOpts(
			opts.YAxis{
				Name: "NDVI",
				Min:  series.MinNDVI,
				Max:  series.MaxNDVI,
			},
		),
		charts.WithTooltipOpts(
			opts.Tooltip{
				Show:    opts.Bool(true),
				Trigger: "axis",
			},
		),
	)

	n := series.HistoryLen + series.Horizon
	lineDataActual := make([]opts.LineData, 0, n)
	lineDataForecast := make([]opts.LineData, 0, n)
	for i := 0; i < series.HistoryLen; i++ {
		lineDataActual = append(lineDataActual, opts.LineData{Value: h[i]})
		if i == series.HistoryLen-1 {
			lineDataForecast = append(lineDataForecast, opts.LineData{Value: h[i]})
			continue
		}
		lineDataForecast = append(lineDataForecast, opts.LineData{Value: "-"})
	}
	for i := 0; i < series.Horizon; i++ {
		lineDataActual = append(lineDataActual, opts.LineData{Value: "-"})
		lineDataForecast = append(lineDataForecast, opts.LineData{Value: f[i]})
	}

	line.SetXAxis(StepLabels()).
		AddSeries("Actual", lineDataActual).
		AddSeries("Forecast", lineDataForecast)
	return line
}

// PlotForecast renders an html page with the forecast chart to w
func PlotForecast(w io.Writer, title string, h series.Historical, f series.Forecast) error {
	page := components.NewPage()
	page.AddCharts(
		LineForecast(title, h, f),
	)
	return page.Render(w)
}
