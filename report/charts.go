package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ChartKind selects how a chart is drawn.
type ChartKind int

const (
	ChartLine ChartKind = iota
	ChartBar
	ChartScatter
)

// Point is one observation. Line and bar charts place it by Label; scatter
// charts use X and keep Label as the point name.
type Point struct {
	Label string
	X     float64
	Y     float64
}

// Series is a named list of points.
type Series struct {
	Name   string
	Points []Point
}

// Chart describes one chart of the charts page.
type Chart struct {
	Title  string
	XLabel string
	YLabel string
	Kind   ChartKind
	Series []Series
}

// MonthlyReviewsChart plots monthly review counts per brand.
func MonthlyReviewsChart(brands []BrandActivity) Chart {
	c := Chart{Title: "Monthly reviews of the top brands", XLabel: "Month", YLabel: "Reviews", Kind: ChartLine}
	for _, ba := range brands {
		s := Series{Name: ba.Brand}
		for _, pc := range ba.Monthly {
			s.Points = append(s.Points, Point{Label: pc.Period, Y: float64(pc.Count)})
		}
		c.Series = append(c.Series, s)
	}
	return c
}

// MonthlyRatingChart plots the monthly average rating of each brand.
func MonthlyRatingChart(brands []BrandRating, from, to int) Chart {
	c := Chart{
		Title:  fmt.Sprintf("Monthly average rating of the top rated brands %d-%d", from, to),
		XLabel: "Month",
		YLabel: "Average rating",
		Kind:   ChartLine,
	}
	for _, br := range brands {
		s := Series{Name: br.Brand}
		for _, pa := range br.Monthly {
			s.Points = append(s.Points, Point{Label: pa.Period, Y: pa.Average})
		}
		c.Series = append(c.Series, s)
	}
	return c
}

// KeywordChart plots reviews mentioning price per bucket.
func KeywordChart(counts []PeriodCount, bucket string) Chart {
	s := Series{Name: "Mentions"}
	for _, pc := range counts {
		s.Points = append(s.Points, Point{Label: pc.Period, Y: float64(pc.Count)})
	}
	return Chart{
		Title:  "Reviews mentioning price or cost",
		XLabel: bucket,
		YLabel: "Reviews",
		Kind:   ChartBar,
		Series: []Series{s},
	}
}

// TitleAverageChart plots listed review totals against stored average rating.
func TitleAverageChart(averages []TitleAverage) Chart {
	s := Series{Name: "Titles"}
	for _, ta := range averages {
		s.Points = append(s.Points, Point{Label: ta.Title, X: float64(ta.TotalReviews), Y: ta.AverageRating})
	}
	return Chart{
		Title:  "Total reviews against average rating",
		XLabel: "Total reviews",
		YLabel: "Average rating",
		Kind:   ChartScatter,
		Series: []Series{s},
	}
}

// RenderCharts writes all charts to w as one HTML page.
func RenderCharts(w io.Writer, list []Chart) error {
	if len(list) == 0 {
		return fmt.Errorf("no charts to render")
	}
	page := components.NewPage()
	page.PageTitle = "Phone reviews"

	for _, c := range list {
		global := []charts.GlobalOpts{
			charts.WithTitleOpts(opts.Title{Title: c.Title}),
			charts.WithXAxisOpts(opts.XAxis{Name: c.XLabel}),
			charts.WithYAxisOpts(opts.YAxis{Name: c.YLabel}),
		}

		switch c.Kind {
		case ChartLine:
			line := charts.NewLine()
			line.SetGlobalOptions(global...)
			labels := categories(c.Series)
			line.SetXAxis(labels)
			for _, s := range c.Series {
				values := aligned(labels, s)
				data := make([]opts.LineData, len(values))
				for i, v := range values {
					data[i] = opts.LineData{Value: v}
				}
				line.AddSeries(s.Name, data)
			}
			page.AddCharts(line)
		case ChartBar:
			bar := charts.NewBar()
			bar.SetGlobalOptions(global...)
			labels := categories(c.Series)
			bar.SetXAxis(labels)
			for _, s := range c.Series {
				values := aligned(labels, s)
				data := make([]opts.BarData, len(values))
				for i, v := range values {
					data[i] = opts.BarData{Value: v}
				}
				bar.AddSeries(s.Name, data)
			}
			page.AddCharts(bar)
		case ChartScatter:
			scatter := charts.NewScatter()
			global[1] = charts.WithXAxisOpts(opts.XAxis{Name: c.XLabel, Type: "value"})
			scatter.SetGlobalOptions(global...)
			for _, s := range c.Series {
				data := make([]opts.ScatterData, len(s.Points))
				for i, p := range s.Points {
					data[i] = opts.ScatterData{Name: p.Label, Value: []any{p.X, p.Y}}
				}
				scatter.AddSeries(s.Name, data)
			}
			page.AddCharts(scatter)
		default:
			return fmt.Errorf("chart %q: unknown kind %d", c.Title, c.Kind)
		}
	}

	return page.Render(w)
}

// categories is the sorted union of labels across series. YYYY and YYYY-MM
// labels sort chronologically.
func categories(series []Series) []string {
	seen := make(map[string]bool)
	var labels []string
	for _, s := range series {
		for _, p := range s.Points {
			if !seen[p.Label] {
				seen[p.Label] = true
				labels = append(labels, p.Label)
			}
		}
	}
	sort.Strings(labels)
	return labels
}

// aligned maps a series onto labels; gaps become "-", which echarts draws as
// missing data.
func aligned(labels []string, s Series) []any {
	byLabel := make(map[string]float64, len(s.Points))
	for _, p := range s.Points {
		byLabel[p.Label] = p.Y
	}
	out := make([]any, len(labels))
	for i, label := range labels {
		if y, ok := byLabel[label]; ok {
			out[i] = y
		} else {
			out[i] = "-"
		}
	}
	return out
}
