package main

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// plotLatency renders one bar group per structure across the measured
// operations, next to the CSV for quick visual comparison.
func plotLatency(results []BenchResult, path string) error {
	byName := make(map[string][]float64)
	var names []string
	var ops []string
	seenOp := make(map[string]bool)
	for _, r := range results {
		if _, ok := byName[r.Name]; !ok {
			names = append(names, r.Name)
		}
		byName[r.Name] = append(byName[r.Name], float64(r.LatencyNs))
		if !seenOp[r.Operation] {
			seenOp[r.Operation] = true
			ops = append(ops, r.Operation)
		}
	}

	p := plot.New()
	p.Title.Text = "Per-operation latency"
	p.Y.Label.Text = "ns/op"

	barWidth := vg.Points(18)
	for i, name := range names {
		bars, err := plotter.NewBarChart(plotter.Values(byName[name]), barWidth)
		if err != nil {
			return err
		}
		bars.LineStyle.Width = 0
		bars.Color = plotutil.Color(i)
		bars.Offset = barWidth * vg.Length(i-len(names)/2)
		p.Add(bars)
		p.Legend.Add(name, bars)
	}
	p.Legend.Top = true
	p.NominalX(ops...)

	return p.Save(7*vg.Inch, 4*vg.Inch, path)
}
