// Package report summarizes and charts the step results of a session.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoData is returned when there is nothing to chart.
var ErrNoData = errors.New("no frame scores to chart")

// Step is one completed exercise step.
type Step struct {
	PoseID      string
	StableScore *int
	Scores      []int
}

// Summary aggregates the stable scores of a session.
type Summary struct {
	Steps  int     `json:"steps"`
	Scored int     `json:"scored"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Best   int     `json:"best"`
	Worst  int     `json:"worst"`
}

// Summarize computes statistics over the steps that produced a stable
// score.
func Summarize(steps []Step) Summary {
	s := Summary{Steps: len(steps)}

	var scores []float64
	for _, st := range steps {
		if st.StableScore == nil {
			continue
		}
		v := *st.StableScore
		if len(scores) == 0 || v > s.Best {
			s.Best = v
		}
		if len(scores) == 0 || v < s.Worst {
			s.Worst = v
		}
		scores = append(scores, float64(v))
	}

	s.Scored = len(scores)
	switch len(scores) {
	case 0:
	case 1:
		s.Mean = scores[0]
	default:
		s.Mean, s.StdDev = stat.MeanStdDev(scores, nil)
	}
	return s
}

var (
	frameColor  = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	stableColor = color.RGBA{R: 220, G: 60, B: 60, A: 255}
)

// Chart plots every step's frame scores back to back, with each step's
// stable score drawn as a flat line over its frames.
func Chart(steps []Step, title string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Score"
	p.Y.Min = 0
	p.Y.Max = 100
	p.Add(plotter.NewGrid())

	offset := 0
	legend := false
	for _, st := range steps {
		if len(st.Scores) == 0 {
			continue
		}

		pts := make(plotter.XYs, len(st.Scores))
		for i, v := range st.Scores {
			pts[i] = plotter.XY{X: float64(offset + i), Y: float64(v)}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", st.PoseID, err)
		}
		line.Color = frameColor
		line.Width = vg.Points(1)
		p.Add(line)

		if st.StableScore != nil {
			y := float64(*st.StableScore)
			stable, err := plotter.NewLine(plotter.XYs{
				{X: float64(offset), Y: y},
				{X: float64(offset + len(st.Scores) - 1), Y: y},
			})
			if err != nil {
				return nil, fmt.Errorf("step %s: %w", st.PoseID, err)
			}
			stable.Color = stableColor
			stable.Width = vg.Points(2)
			p.Add(stable)

			if !legend {
				p.Legend.Add("frame score", line)
				p.Legend.Add("stable score", stable)
				legend = true
			}
		}

		offset += len(st.Scores)
	}

	if offset == 0 {
		return nil, ErrNoData
	}

	p.Legend.Top = true
	return p, nil
}

// WritePNG renders the chart of steps as a PNG image.
func WritePNG(w io.Writer, steps []Step, title string, width, height vg.Length) error {
	p, err := Chart(steps, title)
	if err != nil {
		return err
	}

	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	return nil
}
