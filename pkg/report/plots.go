package report

import (
	"fmt"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const histogramBins = 50

func histogram(title string, xLabel string, values []float64, bins int) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = "Entries"
	if len(values) == 0 {
		p.X.Min, p.X.Max = 0, 1
		p.Y.Min, p.Y.Max = 0, 1
		return p, nil
	}
	h, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return nil, fmt.Errorf("error creating histogram %s: %w", title, err)
	}
	p.Add(h)
	return p, nil
}

// SavePlots draws the calorimeter energy, polar angle and multiplicity
// histograms side by side into a PNG file.
func (s *Summary) SavePlots(filename string) error {
	energy, err := histogram(fmt.Sprintf("Run %d calorimeter energy", s.Run), "E [MeV]", s.caloEnergies, histogramBins)
	if err != nil {
		return err
	}
	theta, err := histogram("Candidate polar angle", "theta [deg]", s.thetas, histogramBins)
	if err != nil {
		return err
	}
	multiplicity, err := histogram("Candidates per event", "n", s.multiplicities, 10)
	if err != nil {
		return err
	}

	img := vgimg.New(18*vg.Inch, 5*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 1, Cols: 3, PadX: vg.Millimeter, PadY: vg.Millimeter}
	plots := [][]*plot.Plot{{energy, theta, multiplicity}}
	canvases := plot.Align(plots, tiles, dc)
	for j, p := range plots[0] {
		p.Draw(canvases[0][j])
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("error creating plot file %s: %w", filename, err)
	}
	defer f.Close()
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		return fmt.Errorf("error writing plot file %s: %w", filename, err)
	}
	return f.Close()
}
