package evaluation

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/mlkit/pkg/errors"
)

// Entry is the result for one candidate.
type Entry struct {
	Name       string
	TrainScore float64
	TestScore  float64

	// Set only in tuned mode.
	Tuned       bool
	BestParams  map[string]interface{}
	BestCVScore float64
}

// Report holds one entry per candidate in candidate order.
type Report struct {
	RunID   string
	Entries []Entry
}

// Scores returns candidate name → test R².
func (r *Report) Scores() map[string]float64 {
	scores := make(map[string]float64, len(r.Entries))
	for _, e := range r.Entries {
		scores[e.Name] = e.TestScore
	}
	return scores
}

// Get returns the entry for name.
func (r *Report) Get(name string) (Entry, bool) {
	for _, e := range r.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Best returns the entry with the highest test score. Ties go to the
// earliest candidate; NaN scores never win.
func (r *Report) Best() (Entry, error) {
	best := -1
	for i, e := range r.Entries {
		if math.IsNaN(e.TestScore) {
			continue
		}
		if best < 0 || e.TestScore > r.Entries[best].TestScore {
			best = i
		}
	}
	if best < 0 {
		return Entry{}, errors.WithStack(errors.ErrEmptyReport)
	}
	return r.Entries[best], nil
}

// WriteTable writes an aligned text table of the report to w.
func (r *Report) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CANDIDATE\tTRAIN R2\tTEST R2\tCV SCORE\tBEST PARAMS")
	for _, e := range r.Entries {
		cv, params := "-", "-"
		if e.Tuned {
			cv = fmt.Sprintf("%.4f", e.BestCVScore)
			params = formatParams(e.BestParams)
		}
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%s\t%s\n", e.Name, e.TrainScore, e.TestScore, cv, params)
	}
	return tw.Flush()
}

func formatParams(params map[string]interface{}) string {
	if len(params) == 0 {
		return "{}"
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%v", name, params[name])
	}
	return strings.Join(parts, " ")
}

// Plot renders grouped bars of train and test R² per candidate. The image
// format follows the file extension (.png, .svg, .pdf, ...).
func (r *Report) Plot(path string) error {
	if len(r.Entries) == 0 {
		return errors.WithStack(errors.ErrEmptyReport)
	}

	p := plot.New()
	p.Title.Text = "Model evaluation"
	p.Y.Label.Text = "R²"

	train := make(plotter.Values, len(r.Entries))
	test := make(plotter.Values, len(r.Entries))
	names := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		train[i] = e.TrainScore
		test[i] = e.TestScore
		names[i] = e.Name
	}

	width := vg.Points(18)
	trainBars, err := plotter.NewBarChart(train, width)
	if err != nil {
		return errors.Wrap(err, "train bars")
	}
	trainBars.LineStyle.Width = vg.Length(0)
	trainBars.Color = plotutil.Color(0)
	trainBars.Offset = -width / 2

	testBars, err := plotter.NewBarChart(test, width)
	if err != nil {
		return errors.Wrap(err, "test bars")
	}
	testBars.LineStyle.Width = vg.Length(0)
	testBars.Color = plotutil.Color(1)
	testBars.Offset = width / 2

	p.Add(trainBars, testBars, plotter.NewGrid())
	p.Legend.Add("train", trainBars)
	p.Legend.Add("test", testBars)
	p.Legend.Top = true
	p.NominalX(names...)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create plot directory")
	}
	plotWidth := vg.Length(len(r.Entries))*3*width + 2*vg.Inch
	if err := p.Save(plotWidth, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save plot %s", filepath.Base(path))
	}
	return nil
}
