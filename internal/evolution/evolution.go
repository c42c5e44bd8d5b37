package evolution

import (
	"fmt"
	"io"
	"math"
	"strings"

	svg "github.com/ajstarks/svgo"
	"gonum.org/v1/gonum/interp"

	"github.com/kartoza/attention-is-key/internal/attention"
	"github.com/kartoza/attention-is-key/internal/render"
)

// Chart layout
const (
	chartWidth   = 800
	chartHeight  = 400
	marginTop    = 40
	marginRight  = 40
	marginBottom = 60
	marginLeft   = 60
	plotWidth    = chartWidth - marginLeft - marginRight
	plotHeight   = chartHeight - marginTop - marginBottom

	markerRadius   = 6
	samplesPerSpan = 16

	summaryHeight = 80
	entryHeight   = 44

	// ExportFilename names the SVG export of the chart
	ExportFilename = "phrase-evolution.svg"
)

// Trend labels
const (
	TrendIncreasing = "Increasing"
	TrendDecreasing = "Decreasing"
	TrendFlat       = "Flat"
)

// Point is a marker on the chart
type Point struct {
	Occurrence int     `json:"occurrence"`
	Strength   float64 `json:"strength"`
	Context    string  `json:"context"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

// Entry is one row of the contextual occurrence list
type Entry struct {
	Occurrence int    `json:"occurrence"`
	Line       int    `json:"line"`
	Context    string `json:"context"`
}

// Tick is an axis tick in plot coordinates
type Tick struct {
	Label string  `json:"label"`
	Pos   float64 `json:"pos"`
}

// Scene is the computed phrase evolution chart and list
type Scene struct {
	Title        string         `json:"title"`
	TargetPhrase string         `json:"target_phrase"`
	Total        int            `json:"total"`
	Trend        string         `json:"trend"`
	Points       []Point        `json:"points"`
	Curve        []render.Point `json:"curve"`
	XTicks       []Tick         `json:"x_ticks"`
	YTicks       []Tick         `json:"y_ticks"`
	Entries      []Entry        `json:"entries"`
}

// PointID is the element id of the marker for occurrence n
func PointID(n int) string {
	return fmt.Sprintf("point-%d", n)
}

// Build computes the chart for an evolution result. It is a pure function.
func Build(ev *attention.PhraseEvolution) (*Scene, error) {
	if ev == nil {
		return nil, attention.ErrRenderTargetMissing
	}
	if err := ev.Validate(math.MaxInt); err != nil {
		return nil, err
	}

	total := ev.Total()
	s := &Scene{
		Title:        fmt.Sprintf("Evolution of %q", ev.TargetPhrase),
		TargetPhrase: ev.TargetPhrase,
		Total:        total,
		Trend:        trend(ev.Occurrences),
		Points:       make([]Point, total),
		Entries:      make([]Entry, total),
		XTicks:       make([]Tick, total),
	}

	for i, occ := range ev.Occurrences {
		s.Points[i] = Point{
			Occurrence: occ.Index,
			Strength:   occ.Strength,
			Context:    occ.ContextLine,
			X:          xScale(float64(occ.Index), total),
			Y:          yScale(occ.Strength),
		}
		s.Entries[i] = Entry{Occurrence: occ.Index, Line: occ.LineIndex + 1, Context: occ.ContextLine}
		s.XTicks[i] = Tick{Label: fmt.Sprintf("#%d", occ.Index), Pos: xScale(float64(occ.Index), total)}
	}
	for p := 0; p <= 10; p++ {
		v := float64(p) / 10
		s.YTicks = append(s.YTicks, Tick{Label: fmt.Sprintf("%d%%", p*10), Pos: yScale(v)})
	}

	curve, err := monotoneCurve(ev.Occurrences, total)
	if err != nil {
		return nil, err
	}
	s.Curve = curve
	return s, nil
}

func xScale(occurrence float64, total int) float64 {
	if total <= 1 {
		return plotWidth / 2
	}
	return (occurrence - 1) / float64(total-1) * plotWidth
}

func yScale(strength float64) float64 {
	return plotHeight - strength*plotHeight
}

// monotoneCurve samples a Fritsch-Butland interpolant through the samples.
// The interpolant preserves monotonicity, so it never overshoots the samples.
func monotoneCurve(occurrences []attention.Occurrence, total int) ([]render.Point, error) {
	n := len(occurrences)
	switch n {
	case 0:
		return nil, nil
	case 1:
		o := occurrences[0]
		return []render.Point{{X: xScale(float64(o.Index), total), Y: yScale(o.Strength)}}, nil
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, o := range occurrences {
		xs[i] = float64(o.Index)
		ys[i] = o.Strength
	}

	var fb interp.FritschButland
	if err := fb.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("fit curve: %w", err)
	}

	points := make([]render.Point, 0, (n-1)*samplesPerSpan+1)
	for i := 0; i < n-1; i++ {
		for k := 0; k < samplesPerSpan; k++ {
			x := xs[i] + (xs[i+1]-xs[i])*float64(k)/samplesPerSpan
			points = append(points, render.Point{X: xScale(x, total), Y: yScale(clamp01(fb.Predict(x)))})
		}
	}
	points = append(points, render.Point{X: xScale(xs[n-1], total), Y: yScale(ys[n-1])})
	return points, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func trend(occurrences []attention.Occurrence) string {
	if len(occurrences) < 2 {
		return TrendFlat
	}
	diff := occurrences[len(occurrences)-1].Strength - occurrences[0].Strength
	switch {
	case diff > 0.01:
		return TrendIncreasing
	case diff < -0.01:
		return TrendDecreasing
	default:
		return TrendFlat
	}
}

// TooltipFor returns the occurrence number, strength and context for a marker id
func (s *Scene) TooltipFor(target string) (render.Tooltip, bool) {
	var n int
	if _, err := fmt.Sscanf(target, "point-%d", &n); err != nil {
		return render.Tooltip{}, false
	}
	if n < 1 || n > len(s.Points) {
		return render.Tooltip{}, false
	}
	p := s.Points[n-1]
	return render.Tooltip{
		Target: target,
		Lines: []string{
			fmt.Sprintf("Occurrence %d", p.Occurrence),
			fmt.Sprintf("Attention Strength: %.1f%%", p.Strength*100),
			fmt.Sprintf("Context: \"%s\"", p.Context),
		},
	}, true
}

// Height is the full SVG height including the summary and occurrence list
func (s *Scene) Height() int {
	return chartHeight + summaryHeight + 30 + entryHeight*len(s.Entries) + 20
}

// WriteSVG draws the chart, summary and occurrence list
func (s *Scene) WriteSVG(w io.Writer) error {
	ew := &render.ErrWriter{W: w}
	canvas := svg.New(ew)
	canvas.Start(chartWidth, s.Height())
	canvas.Rect(0, 0, chartWidth, s.Height(), "fill:#f9fafb")

	canvas.Def()
	canvas.LinearGradient("attention-gradient", 0, 100, 0, 0, []svg.Offcolor{
		{Offset: 0, Color: render.AccentColor, Opacity: 0.1},
		{Offset: 100, Color: render.AccentColor, Opacity: 0.8},
	})
	canvas.DefEnd()

	canvas.Text(chartWidth/2, 25, s.Title,
		render.Attr("text-anchor", "middle"),
		"font-size:18px;font-weight:bold;fill:"+render.TitleColor)

	canvas.Gtransform(fmt.Sprintf("translate(%d,%d)", marginLeft, marginTop))

	base := float64(plotHeight)
	if len(s.Curve) > 1 {
		canvas.Path(render.PathD(s.Curve, &base), render.Attr("class", "area"), "fill:url(#attention-gradient)")
		canvas.Path(render.PathD(s.Curve, nil), render.Attr("class", "line"),
			"fill:none;stroke:"+render.AccentColor+";stroke-width:3")
	}

	// axes
	canvas.Line(0, plotHeight, plotWidth, plotHeight, "stroke:"+render.AxisColor)
	canvas.Line(0, 0, 0, plotHeight, "stroke:"+render.AxisColor)
	for _, t := range s.XTicks {
		canvas.Text(0, 0, t.Label,
			render.Attr("text-anchor", "middle"),
			render.Attr("transform", fmt.Sprintf("translate(%s,%d)", render.Num(t.Pos), plotHeight+18)),
			"font-size:10px;fill:"+render.LabelColor)
	}
	for _, t := range s.YTicks {
		canvas.Text(-8, 0, t.Label,
			render.Attr("text-anchor", "end"),
			render.Attr("dominant-baseline", "middle"),
			render.Attr("transform", fmt.Sprintf("translate(0,%s)", render.Num(t.Pos))),
			"font-size:10px;fill:"+render.LabelColor)
	}
	canvas.Text(plotWidth/2, plotHeight+40, "Phrase Occurrence",
		render.Attr("text-anchor", "middle"), "font-size:14px;fill:"+render.LabelColor)
	canvas.Text(0, 0, "Attention Strength",
		render.Attr("text-anchor", "middle"),
		render.Attr("transform", fmt.Sprintf("translate(-40,%d) rotate(-90)", plotHeight/2)),
		"font-size:14px;fill:"+render.LabelColor)

	for _, p := range s.Points {
		tip, _ := s.TooltipFor(PointID(p.Occurrence))
		canvas.Circle(0, 0, markerRadius,
			render.Attr("id", PointID(p.Occurrence)),
			render.Attr("class", "point"),
			render.Attr("transform", fmt.Sprintf("translate(%s,%s)", render.Num(p.X), render.Num(p.Y))),
			render.TooltipAttr(tip),
			"fill:"+render.AccentColor+";stroke:white;stroke-width:2")
	}
	canvas.Gend()

	s.writeSummary(canvas, chartHeight)
	s.writeEntries(canvas, chartHeight+summaryHeight)

	canvas.End()
	return ew.Err
}

func (s *Scene) writeSummary(canvas *svg.SVG, top int) {
	style := "font-size:13px;fill:" + render.LabelColor
	canvas.Text(marginLeft, top+10, "Analysis Summary", "font-size:15px;font-weight:bold;fill:"+render.TitleColor)
	canvas.Text(marginLeft, top+32, fmt.Sprintf("Target Phrase: %q", s.TargetPhrase), style)
	canvas.Text(marginLeft, top+50, fmt.Sprintf("Total Occurrences: %d", s.Total), style)
	canvas.Text(marginLeft, top+68, "Attention Trend: "+s.Trend, style)
}

func (s *Scene) writeEntries(canvas *svg.SVG, top int) {
	canvas.Text(marginLeft, top+10, "Contextual Occurrences", "font-size:15px;font-weight:bold;fill:"+render.TitleColor)
	for i, e := range s.Entries {
		y := top + 30 + i*entryHeight
		canvas.Rect(marginLeft, y, 4, entryHeight-8, "fill:"+render.AccentColor)
		canvas.Text(marginLeft+14, y+14, fmt.Sprintf("#%d  Line %d", e.Occurrence, e.Line),
			render.Attr("class", "entry-header"), "font-size:12px;fill:#6b7280")
		canvas.Text(marginLeft+14, y+30, e.Context,
			render.Attr("class", "entry-context"), "font-size:12px;font-family:monospace;fill:#111827")
	}
}

// Lines returns the occurrence list as plain text, one entry per line
func (s *Scene) Lines() []string {
	out := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		out[i] = fmt.Sprintf("#%d Line %d: %s", e.Occurrence, e.Line, strings.TrimSpace(e.Context))
	}
	return out
}

// Render builds the scene and mounts it, replacing the previous drawing
func Render(surface *render.Surface, ev *attention.PhraseEvolution) error {
	if surface == nil || ev == nil {
		return attention.ErrRenderTargetMissing
	}
	scene, err := Build(ev)
	if err != nil {
		return err
	}
	return surface.Mount(scene)
}
