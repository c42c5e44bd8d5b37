package heatmap

import (
	"fmt"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"

	"github.com/kartoza/attention-is-key/internal/attention"
	"github.com/kartoza/attention-is-key/internal/render"
)

// Layout of the heatmap frame
const (
	CanvasSize = 760
	frameSize  = 600
	margin     = 80
	plotSize   = frameSize - 2*margin
	padding    = 0.05
	labelMax   = 8

	legendWidth  = 200
	legendHeight = 20

	// cells are drawn in a unit grid of gridUnit per band step, then scaled
	gridUnit = 100
)

// Cell is one matrix entry: token Row attends to token Col
type Cell struct {
	Row   int     `json:"row"`
	Col   int     `json:"col"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Value float64 `json:"value"`
	Fill  string  `json:"fill"`
}

// Label is an axis label; Text may be truncated, Full never is
type Label struct {
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Full  string  `json:"full"`
	Pos   float64 `json:"pos"`
}

// Scene is the computed heatmap for one layer
type Scene struct {
	Title     string   `json:"title"`
	Model     string   `json:"model"`
	Layer     int      `json:"layer"`
	Tokens    []string `json:"tokens"`
	Max       float64  `json:"max"`
	Step      float64  `json:"step"`
	Bandwidth float64  `json:"bandwidth"`
	Offset    float64  `json:"offset"`
	Cells     []Cell   `json:"cells"`
	XLabels   []Label  `json:"x_labels"`
	YLabels   []Label  `json:"y_labels"`
}

// ExportFilename names the SVG export for a 0-based layer index
func ExportFilename(layerIndex int) string {
	return fmt.Sprintf("attention-layer-%d.svg", layerIndex+1)
}

// CellID is the element id of cell (i, j)
func CellID(i, j int) string {
	return fmt.Sprintf("cell-%d-%d", i, j)
}

// Build computes the scene for a layer. It is a pure function of its inputs.
func Build(layer *attention.Layer, modelName string) (*Scene, error) {
	if layer == nil {
		return nil, attention.ErrRenderTargetMissing
	}
	if err := layer.Validate(); err != nil {
		return nil, err
	}

	n := layer.Size()
	step, offset := band(n, plotSize)
	max := layer.Max()
	if max == 0 {
		max = 1
	}

	s := &Scene{
		Title:     fmt.Sprintf("Attention Layer %d - %s", layer.Index+1, modelName),
		Model:     modelName,
		Layer:     layer.Index,
		Tokens:    append([]string(nil), layer.Tokens...),
		Max:       max,
		Step:      step,
		Bandwidth: step * (1 - padding),
		Offset:    offset,
		Cells:     make([]Cell, 0, n*n),
		XLabels:   make([]Label, n),
		YLabels:   make([]Label, n),
	}

	for i, row := range layer.Matrix {
		for j, v := range row {
			s.Cells = append(s.Cells, Cell{
				Row:   i,
				Col:   j,
				X:     offset + step*float64(j),
				Y:     offset + step*float64(i),
				Value: v,
				Fill:  Color(v, max),
			})
		}
	}

	for i, tok := range layer.Tokens {
		center := offset + step*float64(i) + s.Bandwidth/2
		label := Label{Index: i, Text: render.Truncate(tok, labelMax), Full: tok, Pos: center}
		s.XLabels[i] = label
		s.YLabels[i] = label
	}
	return s, nil
}

// band mirrors a band scale with equal inner and outer padding, centred
func band(n int, size float64) (step, offset float64) {
	if n == 0 {
		return 0, 0
	}
	step = size / math.Max(1, float64(n)-padding+2*padding)
	offset = (size - step*(float64(n)-padding)) / 2
	return step, offset
}

// Colors returns the cell fills as a row-major grid
func (s *Scene) Colors() [][]string {
	n := len(s.Tokens)
	out := make([][]string, n)
	for i := range out {
		out[i] = make([]string, n)
	}
	for _, c := range s.Cells {
		out[c.Row][c.Col] = c.Fill
	}
	return out
}

// Cell returns cell (i, j)
func (s *Scene) Cell(i, j int) (Cell, bool) {
	n := len(s.Tokens)
	if i < 0 || j < 0 || i >= n || j >= n {
		return Cell{}, false
	}
	return s.Cells[i*n+j], true
}

// TooltipFor returns the untruncated tokens and exact weight for a cell id
func (s *Scene) TooltipFor(target string) (render.Tooltip, bool) {
	var i, j int
	if _, err := fmt.Sscanf(target, "cell-%d-%d", &i, &j); err != nil {
		return render.Tooltip{}, false
	}
	c, ok := s.Cell(i, j)
	if !ok {
		return render.Tooltip{}, false
	}
	return render.Tooltip{
		Target: target,
		Lines: []string{
			"From: " + s.Tokens[i],
			"To: " + s.Tokens[j],
			fmt.Sprintf("Attention: %.3f", c.Value),
		},
	}, true
}

// WriteSVG draws the scene as a standalone SVG document
func (s *Scene) WriteSVG(w io.Writer) error {
	ew := &render.ErrWriter{W: w}
	canvas := svg.New(ew)
	canvas.Start(CanvasSize, CanvasSize)
	canvas.Rect(0, 0, CanvasSize, CanvasSize, "fill:#f9fafb")

	canvas.Def()
	stops := make([]svg.Offcolor, len(Ramp))
	for i, c := range Ramp {
		stops[i] = svg.Offcolor{Offset: uint8(math.Round(float64(i) * 100 / float64(len(Ramp)-1))), Color: c, Opacity: 1}
	}
	canvas.LinearGradient("legend-gradient", 0, 0, 100, 0, stops)
	canvas.DefEnd()

	canvas.Text(frameSize/2, 30, s.Title,
		render.Attr("text-anchor", "middle"),
		"font-size:18px;font-weight:bold;fill:"+render.TitleColor)

	canvas.Gtransform(fmt.Sprintf("translate(%d,%d)", margin, margin))

	// Cells in a scaled unit grid so fractional band sizes survive integer coordinates
	if len(s.Tokens) > 0 {
		scale := s.Step / gridUnit
		inset := int(math.Round(padding * gridUnit))
		canvas.Gtransform(fmt.Sprintf("translate(%s,%s) scale(%s)",
			render.Num(s.Offset), render.Num(s.Offset), render.Num(scale)))
		for _, c := range s.Cells {
			tip, _ := s.TooltipFor(CellID(c.Row, c.Col))
			canvas.Rect(c.Col*gridUnit, c.Row*gridUnit, gridUnit-inset, gridUnit-inset,
				render.Attr("id", CellID(c.Row, c.Col)),
				render.Attr("class", "cell"),
				render.TooltipAttr(tip),
				fmt.Sprintf("fill:%s;stroke:#333;stroke-width:%s", c.Fill, render.Num(0.3/scale)))
		}
		canvas.Gend()
	}

	for _, l := range s.XLabels {
		canvas.Text(0, 0, l.Text,
			render.Attr("class", "x-label"),
			render.Attr("text-anchor", "middle"),
			render.Attr("transform", fmt.Sprintf("translate(%s,%d) rotate(-45)", render.Num(l.Pos), plotSize+20)),
			"font-size:10px;fill:"+render.LabelColor)
	}
	for _, l := range s.YLabels {
		canvas.Text(-10, 0, l.Text,
			render.Attr("class", "y-label"),
			render.Attr("text-anchor", "end"),
			render.Attr("dominant-baseline", "middle"),
			render.Attr("transform", fmt.Sprintf("translate(0,%s)", render.Num(l.Pos))),
			"font-size:10px;fill:"+render.LabelColor)
	}

	legendX, legendY := plotSize-legendWidth, -50
	canvas.Rect(legendX, legendY, legendWidth, legendHeight, "fill:url(#legend-gradient);stroke:#666;stroke-width:1")
	canvas.Text(legendX, legendY-5, "Low", "font-size:12px;fill:"+render.LabelColor)
	canvas.Text(legendX+legendWidth, legendY-5, "High", render.Attr("text-anchor", "end"), "font-size:12px;fill:"+render.LabelColor)
	canvas.Text(legendX+legendWidth/2, legendY-5, "Attention Strength", render.Attr("text-anchor", "middle"), "font-size:12px;fill:"+render.LabelColor)

	canvas.Gend()
	canvas.End()
	return ew.Err
}

// Render builds the scene for layer and mounts it, replacing whatever the
// surface showed before. Missing inputs are a no-op.
func Render(surface *render.Surface, layer *attention.Layer, modelName string) error {
	if surface == nil || layer == nil {
		return attention.ErrRenderTargetMissing
	}
	scene, err := Build(layer, modelName)
	if err != nil {
		return err
	}
	return surface.Mount(scene)
}
