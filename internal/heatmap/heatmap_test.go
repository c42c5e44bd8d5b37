package heatmap

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/attention-is-key/internal/attention"
	"github.com/kartoza/attention-is-key/internal/render"
)

func testLayer(index int) *attention.Layer {
	return &attention.Layer{
		Index:  index,
		Tokens: []string{"I", "walk", "alone,", "extraordinarily"},
		Matrix: [][]float64{
			{0.10, 0.20, 0.30, 0.40},
			{0.50, 0.60, 0.70, 0.80},
			{0.05, 0.15, 0.25, 0.35},
			{0.00, 0.45, 0.55, 0.65},
		},
	}
}

func TestColorRampEnds(t *testing.T) {
	assert.Equal(t, "#0d0887", Color(0, 1))
	assert.Equal(t, "#fcffa4", Color(1, 1))
	assert.Equal(t, "#fcffa4", Color(0.8, 0.8))
	assert.Equal(t, "#0d0887", Color(0, 0))
}

func TestColorStops(t *testing.T) {
	for i, hex := range Ramp {
		v := float64(i) / float64(len(Ramp)-1)
		assert.Equal(t, hex, Color(v, 1), "stop %d", i)
	}
}

func TestColorIsMatrixRelative(t *testing.T) {
	// the same weight maps to different colours under different maxima
	assert.NotEqual(t, Color(0.4, 0.8), Color(0.4, 0.5))
	// equal ratios map to equal colours
	assert.Equal(t, Color(0.25, 0.5), Color(0.5, 1))
}

func TestBuild(t *testing.T) {
	scene, err := Build(testLayer(2), "bert-base-uncased")
	require.NoError(t, err)

	assert.Equal(t, "Attention Layer 3 - bert-base-uncased", scene.Title)
	assert.Len(t, scene.Cells, 16)
	assert.Equal(t, 0.8, scene.Max)

	// brightest cell is the matrix maximum
	c, ok := scene.Cell(1, 3)
	require.True(t, ok)
	assert.Equal(t, "#fcffa4", c.Fill)

	// cells share a uniform size and sit on a regular grid
	c00, _ := scene.Cell(0, 0)
	c01, _ := scene.Cell(0, 1)
	c10, _ := scene.Cell(1, 0)
	assert.InDelta(t, scene.Step, c01.X-c00.X, 1e-9)
	assert.InDelta(t, scene.Step, c10.Y-c00.Y, 1e-9)
	assert.InDelta(t, float64(plotSize), 2*scene.Offset+scene.Step*3+scene.Bandwidth, 1e-9)
}

func TestBuildLabelsTruncated(t *testing.T) {
	scene, err := Build(testLayer(0), "gpt2")
	require.NoError(t, err)

	assert.Equal(t, "extraord...", scene.XLabels[3].Text)
	assert.Equal(t, "extraord...", scene.YLabels[3].Text)
	assert.Equal(t, "extraordinarily", scene.XLabels[3].Full)
	assert.Equal(t, "walk", scene.XLabels[1].Text)

	tip, ok := scene.TooltipFor(CellID(3, 3))
	require.True(t, ok)
	assert.Equal(t, []string{"From: extraordinarily", "To: extraordinarily", "Attention: 0.650"}, tip.Lines)
}

func TestBuildIsPure(t *testing.T) {
	a, err := Build(testLayer(1), "gpt2")
	require.NoError(t, err)
	b, err := Build(testLayer(1), "gpt2")
	require.NoError(t, err)

	assert.Equal(t, a.Colors(), b.Colors())
	assert.Equal(t, a.XLabels, b.XLabels)

	var sa, sb bytes.Buffer
	require.NoError(t, a.WriteSVG(&sa))
	require.NoError(t, b.WriteSVG(&sb))
	assert.Equal(t, sa.String(), sb.String())
}

func TestBuildRejectsMissingOrRagged(t *testing.T) {
	_, err := Build(nil, "gpt2")
	assert.ErrorIs(t, err, attention.ErrRenderTargetMissing)

	ragged := testLayer(0)
	ragged.Matrix[2] = ragged.Matrix[2][:2]
	_, err = Build(ragged, "gpt2")
	assert.Error(t, err)
}

func TestHoverSingleTooltip(t *testing.T) {
	surface := render.NewSurface()
	require.NoError(t, Render(surface, testLayer(0), "gpt2"))

	require.True(t, surface.HoverEnter(CellID(0, 1)))
	require.True(t, surface.HoverEnter(CellID(2, 3)))

	tips := surface.Tooltips()
	require.Len(t, tips, 1)
	assert.Equal(t, CellID(2, 3), tips[0].Target)
	assert.Equal(t, "From: alone,", tips[0].Lines[0])
	assert.Equal(t, "To: extraordinarily", tips[0].Lines[1])
	assert.Equal(t, "Attention: 0.350", tips[0].Lines[2])

	surface.HoverExit()
	assert.Empty(t, surface.Tooltips())

	// hovering outside the grid leaves nothing behind
	surface.HoverEnter(CellID(0, 0))
	assert.False(t, surface.HoverEnter(CellID(9, 9)))
	assert.Empty(t, surface.Tooltips())
}

func TestRerenderReplacesScene(t *testing.T) {
	surface := render.NewSurface()
	require.NoError(t, Render(surface, testLayer(0), "gpt2"))
	surface.HoverEnter(CellID(1, 1))

	require.NoError(t, Render(surface, testLayer(5), "gpt2"))
	scene := surface.Scene().(*Scene)
	assert.Equal(t, 5, scene.Layer)
	assert.Empty(t, surface.Tooltips())

	out, err := surface.Export()
	require.NoError(t, err)
	assert.Contains(t, string(out), "Attention Layer 6 - gpt2")
	assert.NotContains(t, string(out), "Attention Layer 1 - gpt2")
}

func TestRenderMissingTarget(t *testing.T) {
	assert.ErrorIs(t, Render(nil, testLayer(0), "gpt2"), attention.ErrRenderTargetMissing)
	assert.ErrorIs(t, Render(render.NewSurface(), nil, "gpt2"), attention.ErrRenderTargetMissing)

	_, err := render.NewSurface().Export()
	assert.ErrorIs(t, err, attention.ErrRenderTargetMissing)
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "attention-layer-3.svg", ExportFilename(2))
	assert.Equal(t, "attention-layer-1.svg", ExportFilename(0))
}

func TestWriteSVGWellFormed(t *testing.T) {
	layer := testLayer(0)
	layer.Tokens[0] = `<b>&"quoted"`
	scene, err := Build(layer, "gpt2")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, scene.WriteSVG(&buf))

	dec := xml.NewDecoder(&buf)
	rects := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "rect" {
			for _, a := range se.Attr {
				if a.Name.Local == "class" && a.Value == "cell" {
					rects++
				}
			}
		}
	}
	assert.Equal(t, 16, rects)
	assert.True(t, strings.HasPrefix(buf.String(), "<?xml"))
}
