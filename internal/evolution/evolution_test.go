package evolution

import (
	"bytes"
	"encoding/xml"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/attention-is-key/internal/attention"
	"github.com/kartoza/attention-is-key/internal/render"
)

func testEvolution(strengths ...float64) *attention.PhraseEvolution {
	ev := &attention.PhraseEvolution{TargetPhrase: "walk alone"}
	for i, s := range strengths {
		ev.Occurrences = append(ev.Occurrences, attention.Occurrence{
			Index:       i + 1,
			LineIndex:   i * 2,
			ContextLine: "I walk alone, line " + string(rune('A'+i)),
			Strength:    s,
		})
	}
	return ev
}

func TestBuildPoints(t *testing.T) {
	scene, err := Build(testEvolution(0.3, 0.55, 0.9))
	require.NoError(t, err)

	require.Len(t, scene.Points, 3)
	for i, p := range scene.Points {
		assert.Equal(t, i+1, p.Occurrence)
	}
	assert.Equal(t, 0.0, scene.Points[0].X)
	assert.Equal(t, float64(plotWidth), scene.Points[2].X)
	assert.InDelta(t, plotHeight-0.9*plotHeight, scene.Points[2].Y, 1e-9)

	labels := make([]string, len(scene.XTicks))
	for i, tk := range scene.XTicks {
		labels[i] = tk.Label
	}
	assert.Equal(t, []string{"#1", "#2", "#3"}, labels)
	assert.Len(t, scene.YTicks, 11)
	assert.Equal(t, "0%", scene.YTicks[0].Label)
	assert.Equal(t, "100%", scene.YTicks[10].Label)
	assert.Equal(t, TrendIncreasing, scene.Trend)
}

func TestCurveDoesNotOvershoot(t *testing.T) {
	strengths := []float64{0.2, 0.8, 0.8, 0.81, 1.0, 0.3}
	scene, err := Build(testEvolution(strengths...))
	require.NoError(t, err)
	require.NotEmpty(t, scene.Curve)

	// between each pair of samples the curve stays inside their range
	for i := 0; i < len(strengths)-1; i++ {
		lo, hi := strengths[i], strengths[i+1]
		if lo > hi {
			lo, hi = hi, lo
		}
		x0, x1 := scene.Points[i].X, scene.Points[i+1].X
		for _, p := range scene.Curve {
			if p.X < x0 || p.X > x1 {
				continue
			}
			v := (plotHeight - p.Y) / plotHeight
			assert.GreaterOrEqual(t, v, lo-1e-9, "segment %d x=%v", i, p.X)
			assert.LessOrEqual(t, v, hi+1e-9, "segment %d x=%v", i, p.X)
		}
	}

	first, last := scene.Curve[0], scene.Curve[len(scene.Curve)-1]
	assert.Equal(t, scene.Points[0].X, first.X)
	assert.Equal(t, scene.Points[len(strengths)-1].X, last.X)
}

func TestSingleOccurrenceCentred(t *testing.T) {
	scene, err := Build(testEvolution(0.42))
	require.NoError(t, err)

	require.Len(t, scene.Points, 1)
	assert.Equal(t, float64(plotWidth)/2, scene.Points[0].X)
	assert.Len(t, scene.Curve, 1)
	assert.Equal(t, TrendFlat, scene.Trend)

	var buf bytes.Buffer
	require.NoError(t, scene.WriteSVG(&buf))
	assert.Contains(t, buf.String(), `id="point-1"`)
}

func TestNoOccurrences(t *testing.T) {
	scene, err := Build(&attention.PhraseEvolution{TargetPhrase: "missing"})
	require.NoError(t, err)
	assert.Empty(t, scene.Points)
	assert.Empty(t, scene.Entries)
	assert.Equal(t, 0, scene.Total)

	var buf bytes.Buffer
	require.NoError(t, scene.WriteSVG(&buf))
	assert.Contains(t, buf.String(), "Total Occurrences: 0")
}

func TestBuildRejects(t *testing.T) {
	_, err := Build(nil)
	assert.ErrorIs(t, err, attention.ErrRenderTargetMissing)

	gap := testEvolution(0.1, 0.2)
	gap.Occurrences[1].Index = 3
	_, err = Build(gap)
	assert.Error(t, err)
}

func TestEntriesMirrorOccurrences(t *testing.T) {
	ev := testEvolution(0.3, 0.6)
	scene, err := Build(ev)
	require.NoError(t, err)

	require.Len(t, scene.Entries, 2)
	assert.Equal(t, Entry{Occurrence: 2, Line: 3, Context: ev.Occurrences[1].ContextLine}, scene.Entries[1])
	assert.Equal(t, "#1 Line 1: I walk alone, line A", scene.Lines()[0])
}

func TestTooltip(t *testing.T) {
	surface := render.NewSurface()
	require.NoError(t, Render(surface, testEvolution(0.3, 0.456)))

	require.True(t, surface.HoverEnter(PointID(1)))
	require.True(t, surface.HoverEnter(PointID(2)))
	tips := surface.Tooltips()
	require.Len(t, tips, 1)
	assert.Equal(t, []string{
		"Occurrence 2",
		"Attention Strength: 45.6%",
		`Context: "I walk alone, line B"`,
	}, tips[0].Lines)

	assert.False(t, surface.HoverEnter(PointID(3)))
	assert.Empty(t, surface.Tooltips())
}

func TestTrend(t *testing.T) {
	tests := []struct {
		name      string
		strengths []float64
		want      string
	}{
		{"rising", []float64{0.2, 0.5}, TrendIncreasing},
		{"falling", []float64{0.7, 0.4, 0.3}, TrendDecreasing},
		{"level", []float64{0.5, 0.9, 0.505}, TrendFlat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			occ := testEvolution(tt.strengths...).Occurrences
			if got := trend(occ); got != tt.want {
				t.Errorf("trend(%v) = %s, want %s", tt.strengths, got, tt.want)
			}
		})
	}
}

func TestWriteSVGWellFormed(t *testing.T) {
	ev := testEvolution(0.2, 0.4, 0.7)
	ev.Occurrences[0].ContextLine = `she said "<go>" & left`
	scene, err := Build(ev)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, scene.WriteSVG(&buf))

	dec := xml.NewDecoder(&buf)
	circles, paths := 0, 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if se, ok := tok.(xml.StartElement); ok {
			switch se.Name.Local {
			case "circle":
				circles++
			case "path":
				paths++
			}
		}
	}
	assert.Equal(t, 3, circles)
	assert.Equal(t, 2, paths)
}
