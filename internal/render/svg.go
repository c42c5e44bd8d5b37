package render

import (
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Palette shared by the visualisations
const (
	TitleColor  = "#201A39"
	LabelColor  = "#374151"
	AxisColor   = "#9CA3AF"
	AccentColor = "#F55AC2"
)

// Attr formats an escaped attribute for svgo's variadic style arguments
func Attr(name, value string) string {
	v := html.EscapeString(value)
	v = strings.ReplaceAll(v, "\n", "&#10;")
	return name + `="` + v + `"`
}

// TooltipAttr encodes tooltip lines for the front-end hover handler
func TooltipAttr(t Tooltip) string {
	return Attr("data-tooltip", strings.Join(t.Lines, "\n"))
}

// Truncate shortens s to max runes followed by "..."
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "..."
}

// Num formats a coordinate in its shortest exact form
func Num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Point is a pixel coordinate
type Point struct {
	X, Y float64
}

// PathD builds an SVG path through points. When closeTo is set the path is
// closed along the baseline y=closeTo, producing an area.
func PathD(points []Point, closeTo *float64) string {
	if len(points) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range points {
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		fmt.Fprintf(&b, "%s%.2f,%.2f", cmd, p.X, p.Y)
	}
	if closeTo != nil {
		last, first := points[len(points)-1], points[0]
		fmt.Fprintf(&b, "L%.2f,%.2fL%.2f,%.2fZ", last.X, *closeTo, first.X, *closeTo)
	}
	return b.String()
}

// ErrWriter remembers the first write error so svgo output can be checked
type ErrWriter struct {
	W   io.Writer
	Err error
}

func (e *ErrWriter) Write(p []byte) (int, error) {
	if e.Err != nil {
		return 0, e.Err
	}
	n, err := e.W.Write(p)
	if err != nil {
		e.Err = err
	}
	return n, err
}
