// Package chart renders the 30-day trend forecast as a PNG for the
// dashboard: point-estimate line over a shaded uncertainty band.
package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/wildcast/wildcast/internal/forecast"
)

const (
	chartWidth  = 800
	chartHeight = 450

	marginLeft   = 70
	marginRight  = 20
	marginTop    = 40
	marginBottom = 50
)

var (
	colorBackground = color.RGBA{255, 255, 255, 255}
	colorGrid       = color.RGBA{225, 225, 225, 255}
	colorBand       = color.RGBA{31, 119, 180, 48}
	colorLine       = color.RGBA{31, 119, 180, 255}
	colorText       = color.RGBA{60, 60, 60, 255}
)

// Render30Day draws the forecast points as a PNG and returns its bytes.
func Render30Day(points []forecast.Point) ([]byte, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("chart: need at least 2 points, got %d", len(points))
	}

	img := image.NewRGBA(image.Rect(0, 0, chartWidth, chartHeight))
	fill(img, img.Bounds(), colorBackground)

	yMin, yMax := bounds(points)

	plotW := chartWidth - marginLeft - marginRight
	plotH := chartHeight - marginTop - marginBottom

	toX := func(i int) int {
		return marginLeft + i*plotW/(len(points)-1)
	}
	toY := func(v float64) int {
		frac := (v - yMin) / (yMax - yMin)
		return marginTop + plotH - int(frac*float64(plotH))
	}

	// Horizontal gridlines with y-axis labels at five even steps.
	for step := 0; step <= 4; step++ {
		v := yMin + (yMax-yMin)*float64(step)/4
		y := toY(v)
		hline(img, marginLeft, chartWidth-marginRight, y, colorGrid)
		label(img, 8, y+4, fmt.Sprintf("%6.0f", v))
	}

	// Uncertainty band.
	for i := 0; i < len(points)-1; i++ {
		x0, x1 := toX(i), toX(i+1)
		for x := x0; x <= x1; x++ {
			t := float64(x-x0) / float64(x1-x0)
			upper := lerp(points[i].UpperBound, points[i+1].UpperBound, t)
			lower := lerp(points[i].LowerBound, points[i+1].LowerBound, t)
			vline(img, x, toY(upper), toY(lower), colorBand)
		}
	}

	// Point-estimate line.
	for i := 0; i < len(points)-1; i++ {
		line(img, toX(i), toY(points[i].Value), toX(i+1), toY(points[i+1].Value), colorLine)
	}

	// Date labels weekly along the x axis.
	for i := 0; i < len(points); i += 7 {
		label(img, toX(i)-20, chartHeight-marginBottom+20, points[i].Date.Format("Jan 02"))
	}

	label(img, marginLeft, 20, "30-Day Visitor Forecast")

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("chart: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func bounds(points []forecast.Point) (yMin, yMax float64) {
	yMin, yMax = math.Inf(1), math.Inf(-1)
	for _, p := range points {
		yMin = math.Min(yMin, p.LowerBound)
		yMax = math.Max(yMax, p.UpperBound)
	}
	if yMax-yMin < 1 {
		yMax = yMin + 1
	}
	// A little headroom keeps the band off the frame edges.
	pad := (yMax - yMin) * 0.05
	return math.Max(0, yMin-pad), yMax + pad
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func fill(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func hline(img *image.RGBA, x0, x1, y int, c color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y, c)
	}
}

func vline(img *image.RGBA, x, y0, y1 int, c color.RGBA) {
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		blend(img, x, y, c)
	}
}

// blend composites a translucent color over the existing pixel.
func blend(img *image.RGBA, x, y int, c color.RGBA) {
	base := img.RGBAAt(x, y)
	a := float64(c.A) / 255
	img.SetRGBA(x, y, color.RGBA{
		R: uint8(float64(c.R)*a + float64(base.R)*(1-a)),
		G: uint8(float64(c.G)*a + float64(base.G)*(1-a)),
		B: uint8(float64(c.B)*a + float64(base.B)*(1-a)),
		A: 255,
	})
}

// line draws with Bresenham; the series is dense enough that unsmoothed
// segments read fine at chart scale.
func line(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		img.SetRGBA(x0, y0, c)
		img.SetRGBA(x0, y0+1, c) // 2px stroke
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func label(img *image.RGBA, x, y int, text string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(colorText),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
