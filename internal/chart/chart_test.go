package chart

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/wildcast/wildcast/internal/forecast"
)

func trendPoints(n int) []forecast.Point {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	points := make([]forecast.Point, n)
	for i := range points {
		v := 1000 + 20*float64(i)
		points[i] = forecast.Point{
			Date:       base.AddDate(0, 0, i),
			Value:      v,
			LowerBound: v - 150,
			UpperBound: v + 150,
		}
	}
	return points
}

func TestRender30Day(t *testing.T) {
	data, err := Render30Day(trendPoints(30))
	if err != nil {
		t.Fatalf("Render30Day: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a decodable PNG: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 800 || b.Dy() != 450 {
		t.Errorf("dimensions = %dx%d, want 800x450", b.Dx(), b.Dy())
	}
}

func TestRender30Day_FlatSeries(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	points := make([]forecast.Point, 30)
	for i := range points {
		points[i] = forecast.Point{Date: base.AddDate(0, 0, i), Value: 500, LowerBound: 500, UpperBound: 500}
	}

	data, err := Render30Day(points)
	if err != nil {
		t.Fatalf("flat series should render: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestRender30Day_TooFewPoints(t *testing.T) {
	if _, err := Render30Day(nil); err == nil {
		t.Error("nil points should error")
	}
	if _, err := Render30Day(trendPoints(1)); err == nil {
		t.Error("single point should error")
	}
}
