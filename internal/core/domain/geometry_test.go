package domain

import (
	"math"
	"testing"
)

func TestToAbsoluteFullImageBoxIsExact(t *testing.T) {
	full := BoundingBox{YMin: 0, XMin: 0, YMax: 1000, XMax: 1000}

	for _, dims := range [][2]int{{640, 480}, {1, 1}, {4032, 3024}} {
		rect := full.ToAbsolute(dims[0], dims[1])
		if rect.X0 != 0 || rect.Y0 != 0 {
			t.Fatalf("expected origin at 0,0 for %v, got %+v", dims, rect)
		}
		if rect.X1 != float64(dims[0]) || rect.Y1 != float64(dims[1]) {
			t.Fatalf("expected full extent for %v, got %+v", dims, rect)
		}
	}
}

func TestToAbsoluteLinearRescale(t *testing.T) {
	box := BoundingBox{YMin: 250, XMin: 500, YMax: 750, XMax: 1000}
	rect := box.ToAbsolute(200, 100)

	want := PixelRect{X0: 100, Y0: 25, X1: 200, Y1: 75}
	if rect != want {
		t.Fatalf("expected %+v, got %+v", want, rect)
	}
}

func TestBoundingBoxContainsInclusiveBoundaries(t *testing.T) {
	box := BoundingBox{YMin: 100, XMin: 200, YMax: 300, XMax: 400}

	for _, p := range [][2]float64{{200, 100}, {400, 300}, {300, 200}} {
		if !box.Contains(p[0], p[1]) {
			t.Fatalf("expected point %v inside box", p)
		}
	}
	if box.Contains(401, 200) || box.Contains(300, 99) {
		t.Fatalf("expected points outside box to be rejected")
	}
}

func TestSegmentationStatsSinglePassAggregation(t *testing.T) {
	result := &SegmentationResult{
		Masks: []SegmentationMask{
			{Label: "cat", Confidence: 0.9, Box: BoundingBox{XMin: 0, YMin: 0, XMax: 100, YMax: 100}},
			{Label: "dog", Confidence: 0.8, Box: BoundingBox{XMin: 0, YMin: 0, XMax: 200, YMax: 200}},
			{Label: "cat", Confidence: 0.85, Box: BoundingBox{XMin: 0, YMin: 0, XMax: 150, YMax: 150}},
		},
	}

	stats := result.Stats()
	if stats.TotalMasks != 3 {
		t.Fatalf("expected 3 masks, got %d", stats.TotalMasks)
	}
	if math.Abs(stats.AverageConfidence-0.85) > 1e-9 {
		t.Fatalf("expected mean confidence 0.85, got %f", stats.AverageConfidence)
	}
	if stats.TotalArea != 72500 {
		t.Fatalf("expected total area 72500, got %f", stats.TotalArea)
	}
	if len(stats.UniqueLabels) != 2 || stats.UniqueLabels[0] != "cat" || stats.UniqueLabels[1] != "dog" {
		t.Fatalf("expected deduplicated sorted labels, got %v", stats.UniqueLabels)
	}
}

func TestSegmentationStatsEmptyResult(t *testing.T) {
	stats := (&SegmentationResult{}).Stats()
	if stats.TotalMasks != 0 || stats.AverageConfidence != 0 || stats.TotalArea != 0 {
		t.Fatalf("expected zeroed stats for empty result, got %+v", stats)
	}
	if stats.UniqueLabels == nil || len(stats.UniqueLabels) != 0 {
		t.Fatalf("expected empty label set, got %v", stats.UniqueLabels)
	}
}

func TestBoundingBoxAreaDegenerateIsZero(t *testing.T) {
	if area := (BoundingBox{XMin: 100, YMin: 100, XMax: 100, YMax: 300}).Area(); area != 0 {
		t.Fatalf("expected zero area for degenerate box, got %f", area)
	}
}
