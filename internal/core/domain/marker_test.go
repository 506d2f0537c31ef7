package domain

import "testing"

func TestUserPointMarkerContainsByProximity(t *testing.T) {
	marker := UserPointMarker(0.5, 0.5, "spot")

	// 1000x1000 image: marker sits at (500,500), hit radius 50px.
	if !marker.ContainsPoint(500, 500, 1000, 1000) {
		t.Fatalf("expected exact position to match")
	}
	if !marker.ContainsPoint(540, 500, 1000, 1000) {
		t.Fatalf("expected point within radius to match")
	}
	if marker.ContainsPoint(560, 500, 1000, 1000) {
		t.Fatalf("expected point outside radius to miss")
	}
}

func TestDetectionMarkerContainsByBox(t *testing.T) {
	marker := DetectionMarker(BoundingBox{YMin: 0, XMin: 0, YMax: 500, XMax: 500}, 0.9, "dog")

	// 200x100 image: box covers x in [0,100], y in [0,50].
	if !marker.ContainsPoint(100, 50, 200, 100) {
		t.Fatalf("expected boundary point inside")
	}
	if marker.ContainsPoint(101, 50, 200, 100) {
		t.Fatalf("expected point past boundary outside")
	}
}

func TestSegmentationMarkerUsesBoundingBoxNotMask(t *testing.T) {
	mask := SegmentationMask{
		Box:        BoundingBox{YMin: 0, XMin: 0, YMax: 1000, XMax: 1000},
		Label:      "person",
		Confidence: 0.8,
		MaskData:   []byte{0x00},
	}
	marker := SegmentationMarker(mask)

	// Any point inside the box matches, even where the raster mask is empty.
	if !marker.ContainsPoint(5, 5, 100, 100) {
		t.Fatalf("expected box-based containment for segmentation markers")
	}
}

func TestMarkersFromAnnotationsPreservesOrder(t *testing.T) {
	points := []AnnotationPoint{
		{X: 0.1, Y: 0.2, Label: "first"},
		{X: 0.3, Y: 0.4},
		{X: 0.5, Y: 0.6, Label: "third"},
	}

	markers := MarkersFromAnnotations(points)
	if len(markers) != 3 {
		t.Fatalf("expected 3 markers, got %d", len(markers))
	}
	for i, m := range markers {
		if m.Kind != MarkerUserPoint {
			t.Fatalf("expected user point at %d, got %s", i, m.Kind)
		}
		if m.X != points[i].X || m.Y != points[i].Y || m.Label != points[i].Label {
			t.Fatalf("expected pass-through conversion at %d, got %+v", i, m)
		}
	}
}

func TestMarkersFromMasksFeedsSegmentationBack(t *testing.T) {
	result := &SegmentationResult{
		Masks: []SegmentationMask{
			{Label: "cup", Confidence: 0.7, Box: BoundingBox{XMax: 10, YMax: 10}},
			{Label: "plate", Confidence: 0.9, Box: BoundingBox{XMax: 20, YMax: 20}},
		},
	}

	markers := MarkersFromMasks(result)
	if len(markers) != 2 {
		t.Fatalf("expected 2 markers, got %d", len(markers))
	}
	if markers[0].Kind != MarkerSegmentation || markers[0].Label != "cup" {
		t.Fatalf("expected segmentation marker for cup, got %+v", markers[0])
	}
	if MarkersFromMasks(nil) != nil {
		t.Fatalf("expected nil markers for nil result")
	}
}
