package domain

import "sort"

// NormalizedExtent is the backend's coordinate convention: box coordinates
// arrive in a 0-1000 unit space regardless of the image's pixel dimensions.
const NormalizedExtent = 1000.0

// BoundingBox is a rectangle in the normalized 0-1000 space, (YMin, XMin)
// top-left to (YMax, XMax) bottom-right.
type BoundingBox struct {
	YMin float64 `json:"y_min"`
	XMin float64 `json:"x_min"`
	YMax float64 `json:"y_max"`
	XMax float64 `json:"x_max"`
}

// PixelRect is a rectangle in the pixel space of a concrete image.
type PixelRect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// ToAbsolute linearly rescales every coordinate into the pixel space of a
// width x height image. The full-image box (0,0,1000,1000) maps exactly to
// (0,0,width,height).
func (b BoundingBox) ToAbsolute(imageWidth, imageHeight int) PixelRect {
	return PixelRect{
		X0: b.XMin / NormalizedExtent * float64(imageWidth),
		Y0: b.YMin / NormalizedExtent * float64(imageHeight),
		X1: b.XMax / NormalizedExtent * float64(imageWidth),
		Y1: b.YMax / NormalizedExtent * float64(imageHeight),
	}
}

// Area is the box area in normalized units.
func (b BoundingBox) Area() float64 {
	w := b.XMax - b.XMin
	h := b.YMax - b.YMin
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Contains reports whether a point in the same normalized space falls inside
// the box, boundaries included.
func (b BoundingBox) Contains(x, y float64) bool {
	return x >= b.XMin && x <= b.XMax && y >= b.YMin && y <= b.YMax
}

// SegmentationMask is one detected object: its box, label, confidence and an
// opaque encoded raster produced by the backend.
type SegmentationMask struct {
	Box        BoundingBox `json:"box"`
	Label      string      `json:"label"`
	MaskData   []byte      `json:"mask_data,omitempty"`
	Confidence float64     `json:"confidence"`
}

// SegmentationResult is the full output of one backend segmentation call.
type SegmentationResult struct {
	Masks            []SegmentationMask `json:"masks"`
	ProcessingTimeMs int64              `json:"processing_time_ms"`
	ImageWidth       int                `json:"image_width"`
	ImageHeight      int                `json:"image_height"`
	Confidence       float64            `json:"confidence"`
}

// SegmentationStats are derived in a single pass and never stored. TotalArea
// is accumulated in the normalized 0-1000 space only; callers needing pixels
// convert through ToAbsolute themselves.
type SegmentationStats struct {
	TotalMasks        int      `json:"total_masks"`
	AverageConfidence float64  `json:"average_confidence"`
	UniqueLabels      []string `json:"unique_labels"`
	TotalArea         float64  `json:"total_area"`
}

func (r *SegmentationResult) Stats() SegmentationStats {
	stats := SegmentationStats{UniqueLabels: []string{}}
	if r == nil || len(r.Masks) == 0 {
		return stats
	}

	var confidenceSum float64
	seen := make(map[string]struct{}, len(r.Masks))
	for _, mask := range r.Masks {
		confidenceSum += mask.Confidence
		stats.TotalArea += mask.Box.Area()
		if _, ok := seen[mask.Label]; !ok {
			seen[mask.Label] = struct{}{}
			stats.UniqueLabels = append(stats.UniqueLabels, mask.Label)
		}
	}
	stats.TotalMasks = len(r.Masks)
	stats.AverageConfidence = confidenceSum / float64(len(r.Masks))
	sort.Strings(stats.UniqueLabels)
	return stats
}
