package domain

import "math"

// MarkerKind tags the origin of a region-of-interest marker.
type MarkerKind string

const (
	MarkerUserPoint    MarkerKind = "user_point"
	MarkerDetection    MarkerKind = "detection"
	MarkerSegmentation MarkerKind = "segmentation"
)

// pointHitFraction sizes the hit radius of a user point marker relative to
// the smaller image dimension.
const pointHitFraction = 0.05

// ImageMarker is a tagged union over marker origin. Which fields are
// meaningful depends on Kind: user points carry X/Y in normalized [0,1]
// image-relative coordinates, detections carry Box and Confidence,
// segmentations additionally carry MaskData.
type ImageMarker struct {
	Kind       MarkerKind  `json:"kind"`
	Label      string      `json:"label,omitempty"`
	X          float64     `json:"x,omitempty"`
	Y          float64     `json:"y,omitempty"`
	Box        BoundingBox `json:"box,omitempty"`
	Confidence float64     `json:"confidence,omitempty"`
	MaskData   []byte      `json:"mask_data,omitempty"`
}

func UserPointMarker(x, y float64, label string) ImageMarker {
	return ImageMarker{Kind: MarkerUserPoint, X: x, Y: y, Label: label}
}

func DetectionMarker(box BoundingBox, confidence float64, label string) ImageMarker {
	return ImageMarker{Kind: MarkerDetection, Box: box, Confidence: confidence, Label: label}
}

func SegmentationMarker(mask SegmentationMask) ImageMarker {
	return ImageMarker{
		Kind:       MarkerSegmentation,
		Box:        mask.Box,
		Confidence: mask.Confidence,
		Label:      mask.Label,
		MaskData:   mask.MaskData,
	}
}

// ContainsPoint tests a pixel-space point against the marker on a concrete
// width x height image. User points match by proximity; detection and
// segmentation markers match by bounding-box membership, boundaries
// inclusive. Segmentation containment is deliberately box-based, not
// mask-accurate, so it over-approximates concave objects.
func (m ImageMarker) ContainsPoint(x, y float64, imageWidth, imageHeight int) bool {
	switch m.Kind {
	case MarkerUserPoint:
		px := m.X * float64(imageWidth)
		py := m.Y * float64(imageHeight)
		radius := pointHitFraction * math.Min(float64(imageWidth), float64(imageHeight))
		return math.Hypot(x-px, y-py) <= radius
	case MarkerDetection, MarkerSegmentation:
		rect := m.Box.ToAbsolute(imageWidth, imageHeight)
		return x >= rect.X0 && x <= rect.X1 && y >= rect.Y0 && y <= rect.Y1
	default:
		return false
	}
}

// AnnotationPoint is one user-drawn stroke/point in normalized [0,1]
// image-relative coordinates, as supplied by the drawing surface.
type AnnotationPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label string  `json:"label,omitempty"`
}

// MarkersFromAnnotations converts drawn annotations to user-point markers in
// input order. Pure pass-through, no geometry beyond the identity.
func MarkersFromAnnotations(points []AnnotationPoint) []ImageMarker {
	markers := make([]ImageMarker, 0, len(points))
	for _, p := range points {
		markers = append(markers, UserPointMarker(p.X, p.Y, p.Label))
	}
	return markers
}

// MarkersFromMasks converts a segmentation result into markers so detected
// objects can seed the context of a follow-up request.
func MarkersFromMasks(result *SegmentationResult) []ImageMarker {
	if result == nil {
		return nil
	}
	markers := make([]ImageMarker, 0, len(result.Masks))
	for _, mask := range result.Masks {
		markers = append(markers, SegmentationMarker(mask))
	}
	return markers
}
