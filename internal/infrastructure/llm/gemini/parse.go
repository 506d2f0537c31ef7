package gemini

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pixelmend/pixelmend/internal/core/domain"
)

type segmentationItem struct {
	Box        []float64 `json:"box_2d"`
	Label      string    `json:"label"`
	Confidence *float64  `json:"confidence"`
	Mask       string    `json:"mask"`
}

// parseSegmentation decodes the model's JSON array of detections into the
// domain result. An empty array means the model found nothing and yields an
// empty result. Entries with malformed boxes are skipped rather than failing
// the whole response; a non-empty response with no usable entry is an error.
func parseSegmentation(raw string) (*domain.SegmentationResult, error) {
	payload := stripFences(raw)

	var items []segmentationItem
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, fmt.Errorf("decode segmentation payload: %w", err)
	}
	if len(items) == 0 {
		return &domain.SegmentationResult{Masks: []domain.SegmentationMask{}}, nil
	}

	masks := make([]domain.SegmentationMask, 0, len(items))
	for _, item := range items {
		box, ok := boxFromCoords(item.Box)
		if !ok {
			continue
		}
		confidence := 1.0
		if item.Confidence != nil {
			confidence = *item.Confidence
		}
		masks = append(masks, domain.SegmentationMask{
			Box:        box,
			Label:      item.Label,
			Confidence: confidence,
			MaskData:   decodeMaskData(item.Mask),
		})
	}
	if len(masks) == 0 {
		return nil, errors.New("no usable detections in segmentation payload")
	}

	result := &domain.SegmentationResult{Masks: masks}
	result.Confidence = result.Stats().AverageConfidence
	return result, nil
}

func boxFromCoords(coords []float64) (domain.BoundingBox, bool) {
	if len(coords) != 4 {
		return domain.BoundingBox{}, false
	}
	box := domain.BoundingBox{YMin: coords[0], XMin: coords[1], YMax: coords[2], XMax: coords[3]}
	if box.YMin > box.YMax || box.XMin > box.XMax {
		return domain.BoundingBox{}, false
	}
	if box.YMin < 0 || box.XMin < 0 || box.YMax > domain.NormalizedExtent || box.XMax > domain.NormalizedExtent {
		return domain.BoundingBox{}, false
	}
	return box, true
}

func decodeMaskData(mask string) []byte {
	if mask == "" {
		return nil
	}
	if idx := strings.Index(mask, "base64,"); idx >= 0 {
		mask = mask[idx+len("base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(mask)
	if err != nil {
		return nil
	}
	return data
}

// stripFences removes a markdown code fence the model sometimes wraps JSON in
// even when asked for a bare payload.
func stripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
