package domain

import "fmt"

type ProcessingType string

const (
	TypeEnhance          ProcessingType = "enhance"
	TypeObjectRemoval    ProcessingType = "object_removal"
	TypeBackgroundChange ProcessingType = "background_change"
	TypeSegmentation     ProcessingType = "segmentation"
	TypeObjectDetection  ProcessingType = "object_detection"
)

type QualityLevel string

const (
	QualityStandard     QualityLevel = "standard"
	QualityHigh         QualityLevel = "high"
	QualityProfessional QualityLevel = "professional"
)

type PerformancePriority string

const (
	PrioritySpeed    PerformancePriority = "speed"
	PriorityBalanced PerformancePriority = "balanced"
	PriorityQuality  PerformancePriority = "quality"
)

// ProcessingContext describes how an image should be transformed. A context
// produced by BuildContext is internally consistent; a directly-constructed
// one carries no such guarantee and must be treated as untrusted until
// rebuilt.
type ProcessingContext struct {
	Type         ProcessingType      `json:"type"`
	Quality      QualityLevel        `json:"quality"`
	Priority     PerformancePriority `json:"priority"`
	Markers      []ImageMarker       `json:"markers,omitempty"`
	Instructions []string            `json:"instructions,omitempty"`
}

// BuildContext applies the combination rules in order, first match wins:
// marker-dependent types without markers fall back to enhance, and quality
// levels the chosen priority cannot sustain are downgraded.
func BuildContext(
	pType ProcessingType,
	quality QualityLevel,
	priority PerformancePriority,
	markers []ImageMarker,
	instructions ...string,
) ProcessingContext {
	switch {
	case (pType == TypeObjectRemoval || pType == TypeBackgroundChange) && len(markers) == 0:
		pType = TypeEnhance
	case quality == QualityProfessional && priority == PrioritySpeed:
		quality = QualityStandard
	case quality == QualityHigh && priority == PrioritySpeed:
		quality = QualityStandard
	case quality == QualityProfessional && priority == PriorityBalanced:
		quality = QualityHigh
	}

	return ProcessingContext{
		Type:         pType,
		Quality:      quality,
		Priority:     priority,
		Markers:      markers,
		Instructions: instructions,
	}
}

// IsValidCombination reports, without rewriting anything, whether BuildContext
// would accept the combination as-is. Used for UI feedback before committing
// to a build.
func IsValidCombination(
	pType ProcessingType,
	quality QualityLevel,
	priority PerformancePriority,
	markers []ImageMarker,
) bool {
	if (pType == TypeObjectRemoval || pType == TypeBackgroundChange) && len(markers) == 0 {
		return false
	}
	if quality == QualityProfessional && priority == PrioritySpeed {
		return false
	}
	return true
}

// RecommendedType pre-fills a sensible default from the current markers. It
// never overrides an explicit user choice.
func RecommendedType(markers []ImageMarker) ProcessingType {
	if len(markers) > 0 {
		return TypeObjectRemoval
	}
	return TypeEnhance
}

func ParseProcessingType(s string) (ProcessingType, error) {
	switch ProcessingType(s) {
	case TypeEnhance, TypeObjectRemoval, TypeBackgroundChange, TypeSegmentation, TypeObjectDetection:
		return ProcessingType(s), nil
	case "":
		return TypeEnhance, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse processing type", fmt.Errorf("unknown type %q", s))
	}
}

func ParseQualityLevel(s string) (QualityLevel, error) {
	switch QualityLevel(s) {
	case QualityStandard, QualityHigh, QualityProfessional:
		return QualityLevel(s), nil
	case "":
		return QualityStandard, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse quality level", fmt.Errorf("unknown quality %q", s))
	}
}

func ParsePerformancePriority(s string) (PerformancePriority, error) {
	switch PerformancePriority(s) {
	case PrioritySpeed, PriorityBalanced, PriorityQuality:
		return PerformancePriority(s), nil
	case "":
		return PriorityBalanced, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse performance priority", fmt.Errorf("unknown priority %q", s))
	}
}
