package gemini

import (
	"fmt"
	"strings"

	"github.com/pixelmend/pixelmend/internal/core/domain"
)

func buildAnalysisPrompt(pc domain.ProcessingContext) string {
	var b strings.Builder
	b.WriteString("You are a photo editing assistant. Examine the attached image and produce ")
	b.WriteString("a concise editing instruction for an image generation model.\n\n")
	b.WriteString("Requested edit: ")
	b.WriteString(editGoal(pc.Type))
	b.WriteString("\nUser prompt: ")
	if len(pc.Instructions) > 0 {
		b.WriteString(strings.Join(pc.Instructions, "; "))
	} else {
		b.WriteString("(none given, infer a sensible improvement)")
	}
	b.WriteString("\nQuality target: ")
	b.WriteString(string(pc.Quality))
	b.WriteString("\n")
	if desc := describeMarkers(pc.Markers); desc != "" {
		b.WriteString(desc)
	}
	b.WriteString("\nRespond with the editing instruction only, no preamble.")
	return b.String()
}

func buildGenerationPrompt(instruction string) string {
	return "Edit the attached image. " + instruction +
		" Preserve the subject identity, composition and resolution unless the instruction says otherwise. " +
		"Return only the edited image."
}

func buildSegmentationPrompt(pc domain.ProcessingContext) string {
	var b strings.Builder
	if pc.Type == domain.TypeObjectDetection {
		b.WriteString("Detect the prominent objects in the attached image.\n")
	} else {
		b.WriteString("Segment the prominent objects in the attached image.\n")
	}
	if len(pc.Instructions) > 0 {
		b.WriteString("Focus on: ")
		b.WriteString(strings.Join(pc.Instructions, "; "))
		b.WriteString("\n")
	}
	if desc := describeMarkers(pc.Markers); desc != "" {
		b.WriteString(desc)
	}
	b.WriteString("Output a JSON array. Each entry has \"box_2d\" as [ymin, xmin, ymax, xmax] ")
	b.WriteString("normalized to 0-1000, a short \"label\", a \"confidence\" between 0 and 1")
	if pc.Type != domain.TypeObjectDetection {
		b.WriteString(", and a \"mask\" as a base64 PNG data URI for the segmented region")
	}
	b.WriteString(".")
	return b.String()
}

func editGoal(t domain.ProcessingType) string {
	switch t {
	case domain.TypeObjectRemoval:
		return "remove the marked objects and reconstruct the background"
	case domain.TypeBackgroundChange:
		return "replace the background while keeping the marked subjects"
	case domain.TypeSegmentation:
		return "segment the image"
	case domain.TypeObjectDetection:
		return "detect objects in the image"
	default:
		return "enhance the image"
	}
}

func describeMarkers(markers []domain.ImageMarker) string {
	if len(markers) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Marked regions (coordinates normalized to 0-1000, points to 0-1):\n")
	for _, m := range markers {
		label := m.Label
		if label == "" {
			label = "region"
		}
		switch m.Kind {
		case domain.MarkerUserPoint:
			fmt.Fprintf(&b, "- point %q at (%.3f, %.3f)\n", label, m.X, m.Y)
		default:
			fmt.Fprintf(&b, "- box %q at [%.0f, %.0f, %.0f, %.0f]\n",
				label, m.Box.YMin, m.Box.XMin, m.Box.YMax, m.Box.XMax)
		}
	}
	return b.String()
}
