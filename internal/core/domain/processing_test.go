package domain

import "testing"

func TestBuildContextDowngradesMarkerDependentTypes(t *testing.T) {
	for _, pType := range []ProcessingType{TypeObjectRemoval, TypeBackgroundChange} {
		ctx := BuildContext(pType, QualityHigh, PriorityBalanced, nil)
		if ctx.Type != TypeEnhance {
			t.Fatalf("expected %s without markers to downgrade to enhance, got %s", pType, ctx.Type)
		}
	}

	markers := []ImageMarker{UserPointMarker(0.5, 0.5, "")}
	ctx := BuildContext(TypeObjectRemoval, QualityHigh, PriorityBalanced, markers)
	if ctx.Type != TypeObjectRemoval {
		t.Fatalf("expected marked removal to keep its type, got %s", ctx.Type)
	}
}

func TestBuildContextQualityDowngradeMatrix(t *testing.T) {
	cases := []struct {
		quality  QualityLevel
		priority PerformancePriority
		want     QualityLevel
	}{
		{QualityProfessional, PrioritySpeed, QualityStandard},
		{QualityHigh, PrioritySpeed, QualityStandard},
		{QualityProfessional, PriorityBalanced, QualityHigh},
		{QualityHigh, PriorityBalanced, QualityHigh},
		{QualityProfessional, PriorityQuality, QualityProfessional},
		{QualityStandard, PrioritySpeed, QualityStandard},
	}

	for _, tc := range cases {
		ctx := BuildContext(TypeEnhance, tc.quality, tc.priority, nil)
		if ctx.Quality != tc.want {
			t.Fatalf("%s+%s: expected %s, got %s", tc.quality, tc.priority, tc.want, ctx.Quality)
		}
	}
}

func TestBuildContextFirstMatchingRuleWins(t *testing.T) {
	// Empty markers trigger the type rule first; quality is left untouched
	// even though professional+speed would otherwise rewrite it.
	ctx := BuildContext(TypeObjectRemoval, QualityProfessional, PrioritySpeed, nil)
	if ctx.Type != TypeEnhance {
		t.Fatalf("expected type downgrade, got %s", ctx.Type)
	}
	if ctx.Quality != QualityProfessional {
		t.Fatalf("expected first-match-wins to skip the quality rule, got %s", ctx.Quality)
	}
}

func TestIsValidCombinationFlagsSilentRewrites(t *testing.T) {
	if IsValidCombination(TypeObjectRemoval, QualityStandard, PriorityBalanced, nil) {
		t.Fatalf("expected removal without markers to be invalid")
	}
	if IsValidCombination(TypeEnhance, QualityProfessional, PrioritySpeed, nil) {
		t.Fatalf("expected professional+speed to be invalid")
	}
	markers := []ImageMarker{UserPointMarker(0.1, 0.1, "")}
	if !IsValidCombination(TypeObjectRemoval, QualityHigh, PriorityBalanced, markers) {
		t.Fatalf("expected marked removal to be valid")
	}
}

func TestRecommendedType(t *testing.T) {
	if got := RecommendedType(nil); got != TypeEnhance {
		t.Fatalf("expected enhance for empty markers, got %s", got)
	}
	markers := []ImageMarker{UserPointMarker(0.2, 0.3, "")}
	if got := RecommendedType(markers); got != TypeObjectRemoval {
		t.Fatalf("expected object removal for marked image, got %s", got)
	}
}

func TestParseProcessingOptionDefaults(t *testing.T) {
	if pType, err := ParseProcessingType(""); err != nil || pType != TypeEnhance {
		t.Fatalf("expected default enhance, got %s err=%v", pType, err)
	}
	if quality, err := ParseQualityLevel(""); err != nil || quality != QualityStandard {
		t.Fatalf("expected default standard, got %s err=%v", quality, err)
	}
	if priority, err := ParsePerformancePriority(""); err != nil || priority != PriorityBalanced {
		t.Fatalf("expected default balanced, got %s err=%v", priority, err)
	}
	if _, err := ParseProcessingType("sharpen"); !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}
