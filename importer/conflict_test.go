package importer

import (
	"testing"

	"bitbucket.org/mmdatafocus/production_backend/models"
)

// NOTE: These tests are intentionally DB-free. They pin the classification
// semantics: equal structural counts suggest an automatic replace, ANY
// inequality demands an operator decision. Full DB classification paths are
// covered by the integration tests.

func TestSuggestForEqualCounts(t *testing.T) {
	existing := StructuralCounts{UnitCount: 3, GlazingCount: 5}
	incoming := StructuralCounts{UnitCount: 3, GlazingCount: 5}
	if got := suggestFor(existing, incoming); got != models.SuggestionReplaceBase {
		t.Fatalf("equal counts should suggest replace_base, got %s", got)
	}
}

func TestSuggestForUnequalCountsIsManual(t *testing.T) {
	existing := StructuralCounts{UnitCount: 3, GlazingCount: 5}
	cases := []StructuralCounts{
		{UnitCount: 4, GlazingCount: 5},
		{UnitCount: 3, GlazingCount: 4},
		{UnitCount: 0, GlazingCount: 0},
	}
	for _, incoming := range cases {
		if got := suggestFor(existing, incoming); got != models.SuggestionManual {
			t.Fatalf("counts %+v vs %+v should be manual, got %s", existing, incoming, got)
		}
	}
}

func TestDefaultActionByConflictKind(t *testing.T) {
	base := &ConflictDecision{
		Kind:       models.ConflictKindBaseOrder,
		Suggestion: models.SuggestionReplaceBase,
	}
	if action, ok := base.DefaultAction(); !ok || action != models.ActionReplaceBase {
		t.Fatalf("base-order conflict should default to replace_base, got %s (%v)", action, ok)
	}

	variant := &ConflictDecision{
		Kind:       models.ConflictKindExactVariant,
		Suggestion: models.SuggestionReplaceBase,
	}
	if action, ok := variant.DefaultAction(); !ok || action != models.ActionReplaceVariant {
		t.Fatalf("exact-variant conflict should default to replace_variant, got %s (%v)", action, ok)
	}
}

func TestDefaultActionManualHasNoDefault(t *testing.T) {
	manual := &ConflictDecision{
		Kind:       models.ConflictKindBaseOrder,
		Suggestion: models.SuggestionManual,
	}
	if _, ok := manual.DefaultAction(); ok {
		t.Fatal("manual suggestion must never auto-resolve")
	}
}
