package main

import (
	"testing"

	"bitbucket.org/mmdatafocus/production_backend/models"
)

func TestParseResolutionAction(t *testing.T) {
	cases := []struct {
		action string
		kind   string
		want   models.ResolutionAction
		known  bool
	}{
		{"replace", "", models.ActionReplaceBase, true},
		{"replace", string(models.ConflictKindBaseOrder), models.ActionReplaceBase, true},
		{"replace", string(models.ConflictKindExactVariant), models.ActionReplaceVariant, true},
		{"replace_base", "", models.ActionReplaceBase, true},
		{"replace_variant", "", models.ActionReplaceVariant, true},
		{"keep_both", "", models.ActionKeepBoth, true},
		{"add_new", "", models.ActionAddNew, true},
		{"cancel", "", models.ActionCancel, true},
		{"merge", "", "", false},
		{"", "", "", false},
	}
	for _, tc := range cases {
		got, known := parseResolutionAction(tc.action, tc.kind)
		if known != tc.known || got != tc.want {
			t.Fatalf("parseResolutionAction(%q, %q) = %q, %v; want %q, %v",
				tc.action, tc.kind, got, known, tc.want, tc.known)
		}
	}
}
