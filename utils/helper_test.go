package utils

import "testing"

func TestSplitOrderNumber(t *testing.T) {
	cases := []struct {
		in     string
		base   string
		suffix string
		ok     bool
	}{
		{"1001-a", "1001", "a", true},
		{"1001-A", "1001", "a", true},
		{"1001", "", "", false},
		{"1001-", "", "", false},
		{"1001-ab", "", "", false},
		{"1001-2", "", "", false},
		{"", "", "", false},
	}
	for _, tc := range cases {
		base, suffix, ok := SplitOrderNumber(tc.in)
		if ok != tc.ok {
			t.Fatalf("%q: expected ok=%v, got %v", tc.in, tc.ok, ok)
		}
		if ok && (base != tc.base || suffix != tc.suffix) {
			t.Fatalf("%q: expected %s/%s, got %s/%s", tc.in, tc.base, tc.suffix, base, suffix)
		}
	}
}

func TestNormalizeOrderNumber(t *testing.T) {
	if got := NormalizeOrderNumber("  1001-A "); got != "1001-a" {
		t.Fatalf("expected 1001-a, got %q", got)
	}
	if got := NormalizeOrderNumber("1001"); got != "1001" {
		t.Fatalf("expected 1001 unchanged, got %q", got)
	}
}

func TestUniqueSlice(t *testing.T) {
	got := UniqueSlice([]string{"a", "b", "a", "c", "b"})
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected result: %v", got)
	}
}
