package utils

import (
	"reflect"
	"strings"
)

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

func UniqueSlice[T comparable](in []T) []T {
	seen := make(map[T]bool, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// NormalizeOrderNumber trims whitespace and lowercases the variant suffix so
// "1001-A " and "1001-a" address the same order.
func NormalizeOrderNumber(number string) string {
	number = strings.TrimSpace(number)
	if base, suffix, ok := SplitOrderNumber(number); ok {
		return base + "-" + strings.ToLower(suffix)
	}
	return number
}

// SplitOrderNumber splits an order number into its base identifier and a
// single-character variant suffix ("1001-a" -> "1001", "a"). Returns ok=false
// when the number carries no suffix.
func SplitOrderNumber(number string) (base string, suffix string, ok bool) {
	number = strings.TrimSpace(number)
	if len(number) < 3 {
		return number, "", false
	}
	if number[len(number)-2] != '-' {
		return number, "", false
	}
	last := number[len(number)-1]
	isLetter := (last >= 'a' && last <= 'z') || (last >= 'A' && last <= 'Z')
	if !isLetter {
		return number, "", false
	}
	return number[:len(number)-2], strings.ToLower(string(last)), true
}
