// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampPage normalizes 1-based page parameters: page is at least 1 and
// perPage falls back to def when below 1 and is capped at max.
func ClampPage(page, perPage, def, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = def
	}
	if max > 0 && perPage > max {
		perPage = max
	}
	return page, perPage
}

// ClampLimit returns def when n is not in [1, max].
func ClampLimit(n, def, max int) int {
	if n <= 0 || n > max {
		return def
	}
	return n
}

// Page returns the items of the given 1-based page. Pages past the end are
// empty, never nil.
func Page[T any](items []T, page, perPage int) []T {
	if page < 1 || perPage < 1 {
		return []T{}
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
