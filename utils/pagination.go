package utils

import (
	"math"
	"strconv"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Page is a normalized page request. Page >= 1, 1 <= Limit <= MaxLimit and
// Offset = (Page-1)*Limit.
type Page struct {
	Page   int64
	Limit  int64
	Offset int64
}

// ResolvePage parses raw page and limit values. Missing or non-numeric input
// falls back to the defaults; numeric input is clamped into range. Page is
// capped so that Offset never overflows.
func ResolvePage(page, limit string) Page {
	p := parseOr(page, DefaultPage)
	if p < 1 {
		p = 1
	}
	l := parseOr(limit, DefaultLimit)
	if l < 1 {
		l = 1
	}
	if l > MaxLimit {
		l = MaxLimit
	}
	if maxPage := math.MaxInt64 / l; p > maxPage {
		p = maxPage
	}
	return Page{Page: p, Limit: l, Offset: (p - 1) * l}
}

func parseOr(s string, fallback int64) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
