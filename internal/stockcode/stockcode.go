// Package stockcode holds the single normalizer every subsystem uses for
// security codes, plus the code-shaped token matcher used by the parsers.
package stockcode

import (
	"regexp"
	"strings"
)

var (
	numericCode = regexp.MustCompile(`^\d{5,6}$`)
	tickerCode  = regexp.MustCompile(`^[A-Z]{1,6}(?:\.[A-Z]{1,2})?$`)

	// candidates scans free text for 1-6 letter tickers (optional exchange
	// suffix) or 5-6 digit codes.
	candidates = regexp.MustCompile(`[A-Za-z]{1,6}(?:\.[A-Za-z]{1,2})?|\d{5,6}`)
)

// Normalize trims and upper-cases value and returns "" unless the result is a
// 5-6 digit code or a ticker. Normalize(Normalize(x)) == Normalize(x).
func Normalize(value string) string {
	text := strings.ToUpper(strings.TrimSpace(value))
	if numericCode.MatchString(text) || tickerCode.MatchString(text) {
		return text
	}
	return ""
}

// Extract returns the normalized candidate codes found in text, in order of
// appearance. Duplicates are kept; limit <= 0 means no limit. The limit
// applies to raw matches, before normalization.
func Extract(text string, limit int) []string {
	n := -1
	if limit > 0 {
		n = limit
	}
	matches := candidates.FindAllString(text, n)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if code := Normalize(m); code != "" {
			out = append(out, code)
		}
	}
	return out
}

// NormalizeAll normalizes codes, dropping empties and duplicates.
func NormalizeAll(codes []string) []string {
	out := make([]string, 0, len(codes))
	seen := map[string]struct{}{}
	for _, raw := range codes {
		code := Normalize(raw)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}
