package exporter

import (
	"strconv"
	"strings"
)

// formatFloat formats a float64 for CSV output with up to six decimal
// places, trailing zeros trimmed (13.40 appears as 13.4, 100.000000 as 100).
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// formatInt formats an integer count for CSV output
func formatInt(i int) string {
	return strconv.Itoa(i)
}
