package utils

import (
	"strconv"
	"strings"
)

// FormatDuration formats seconds as "1h, 2m, 3s", dropping zero units.
// Zero or negative input formats as "now".
func FormatDuration(totalSeconds int64) string {
	if totalSeconds <= 0 {
		return "now"
	}
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	s := totalSeconds % 60

	var parts []string
	if h > 0 {
		parts = append(parts, strconv.FormatInt(h, 10)+"h")
	}
	if m > 0 {
		parts = append(parts, strconv.FormatInt(m, 10)+"m")
	}
	if s > 0 {
		parts = append(parts, strconv.FormatInt(s, 10)+"s")
	}
	return strings.Join(parts, ", ")
}
