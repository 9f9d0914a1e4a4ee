package utils

import (
	"fmt"
	"strconv"
	"strings"
)

var sizeMultipliers = map[byte]float64{
	'k': 1 << 10,
	'm': 1 << 20,
	'g': 1 << 30,
}

// ParseSize converts a human readable size such as "1k", "1.5m" or "3g"
// into a byte count. Plain numbers are treated as bytes.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("invalid size format: %q", s)
	}

	suffix := s[len(s)-1] | 0x20 // lowercase ASCII
	mult, ok := sizeMultipliers[suffix]
	if !ok {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid size format: %q", s)
		}
		return int64(n), nil
	}

	n, err := strconv.ParseFloat(s[:len(s)-1], 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size format: %q", s)
	}

	return int64(n * mult), nil
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(n float64) string {
	for _, u := range []string{"B", "KiB", "MiB", "GiB"} {
		if n < 1024 {
			return fmt.Sprintf("%.1f %s", n, u)
		}
		n /= 1024
	}
	return fmt.Sprintf("%.1f TiB", n)
}
