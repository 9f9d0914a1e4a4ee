package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSize(t *testing.T) {
	cases := map[string]int64{
		"1024":  1024,
		"1k":    1024,
		"1K":    1024,
		"1.5m":  1572864,
		"3g":    3 * 1024 * 1024 * 1024,
		"5m":    5 * 1024 * 1024,
		" 2k ":  2048,
		"0":     0,
		"10.5k": 10752,
	}

	for in, want := range cases {
		got, err := ParseSize(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseSizeInvalid(t *testing.T) {
	for _, in := range []string{"", "abc", "1q", "k", "-1k", "1.2.3m"} {
		_, err := ParseSize(in)
		assert.Error(t, err, in)
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512.0 B", FormatBytes(512))
	assert.Equal(t, "1.0 KiB", FormatBytes(1024))
	assert.Equal(t, "5.0 MiB", FormatBytes(5*1024*1024))
}
