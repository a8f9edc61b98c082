// Package units parses and formats the size-with-suffix values accepted by
// the CLI (e.g. "1024m", "2 GiB", "1T"), matching the legacy Ganeti unit
// table bit for bit, including its documented integer-truncation quirk for
// the SI-decimal suffixes.
package units

import (
	"fmt"
	"strconv"
	"strings"
)

// siConvert mirrors the legacy `x * 1_000_000 / 1_048_576` integer
// conversion from decimal (SI) bytes to MiB. It truncates towards zero,
// which is intentional: parseUnit("1M") must equal 0.
func siConvert(x int64) int64 {
	return x * 1_000_000 / 1_048_576
}

// unit multipliers, expressed in MiB.
const (
	mib = 1
	gib = 1024
	tib = 1024 * 1024
)

// ParseUnit parses a size string with an optional unit suffix into MiB.
// Recognised suffixes: "m"/"mib" (MiB), "M"/"mb" (decimal megabytes),
// "g"/"gib" (GiB), "G"/"gb" (decimal gigabytes), "t"/"tib" (TiB),
// "T"/"tb" (decimal terabytes). A bare number with no suffix is MiB.
// Whitespace between the number and the suffix is ignored.
func ParseUnit(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size value")
	}

	i := 0
	for i < len(s) && (isDigit(s[i]) || s[i] == '-' || s[i] == '+') {
		i++
	}
	numPart := s[:i]
	rest := strings.TrimSpace(s[i:])

	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid size %q: negative value", s)
	}

	if rest == "" {
		return n, nil
	}

	switch rest {
	case "m", "mib", "MiB":
		return n * mib, nil
	case "M", "mb", "MB":
		return siConvert(n), nil
	case "g", "gib", "GiB":
		return n * gib, nil
	case "G", "gb", "GB":
		return siConvert(n * 1000), nil
	case "t", "tib", "TiB":
		return n * tib, nil
	case "T", "tb", "TB":
		return siConvert(n * 1_000_000), nil
	default:
		return 0, fmt.Errorf("unknown unit %q in %q", rest, s)
	}
}

// FormatUnit renders n MiB using the given unit suffix ("m", "g", or
// "t"), producing the inverse of ParseUnit for the binary (non-SI)
// suffixes. SI suffixes are lossy (see ParseUnit's siConvert truncation)
// and are not round-trippable; FormatUnit only emits binary suffixes.
func FormatUnit(n int64, unit string) string {
	switch unit {
	case "m", "mib":
		return fmt.Sprintf("%dm", n)
	case "g", "gib":
		return fmt.Sprintf("%dg", n/gib)
	case "t", "tib":
		return fmt.Sprintf("%dt", n/tib)
	default:
		return fmt.Sprintf("%dm", n)
	}
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
