package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDuration is returned for anything that is not <int><unit>.
var ErrInvalidDuration = errors.New("invalid duration")

var unitDurations = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// Unit sets accepted by commands.
const (
	GrantUnits = "mhdw"
	AllUnits   = "smhdw"
)

// ParseDuration parses "<int><unit>" where unit is one of the characters in units.
// The amount must be positive.
func ParseDuration(s, units string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	unit := s[len(s)-1]
	if !strings.ContainsRune(units, rune(unit)) {
		return 0, fmt.Errorf("%w: unit %q not one of %q", ErrInvalidDuration, unit, units)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	return time.Duration(n) * unitDurations[unit], nil
}

// FormatRemaining renders d as "1d 2h 3m", dropping zero parts.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "0m"
	}
	d = d.Round(time.Minute)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	return strings.Join(parts, " ")
}
