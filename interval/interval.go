// Package interval parses the relative time intervals accepted by reports and
// configuration, such as "30m", "3d" or "4w".
package interval

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidArgument is returned for any malformed caller-supplied argument.
// Other packages wrap it so callers can check a single sentinel.
var ErrInvalidArgument = errors.New("invalid argument")

var intervalPattern = regexp.MustCompile(`^(\d+)([a-z])$`)

var units = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

// Parse converts "<integer><unit>" into a duration where unit is one of
// s, m, h, d or w.
func Parse(s string) (time.Duration, error) {
	match := intervalPattern.FindStringSubmatch(s)
	if match == nil {
		return 0, fmt.Errorf("%w: interval %q expected format <integer><s|m|h|d|w>", ErrInvalidArgument, s)
	}

	unit, ok := units[match[2]]
	if !ok {
		return 0, fmt.Errorf("%w: interval %q has unrecognised unit %q", ErrInvalidArgument, s, match[2])
	}

	n, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: interval %q: %v", ErrInvalidArgument, s, err)
	}
	if n > int64(time.Duration(1<<63-1)/unit) {
		return 0, fmt.Errorf("%w: interval %q overflows", ErrInvalidArgument, s)
	}

	return time.Duration(n) * unit, nil
}

// Before returns the instant the interval s reaches back to from now.
func Before(now time.Time, s string) (time.Time, error) {
	d, err := Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(-d), nil
}
