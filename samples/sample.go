package samples

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedRecord is returned when a stored member cannot be decoded into
// a Sample.
var ErrMalformedRecord = errors.New("malformed record")

// separator splits the view from the duration inside a packed member.
const separator = "\n"

// Sample is one recorded slow request. Samples are created once by the
// recorder and never mutated.
type Sample struct {
	View            string    `json:"view"`             // View is the handler which served the request.
	DurationSeconds float64   `json:"duration_seconds"` // DurationSeconds is the elapsed time of the request.
	RecordedAt      time.Time `json:"recorded_at"`      // RecordedAt is when the request began; it is the store score.
}

func (s Sample) Validate() error {
	if s.View == "" {
		return errors.New("expected non-empty view")
	}
	if strings.Contains(s.View, separator) {
		return fmt.Errorf("expected view without newlines; got view = %q", s.View)
	}
	if s.DurationSeconds < 0 || math.IsNaN(s.DurationSeconds) || math.IsInf(s.DurationSeconds, 0) {
		return fmt.Errorf("expected finite non-negative duration; got duration = %v", s.DurationSeconds)
	}
	return nil
}

// Score is the sort key the sample is stored under.
func (s Sample) Score() float64 {
	return Score(s.RecordedAt)
}

// Encode packs the sample into the member format shared with existing
// dumpslow stores: the view, a newline, then the duration with exactly three
// fractional digits.
func (s Sample) Encode() (string, error) {
	if err := s.Validate(); err != nil {
		return "", fmt.Errorf("Sample.Encode() expected valid sample: %w", err)
	}
	return s.View + separator + strconv.FormatFloat(s.DurationSeconds, 'f', 3, 64), nil
}

// Decode unpacks a member previously written by Encode. The score restores
// RecordedAt.
func Decode(member string, score float64) (Sample, error) {
	parts := strings.Split(member, separator)
	if len(parts) != 2 || parts[0] == "" {
		return Sample{}, fmt.Errorf("%w: expected \"<view>\\n<duration>\"; got %q", ErrMalformedRecord, member)
	}

	duration, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: could not parse duration in %q: %v", ErrMalformedRecord, member, err)
	}
	if duration < 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return Sample{}, fmt.Errorf("%w: expected finite non-negative duration in %q", ErrMalformedRecord, member)
	}

	return Sample{
		View:            parts[0],
		DurationSeconds: duration,
		RecordedAt:      FromScore(score),
	}, nil
}

// Score converts a timestamp into fractional Unix seconds.
func Score(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromScore is the inverse of Score, accurate to the microsecond.
func FromScore(score float64) time.Time {
	sec, frac := math.Modf(score)
	return time.Unix(int64(sec), int64(math.Round(frac*1e6))*int64(time.Microsecond))
}
