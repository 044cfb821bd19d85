package backup

import (
	"fmt"
	"time"
)

// creationDateLayout is the second-precision prefix of an AMI CreationDate,
// e.g. "2024-01-15T10:30:00" out of "2024-01-15T10:30:00.000Z".
const creationDateLayout = "2006-01-02T15:04:05"

var ErrCreationDate = fmt.Errorf("failed to parse AMI creation date")

// ParseCreationDate parses an AMI CreationDate as UTC, to the second.
// Fractional seconds and the zone suffix are discarded.
func ParseCreationDate(s string) (time.Time, error) {
	if len(s) < len(creationDateLayout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrCreationDate, s)
	}
	t, err := time.ParseInLocation(creationDateLayout, s[:len(creationDateLayout)], time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %w", ErrCreationDate, s, err)
	}
	return t, nil
}

// Expired reports whether something created at created is strictly older
// than retention at now.
func Expired(created, now time.Time, retention time.Duration) bool {
	return now.Sub(created) > retention
}

// RetentionPeriod converts a retention window in days to a duration.
func RetentionPeriod(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
