package healthkit

import "github.com/claude/healthvault/internal/models"

// parseTimestampMillis converts a HealthKit timestamp attribute into
// milliseconds since the Unix epoch, wrapping failures as record errors.
func parseTimestampMillis(s string) (int64, error) {
	ms, err := models.ParseHKTimeMillis(s)
	if err != nil {
		return 0, &RecordError{Kind: KindBadTimestamp, Detail: s, Err: err}
	}
	return ms, nil
}
