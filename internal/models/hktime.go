package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// HKTimeLayout is the timestamp format used throughout a HealthKit XML
// export: "2018-01-01 22:00:00 +0000".
const HKTimeLayout = "2006-01-02 15:04:05 -0700"

// ParseHKTime parses a HealthKit timestamp string.
func ParseHKTime(s string) (time.Time, error) {
	t, err := time.Parse(HKTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse HealthKit time %q: %w", s, err)
	}
	return t, nil
}

// ParseHKTimeMillis parses a HealthKit timestamp into milliseconds since the
// Unix epoch.
func ParseHKTimeMillis(s string) (int64, error) {
	t, err := ParseHKTime(s)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

// ToCamelCase splits a string on whitespace and joins the words with the
// first letter of each capitalized: "my iPhone 7" -> "MyIPhone7".
func ToCamelCase(s string) string {
	var b strings.Builder
	for _, word := range strings.Fields(s) {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	return b.String()
}
