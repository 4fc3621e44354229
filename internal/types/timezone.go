package types

import (
	"strings"
	"time"
)

// timezoneAbbreviationMap maps common three-letter timezone abbreviations to
// IANA timezone identifiers. Patient records imported from legacy systems
// occasionally carry abbreviations instead of IANA names.
var timezoneAbbreviationMap = map[string]string{
	// US Timezones
	"EST":  "America/New_York",    // Eastern Standard Time
	"CST":  "America/Chicago",     // Central Standard Time
	"MST":  "America/Denver",      // Mountain Standard Time
	"PST":  "America/Los_Angeles", // Pacific Standard Time
	"HST":  "Pacific/Honolulu",    // Hawaii Standard Time
	"AKST": "America/Anchorage",   // Alaska Standard Time

	// Others seen in practice data
	"GMT": "Europe/London",
	"IST": "Asia/Kolkata",
}

// ResolveTimezone converts a timezone abbreviation to an IANA identifier or
// returns the input if it's already valid
func ResolveTimezone(timezone string) string {
	if ianaName, exists := timezoneAbbreviationMap[strings.ToUpper(timezone)]; exists {
		return ianaName
	}
	return timezone
}

// ValidateTimezone validates a timezone by converting abbreviations and
// checking with time.LoadLocation
func ValidateTimezone(timezone string) error {
	resolvedTimezone := ResolveTimezone(timezone)
	_, err := time.LoadLocation(resolvedTimezone)
	return err
}

// LocalDate returns t's calendar date in the given patient timezone,
// truncated to midnight. Renewal runs compare this against the target
// renewal date so a patient is renewed on their local renewal day, not the
// server's UTC day. Falls back to UTC when the timezone is unknown.
func LocalDate(t time.Time, timezone string) time.Time {
	loc, err := time.LoadLocation(ResolveTimezone(timezone))
	if err != nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
