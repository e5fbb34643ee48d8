package utils

import (
	"fmt"
	"strings"
	"time"
)

const DefaultDateFormat = "2006-01-02"

// Broker exports do not agree on a date layout: CIBC writes ISO dates,
// RBC writes "January 2, 2006", TD writes "01/02/2006", and the manual
// portfolio CSV uses a bare "20060102". Try them in order.
var brokerDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"20060102",
	time.RFC3339,
}

// ParseBrokerDate parses a date string in any of the known broker export
// layouts, returning an error when none match. Callers drop the row on
// error; an unparseable date is never fatal.
func ParseBrokerDate(dateStr string) (time.Time, error) {
	s := strings.TrimSpace(dateStr)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}
	for _, layout := range brokerDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}

// FormatDate renders a date in the default wire format.
func FormatDate(t time.Time) string {
	return t.Format(DefaultDateFormat)
}
