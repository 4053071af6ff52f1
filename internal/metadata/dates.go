package metadata

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"avpackaging/internal/services"
	"avpackaging/internal/services/aspace"
)

// DateLayout is the output format for normalized dates.
const DateLayout = "2006-01-02"

type precision int

const (
	precisionYear precision = iota
	precisionMonth
	precisionDay
)

// NormalizeDates converts a catalog date record into full start and end dates.
// The start is moved to the first day of its unit and the end to the last day
// of its unit. Single dates use the begin value for both bounds, as does a
// range with no end.
func NormalizeDates(date aspace.Date) (string, string, error) {
	begin := strings.TrimSpace(date.Begin)
	if begin == "" {
		return "", "", services.Wrap(services.ErrValidation, "resolving_metadata", "normalize dates", "date record has no begin value", nil)
	}
	end := strings.TrimSpace(date.End)
	if strings.EqualFold(strings.TrimSpace(date.DateType), "single") || end == "" {
		end = begin
	}

	start, startPrecision, err := parsePartial(begin)
	if err != nil {
		return "", "", err
	}
	finish, finishPrecision, err := parsePartial(end)
	if err != nil {
		return "", "", err
	}

	start = firstOf(start, startPrecision)
	finish = lastOf(finish, finishPrecision)
	if finish.Before(start) {
		return "", "", services.Wrap(services.ErrValidation, "resolving_metadata", "normalize dates", fmt.Sprintf("end %s precedes begin %s", end, begin), nil)
	}
	return start.Format(DateLayout), finish.Format(DateLayout), nil
}

// parsePartial parses YYYY, YYYY-MM or YYYY-MM-DD. A time component after the
// date is ignored.
func parsePartial(value string) (time.Time, precision, error) {
	datePart, _, _ := strings.Cut(value, "T")
	parts := strings.Split(datePart, "-")
	invalid := func(cause error) error {
		return services.Wrap(services.ErrValidation, "resolving_metadata", "parse date", fmt.Sprintf("unrecognized date %q", value), cause)
	}
	if len(parts) == 0 || len(parts) > 3 || len(parts[0]) != 4 {
		return time.Time{}, 0, invalid(nil)
	}

	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, 0, invalid(err)
	}
	month, day := 1, 1
	p := precisionYear
	if len(parts) > 1 {
		if month, err = strconv.Atoi(parts[1]); err != nil || month < 1 || month > 12 {
			return time.Time{}, 0, invalid(err)
		}
		p = precisionMonth
	}
	if len(parts) > 2 {
		parsed, err := time.Parse(DateLayout, fmt.Sprintf("%04d-%02d-%s", year, month, parts[2]))
		if err != nil {
			return time.Time{}, 0, invalid(err)
		}
		day = parsed.Day()
		p = precisionDay
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), p, nil
}

func firstOf(t time.Time, p precision) time.Time {
	switch p {
	case precisionYear:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	case precisionMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}

func lastOf(t time.Time, p precision) time.Time {
	switch p {
	case precisionYear:
		return time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
	case precisionMonth:
		// Day zero of the next month is the last day of this one.
		return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}
