package object

import (
	"fmt"
	"strconv"
	"time"
)

// FormatDate renders t as a PDF date string in UTC: D:YYYYMMDDHHmmSSZ.
func FormatDate(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("D:%04d%02d%02d%02d%02d%02dZ",
		t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// ParseDate accepts any prefix of the full PDF date form, from "D:2024"
// through "D:20240102150405+01'30'". Missing fields default to their
// minimum valid value (month/day default to 1, others to 0); a missing
// offset is treated as UTC.
func ParseDate(s string) (time.Time, error) {
	if len(s) >= 2 && s[:2] == "D:" {
		s = s[2:]
	}
	if len(s) < 4 {
		return time.Time{}, fmt.Errorf("object: date string too short: %q", s)
	}

	field := func(s string, i, n int, def int) (int, string, error) {
		if len(s) < n {
			if len(s) == 0 {
				return def, s, nil
			}
			return 0, s, fmt.Errorf("object: malformed date field in %q", s)
		}
		v, err := strconv.Atoi(s[:n])
		if err != nil {
			return 0, s, fmt.Errorf("object: malformed date field in %q: %w", s, err)
		}
		return v, s[n:], nil
	}

	var err error
	year, rest, err := field(s, 0, 4, 0)
	if err != nil {
		return time.Time{}, err
	}
	month, rest, err := field(rest, 0, 2, 1)
	if err != nil {
		return time.Time{}, err
	}
	day, rest, err := field(rest, 0, 2, 1)
	if err != nil {
		return time.Time{}, err
	}
	hour, rest, err := field(rest, 0, 2, 0)
	if err != nil {
		return time.Time{}, err
	}
	minute, rest, err := field(rest, 0, 2, 0)
	if err != nil {
		return time.Time{}, err
	}
	second, rest, err := field(rest, 0, 2, 0)
	if err != nil {
		return time.Time{}, err
	}

	loc := time.UTC
	if len(rest) > 0 {
		sign := rest[0]
		rest = rest[1:]
		if sign == '+' || sign == '-' {
			offH, r2, err := field(rest, 0, 2, 0)
			if err != nil {
				return time.Time{}, err
			}
			rest = r2
			if len(rest) > 0 && rest[0] == '\'' {
				rest = rest[1:]
			}
			offM, _, err := field(rest, 0, 2, 0)
			if err != nil {
				return time.Time{}, err
			}
			offset := offH*3600 + offM*60
			if sign == '-' {
				offset = -offset
			}
			loc = time.FixedZone("", offset)
		}
		// sign == 'Z' (or anything else trailing) means UTC, already the default
	}

	if month < 1 {
		month = 1
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, loc), nil
}
