package compute

import (
	"time"
)

// resolveTimezone turns a timestamp type's timezone string into a location.
// Fixed offsets of the form "+HH", "+HHMM" or "+HH:MM" (and their negative
// counterparts) are handled directly; anything else is looked up as an IANA
// zone name. An empty string means no timezone and resolves to UTC.
func resolveTimezone(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	if tz[0] == '+' || tz[0] == '-' {
		loc, ok := parseFixedOffset(tz)
		if !ok {
			return nil, errInvalidTimezone(tz)
		}
		return loc, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, errInvalidTimezone(tz)
	}
	return loc, nil
}

func parseFixedOffset(tz string) (*time.Location, bool) {
	sign := 1
	if tz[0] == '-' {
		sign = -1
	}
	rest := tz[1:]

	var hh, mm int
	switch len(rest) {
	case 2: // +HH
		var ok bool
		if hh, ok = twoDigits(rest); !ok {
			return nil, false
		}
	case 4: // +HHMM
		var ok bool
		if hh, ok = twoDigits(rest[:2]); !ok {
			return nil, false
		}
		if mm, ok = twoDigits(rest[2:]); !ok {
			return nil, false
		}
	case 5: // +HH:MM
		if rest[2] != ':' {
			return nil, false
		}
		var ok bool
		if hh, ok = twoDigits(rest[:2]); !ok {
			return nil, false
		}
		if mm, ok = twoDigits(rest[3:]); !ok {
			return nil, false
		}
	default:
		return nil, false
	}
	if hh > 23 || mm > 59 {
		return nil, false
	}
	offset := sign * (hh*3600 + mm*60)
	return time.FixedZone(tz, offset), true
}

func twoDigits(s string) (int, bool) {
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}
