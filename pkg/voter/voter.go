// Package voter implements the cross-minute consistency voting that
// turns individually noisy decoded minutes into a trusted, continuously
// advancing UTC timestamp (spec.md §4.4): an unlocked mode that requires
// several independently agreeing minutes before it trusts a synthesized
// stamp, and a locked mode that predicts each minute from the last and
// only tolerates brief disagreement before giving up the lock.
package voter

import "dcf77clock/pkg/dcftime"

// ZoneResolver answers, for an absolute UTC stamp, which DCF77 tz
// encoding (1=CET, 2=CEST) the real Europe/Berlin calendar is in —
// consulted in locked mode instead of trusting the broadcast tz bits,
// which only arrive already filtered through now's own decode. fallback
// is last's accepted tz; a resolver with no real zoneinfo to consult
// echoes it back rather than inventing a prediction of its own, so a
// missing zone database degrades to "trust last's tz" instead of
// actively destabilizing an otherwise healthy lock.
type ZoneResolver interface {
	TZAt(stamp int64, fallback int) int
}

// Vote folds a freshly decoded minute (now) against the persistent
// accepted frame (last) and returns the updated now. The caller is
// responsible for the lifecycle spec.md §3 describes: last becomes the
// returned now once this call completes, and now is reinitialized for
// the next minute's decode.
func Vote(now, last dcftime.DcfTime, zr ZoneResolver) dcftime.DcfTime {
	if last.Stamp == 0 {
		return voteUnlocked(now, last)
	}
	return voteLocked(now, last, zr)
}

func voteUnlocked(now, last dcftime.DcfTime) dcftime.DcfTime {
	if last.Min >= 0 {
		now.MinChk = last.MinChk
		if now.Min >= 0 {
			if now.Min == (last.Min+1)%60 {
				now.MinChk++
			} else if last.MinChk > 0 {
				now.Min = (last.Min + 1) % 60
				now.MinChk--
			}
		} else {
			now.Min = (last.Min + 1) % 60
		}
	}

	// A minute rollover implies the hour the voter is comparing
	// against must itself have rolled over.
	if now.Min == 0 && last.Hour >= 0 {
		last.Hour = (last.Hour + 1) % 24
	}

	voteGE0(&now.Hour, &now.HourChk, last.Hour, last.HourChk)
	voteGT0(&now.Day, &now.DayChk, last.Day, last.DayChk)
	voteGT0(&now.WDay, &now.WDayChk, last.WDay, last.WDayChk)
	voteGT0(&now.Mon, &now.MonChk, last.Mon, last.MonChk)
	voteGE0(&now.Year, &now.YearChk, last.Year, last.YearChk)
	voteGT0(&now.TZ, &now.TZChk, last.TZ, last.TZChk)

	if now.MinChk > 1 && now.HourChk > 1 && now.DayChk > 1 && now.WDayChk > 1 &&
		now.MonChk > 1 && now.YearChk > 1 && now.TZChk > 1 {
		if stamp, weekday, ok := dcftime.StampFromFields(now); ok {
			now.Stamp = stamp
			if weekday != now.WDay {
				now.Stamp = 0
			}
		}
	}

	return now
}

// voteGE0 applies the "known, compare-or-inherit" rule to a field whose
// valid range (including the Unset sentinel boundary) is gated at >= 0.
func voteGE0(nowF, nowChk *int, lastF, lastChk int) {
	if lastF < 0 {
		return
	}
	*nowChk = lastChk
	switch {
	case *nowF < 0:
		*nowF = lastF
	case *nowF == lastF:
		*nowChk++
	case lastChk > 0:
		*nowF = lastF
		*nowChk--
	}
}

// voteGT0 is voteGE0's counterpart for fields (day, weekday, month, tz)
// whose original C gates on a strictly-positive last value.
func voteGT0(nowF, nowChk *int, lastF, lastChk int) {
	if lastF <= 0 {
		return
	}
	*nowChk = lastChk
	switch {
	case *nowF <= 0:
		*nowF = lastF
	case *nowF == lastF:
		*nowChk++
	case lastChk > 0:
		*nowF = lastF
		*nowChk--
	}
}

func voteLocked(now, last dcftime.DcfTime, zr ZoneResolver) dcftime.DcfTime {
	now.Stamp = last.Stamp + 60
	now.StampChk = last.StampChk

	tz := zr.TZAt(now.Stamp, last.TZ)
	fields := dcftime.FieldsFromStamp(now.Stamp, tz)

	mismatches := 0

	if now.Min != fields.Min {
		if now.Min >= 0 {
			mismatches++
		}
		now.Min = fields.Min
	}
	if now.Hour != fields.Hour {
		if now.Hour >= 0 {
			mismatches++
		}
		now.Hour = fields.Hour
	}
	if now.Day != fields.Day {
		if now.Day > 0 {
			mismatches++
		}
		now.Day = fields.Day
	}
	if now.Mon != fields.Mon {
		if now.Mon > 0 {
			mismatches++
		}
		now.Mon = fields.Mon
	}
	if now.Year != fields.Year {
		if now.Year >= 0 {
			mismatches++
		}
		now.Year = fields.Year
	}
	if now.WDay != fields.WDay {
		if now.WDay > 0 {
			mismatches++
		}
		now.WDay = fields.WDay
	}
	if now.TZ != tz {
		if now.TZ >= 0 {
			mismatches++
		}
		// Preserved from the original: a tz mismatch is counted but
		// the field is held at last's value rather than snapped to
		// the freshly resolved tz, so a genuine CET/CEST changeover
		// only really takes hold once the lock is lost and unlocked
		// mode re-acquires tz from the broadcast bits.
		now.TZ = last.TZ
	}

	// The DST-change and leap-second announcement flags accumulate
	// across the minutes of the current hour and reset at min==1.
	if now.Min == 1 {
		now.DST = raw01(now.DST)
		now.LSec = raw01(now.LSec)
	} else {
		now.DST = last.DST + raw01(now.DST)
		now.LSec = last.LSec + raw01(now.LSec)
	}

	if mismatches > 0 {
		now.StampChk--
	} else {
		now.StampChk++
	}
	if now.StampChk > 10 {
		now.StampChk = 10
	}
	if now.StampChk < 0 {
		now.MinChk, now.HourChk, now.TZChk = 1, 1, 1
		now.DayChk, now.MonChk, now.WDayChk, now.YearChk = 1, 1, 1, 1
		now.Stamp = 0
	}

	return now
}

func raw01(v int) int {
	if v > 0 {
		return 1
	}
	return 0
}
