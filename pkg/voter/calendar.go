package voter

import "dcf77clock/pkg/dcftime"

// AdvanceFields advances a persistent frame's sentinel-aware fields by
// count missed minutes, the hand-rolled calendar routine spec.md's
// design notes call for as the one place modulo-rollover arithmetic is
// written out by hand rather than reached for time.Date: unlike the
// locked-mode prediction in Vote, a frame here may have individual
// fields still unknown (-2) or invalid (-1), and the routine must leave
// those sentinels alone rather than try to roll an unknown forward.
func AdvanceFields(last *dcftime.DcfTime, count int) {
	if last.Stamp != 0 {
		last.Stamp += int64(count) * 60
	}

	if last.Min < 0 {
		return
	}
	last.Min += count
	if last.Min < 60 {
		return
	}

	carryHours := last.Min / 60
	last.Min %= 60

	if last.Hour < 0 {
		return
	}
	last.Hour += carryHours
	if last.Hour < 24 {
		return
	}

	carryDays := last.Hour / 24
	last.Hour %= 24

	if last.WDay > 0 {
		last.WDay += carryDays
		if last.WDay > 7 {
			last.WDay -= 7
		}
	}

	if last.Day < 0 {
		return
	}
	last.Day += carryDays

	if last.Mon > 0 {
		switch {
		case last.Mon == 2 && last.Year >= 0 && last.Day > 28 && last.Year%4 != 0:
			last.Day, last.Mon = 1, last.Mon+1
		case last.Mon == 2 && last.Year >= 0 && last.Day > 29 && last.Year%4 == 0:
			last.Day, last.Mon = 1, last.Mon+1
		case isShortMonth(last.Mon) && last.Day > 30:
			last.Day, last.Mon = 1, last.Mon+1
		case isLongMonth(last.Mon) && last.Day > 31:
			last.Day, last.Mon = 1, last.Mon+1
		}

		if last.Year >= 0 && last.Mon > 12 {
			last.Mon = 1
			last.Year++
			if last.Year > 99 {
				last.Year = 0
			}
		}
	}
}

func isShortMonth(mon int) bool {
	return mon == 4 || mon == 6 || mon == 9 || mon == 11
}

func isLongMonth(mon int) bool {
	switch mon {
	case 1, 3, 5, 7, 8, 10, 12:
		return true
	}
	return false
}
