// Package dcftime holds the DCF77 bit vector, the decoded civil-time
// record it unpacks into, and the pure field-decoding rules — parity,
// BCD, range checks — that turn one minute's worth of bits into a
// DcfTime. It has no notion of confidence across minutes; that's
// pkg/voter's job.
package dcftime

import "time"

// Bit is a tri-state DCF77 signal symbol.
type Bit int8

const (
	// BitUnknown marks a second whose pulse could not be classified.
	BitUnknown Bit = -1
	// Bit0 is a ~100ms pulse.
	Bit0 Bit = 0
	// Bit1 is a ~200ms pulse.
	Bit1 Bit = 1
)

// Unset and Invalid are the sentinel values integer fields of a DcfTime
// take when a field hasn't been decoded yet, or decoded but failed a
// range or parity check, per the data model's sentinel convention.
const (
	Unset   = -2
	Invalid = -1
)

// BitVector is the 60 tri-state symbols of one DCF77 minute, indexed
// 0..59. Owned and reset by the frame assembler.
type BitVector [60]Bit

// NewBitVector returns a BitVector with every slot unknown.
func NewBitVector() BitVector {
	var bv BitVector
	for i := range bv {
		bv[i] = BitUnknown
	}
	return bv
}

// ParityResult is the outcome of checking an even-parity field.
type ParityResult int

const (
	// ParityOK means the field's bits satisfy even parity outright.
	ParityOK ParityResult = iota
	// ParityRepaired means exactly one bit was unknown and has been
	// filled in to satisfy even parity.
	ParityRepaired
	// ParityFail means more than one bit was unknown, or the known
	// bits fail even parity.
	ParityFail
)

// Parity checks (and, if repairable, repairs in place) the even-parity
// field bv[start : start+count], where the last bit of the range is the
// parity bit itself.
func Parity(bv *BitVector, start, count int) ParityResult {
	var ones, unknown, unknownIdx int
	unknownIdx = -1

	for i := 0; i < count-1; i++ {
		switch bv[start+i] {
		case BitUnknown:
			unknown++
			unknownIdx = start + i
		case Bit1:
			ones++
		}
	}

	parityBit := bv[start+count-1]
	if parityBit == BitUnknown {
		unknown++
		unknownIdx = start + count - 1
	}

	if unknown > 1 {
		return ParityFail
	}

	if unknown == 1 {
		if parityBit == Bit1 {
			ones++
		}
		want := Bit0
		if ones%2 != 0 {
			want = Bit1
		}
		bv[unknownIdx] = want
		return ParityRepaired
	}

	if (ones%2 == 0) == (parityBit == Bit0) {
		return ParityOK
	}
	return ParityFail
}

// BCD interprets up to 8 tri-state bits as a binary-coded number, bit i
// contributing 1<<(i%4) (so a 2-bit "tens" field still weighs 1 and 2).
// Any unknown bit, or a result outside [lo, hi], yields Invalid.
func BCD(bv *BitVector, start, count, lo, hi int) int {
	number := 0
	for i := 0; i < count; i++ {
		switch bv[start+i] {
		case BitUnknown:
			return Invalid
		case Bit1:
			number += 1 << uint(i%4)
		}
	}
	if number < lo || number > hi {
		return Invalid
	}
	return number
}

// DcfTime is the decoded civil-time tuple plus per-field confidence
// counters, a cumulative structural check score, and the voter's locked
// absolute stamp. See pkg/voter for the confidence/stamp state machine;
// Decode only ever fills the bare field values and the structural Check
// score.
type DcfTime struct {
	Min, MinChk   int
	Hour, HourChk int
	Day, DayChk   int
	WDay, WDayChk int
	Mon, MonChk   int
	Year, YearChk int
	TZ, TZChk     int
	DST           int
	LSec          int
	Alert         int

	// Check is the structural check score. New starts it at -50;
	// Decode scores each frame from 0, adding 1 per satisfied
	// structural check (sync bit, time-start bit, valid tz, valid date
	// parity, plausible leap second) and subtracting 1 per failed one.
	// The voter does not gate acceptance on it.
	Check int

	// Stamp is the absolute UTC second this minute starts at, 0 if not
	// yet locked.
	Stamp int64
	// StampChk is the locked-mode confidence counter, 0..10.
	StampChk int
}

// New returns a DcfTime in its initial, wholly unknown state.
func New() DcfTime {
	return DcfTime{
		Min: Unset, Hour: Unset, Day: Unset, WDay: Unset,
		Mon: Unset, Year: Unset, TZ: Unset, DST: Unset,
		Check: -50,
	}
}

// dstWindowLo and dstWindowHi bound the hours in which a DST-change
// announcement bit is plausible (resolving spec.md's open question: the
// original's `hour < 1 && hour > 4` guard can never suppress anything,
// since no hour is both <1 and >4 — the evident intent, matched here, is
// to suppress the bit outside the hours a CET/CEST changeover actually
// happens in).
const (
	dstWindowLo = 1
	dstWindowHi = 4
)

// Decode extracts the DCF77 payload fields from a fully accumulated
// BitVector. It does not consult or mutate any prior minute; confidence
// tracking and cross-minute voting are pkg/voter's responsibility.
func Decode(bv BitVector) DcfTime {
	d := New()
	d.Check = 0

	if bv[0] == Bit0 {
		d.Check++
	} else if bv[0] == Bit1 {
		d.Check--
	}

	if bv[20] == Bit1 {
		d.Check++
	} else {
		d.Check--
	}

	switch {
	case bv[17] == Bit0 && bv[18] == Bit1:
		d.TZ = 1 // CET
		d.Check++
	case bv[17] == Bit1 && bv[18] == Bit0:
		d.TZ = 2 // CEST
		d.Check++
	default:
		d.TZ = Invalid
		d.Check--
	}

	if Parity(&bv, 21, 8) != ParityFail {
		min := BCD(&bv, 21, 4, 0, 9)
		tens := BCD(&bv, 25, 3, 0, 5)
		if min >= 0 && tens >= 0 {
			min += tens * 10
		} else {
			min = Invalid
		}
		if min < 0 || min > 59 {
			min = Invalid
		}
		d.Min = min
	}

	if Parity(&bv, 29, 7) != ParityFail {
		hour := BCD(&bv, 29, 4, 0, 9)
		tens := BCD(&bv, 33, 2, 0, 2)
		if hour >= 0 && tens >= 0 {
			hour += tens * 10
		} else {
			hour = Invalid
		}
		if hour < 0 || hour > 23 {
			hour = Invalid
		}
		d.Hour = hour
	}

	d.DST = int(bv[16])
	if d.DST == 1 && !(d.Hour >= dstWindowLo && d.Hour <= dstWindowHi) {
		d.DST = 0
	}

	day := BCD(&bv, 36, 4, 0, 9)
	dayTens := BCD(&bv, 40, 2, 0, 3)
	if day >= 0 && dayTens >= 0 {
		day += dayTens * 10
	} else {
		day = Invalid
	}
	if day < 1 || day > 31 {
		day = Invalid
	}
	d.Day = day

	d.WDay = BCD(&bv, 42, 3, 1, 7)

	mon := BCD(&bv, 45, 4, 0, 9)
	if mon >= 0 && bv[49] == Bit1 {
		mon += 10
	}
	if mon < 1 || mon > 12 {
		mon = Invalid
	}
	d.Mon = mon

	year := BCD(&bv, 50, 4, 0, 9)
	yearTens := BCD(&bv, 54, 4, 0, 9)
	if year >= 0 && yearTens >= 0 {
		year += yearTens * 10
	} else {
		year = Invalid
	}
	d.Year = year

	if Parity(&bv, 36, 23) == ParityFail {
		d.Check--
	} else {
		d.Check++
	}

	d.LSec = int(bv[19])
	if d.LSec == 1 {
		if leapPlausible(d.Mon, d.Day) {
			d.Check++
		} else {
			d.LSec = 0
			d.Check--
		}
	}

	if bv[15] == Bit1 {
		d.Alert = 1
	}

	return d
}

// leapPlausible reports whether (mon, day) is the last day of March,
// June, September or December — the only days a leap second is ever
// announced for.
func leapPlausible(mon, day int) bool {
	switch {
	case mon == 6 && day == 30:
		return true
	case mon == 12 && day == 31:
		return true
	case mon == 3 && day == 31:
		return true
	case mon == 9 && day == 30:
		return true
	}
	return false
}

// dcfWeekday converts a time.Weekday (Sunday=0) to the DCF77 convention
// (Monday=1 .. Sunday=7).
func dcfWeekday(w time.Weekday) int {
	if w == time.Sunday {
		return 7
	}
	return int(w)
}

// StampFromFields synthesizes an absolute UTC second and the implied
// weekday from a fully decoded field set, interpreting tz as the
// local-time offset (CET=+1h, CEST=+2h) the way the original decoder's
// mktime/tm_isdst call does. ok is false if any of min, hour, day, month,
// year or tz is not a decoded value; WDay is not consulted.
func StampFromFields(d DcfTime) (stamp int64, weekday int, ok bool) {
	if d.Min < 0 || d.Hour < 0 || d.Day < 0 || d.Mon < 0 || d.Year < 0 || d.TZ < 1 || d.TZ > 2 {
		return 0, 0, false
	}

	local := time.Date(2000+d.Year, time.Month(d.Mon), d.Day, d.Hour, d.Min, 0, 0, time.UTC)
	offset := time.Duration(d.TZ) * time.Hour
	stamp = local.Add(-offset).Unix()
	weekday = dcfWeekday(time.Unix(stamp, 0).UTC().Weekday())
	return stamp, weekday, true
}

// Fields is the civil-calendar tuple FieldsFromStamp derives from an
// absolute stamp, in the same representation DcfTime's fields use.
type Fields struct {
	Min, Hour, Day, WDay, Mon, Year int
}

// FieldsFromStamp derives the local civil-calendar tuple for stamp under
// the fixed tz offset (CET=+1h, CEST=+2h), the locked-mode counterpart
// to StampFromFields.
func FieldsFromStamp(stamp int64, tz int) Fields {
	offset := time.Duration(tz) * time.Hour
	local := time.Unix(stamp, 0).UTC().Add(offset)
	return Fields{
		Min:   local.Minute(),
		Hour:  local.Hour(),
		Day:   local.Day(),
		WDay:  dcfWeekday(local.Weekday()),
		Mon:   int(local.Month()),
		Year:  local.Year() - 2000,
	}
}

// Encode synthesizes a structurally valid 60-bit BitVector for a fully
// decoded DcfTime, the inverse of Decode: sync/time-start bits, tz,
// alert/DST/leap bits and the BCD date/time fields with their even
// parity bits filled in. Used by tests that round-trip a DcfTime
// through the wire format, and by synthetic edge generators that need
// a minute's worth of bits to feed through the classifier.
func Encode(d DcfTime) BitVector {
	bv := NewBitVector()
	bv[0] = Bit0
	bv[20] = Bit1

	if d.Alert == 1 {
		bv[15] = Bit1
	}
	if d.DST == 1 {
		bv[16] = Bit1
	}
	switch d.TZ {
	case 1:
		bv[17], bv[18] = Bit0, Bit1
	case 2:
		bv[17], bv[18] = Bit1, Bit0
	}
	if d.LSec == 1 {
		bv[19] = Bit1
	}

	encodeBCD(&bv, 21, 4, d.Min%10)
	encodeBCD(&bv, 25, 3, d.Min/10)
	setParity(&bv, 21, 8)

	encodeBCD(&bv, 29, 4, d.Hour%10)
	encodeBCD(&bv, 33, 2, d.Hour/10)
	setParity(&bv, 29, 7)

	encodeBCD(&bv, 36, 4, d.Day%10)
	encodeBCD(&bv, 40, 2, d.Day/10)
	encodeBCD(&bv, 42, 3, d.WDay)
	encodeBCD(&bv, 45, 4, d.Mon%10)
	if d.Mon >= 10 {
		bv[49] = Bit1
	}
	encodeBCD(&bv, 50, 4, d.Year%10)
	encodeBCD(&bv, 54, 4, d.Year/10)
	setParity(&bv, 36, 23)

	return bv
}

// encodeBCD writes the low count bits of v (bit i weighing 1<<(i%4), BCD's
// inverse) into bv[start:start+count].
func encodeBCD(bv *BitVector, start, count, v int) {
	for i := 0; i < count; i++ {
		if v&(1<<uint(i%4)) != 0 {
			bv[start+i] = Bit1
		} else {
			bv[start+i] = Bit0
		}
	}
}

// setParity fills bv[start+count-1], the parity bit of the preceding
// count-1 data bits, so the whole range satisfies even parity.
func setParity(bv *BitVector, start, count int) {
	ones := 0
	for i := 0; i < count-1; i++ {
		if bv[start+i] == Bit1 {
			ones++
		}
	}
	if ones%2 == 0 {
		bv[start+count-1] = Bit0
	} else {
		bv[start+count-1] = Bit1
	}
}
