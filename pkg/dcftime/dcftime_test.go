package dcftime

import "testing"

func bitsFrom(s string) BitVector {
	bv := NewBitVector()
	for i, c := range s {
		switch c {
		case '0':
			bv[i] = Bit0
		case '1':
			bv[i] = Bit1
		}
	}
	return bv
}

func TestParityOK(t *testing.T) {
	bv := bitsFrom("1100")
	if got := Parity(&bv, 0, 4); got != ParityOK {
		t.Fatalf("Parity() = %v, want ParityOK", got)
	}
}

func TestParityRepair(t *testing.T) {
	bv := NewBitVector()
	bv[0] = Bit1
	bv[1] = Bit1
	bv[2] = BitUnknown
	bv[3] = Bit0
	if got := Parity(&bv, 0, 4); got != ParityRepaired {
		t.Fatalf("Parity() = %v, want ParityRepaired", got)
	}
	if bv[2] != Bit0 {
		t.Fatalf("repaired bit = %v, want Bit0", bv[2])
	}
}

func TestParityFailTwoUnknown(t *testing.T) {
	bv := NewBitVector()
	bv[0] = BitUnknown
	bv[1] = BitUnknown
	bv[2] = Bit0
	bv[3] = Bit0
	if got := Parity(&bv, 0, 4); got != ParityFail {
		t.Fatalf("Parity() = %v, want ParityFail", got)
	}
}

func TestBCD(t *testing.T) {
	bv := NewBitVector()
	// 23 -> units=3 (0011), tens=2 (10)
	bv[0], bv[1], bv[2], bv[3] = Bit1, Bit1, Bit0, Bit0
	units := BCD(&bv, 0, 4, 0, 9)
	if units != 3 {
		t.Fatalf("units BCD = %v, want 3", units)
	}
}

func TestBCDUnknownIsInvalid(t *testing.T) {
	bv := NewBitVector()
	bv[0] = BitUnknown
	if got := BCD(&bv, 0, 4, 0, 9); got != Invalid {
		t.Fatalf("BCD() = %v, want Invalid", got)
	}
}

func TestBCDOutOfRangeIsInvalid(t *testing.T) {
	bv := NewBitVector()
	bv[0], bv[1], bv[2], bv[3] = Bit1, Bit1, Bit1, Bit1
	if got := BCD(&bv, 0, 4, 0, 9); got != Invalid {
		t.Fatalf("BCD() = %v, want Invalid (15 out of [0,9])", got)
	}
}

// minute builds a fully-formed, structurally valid DCF77 bit vector for
// 2024-03-15 12:34 CET, weekday Friday(5).
func minute() BitVector {
	bv := NewBitVector()
	bv[0] = Bit0
	bv[20] = Bit1
	bv[17], bv[18] = Bit0, Bit1 // CET

	// minute 34: units=4(0010), tens=3(11)
	bv[21], bv[22], bv[23], bv[24] = Bit0, Bit0, Bit1, Bit0
	bv[25], bv[26], bv[27] = Bit1, Bit1, Bit0
	ones := 0
	for i := 21; i < 28; i++ {
		if bv[i] == Bit1 {
			ones++
		}
	}
	if ones%2 == 0 {
		bv[28] = Bit0
	} else {
		bv[28] = Bit1
	}

	// hour 12: units=2(0100), tens=1(1)
	bv[29], bv[30], bv[31], bv[32] = Bit0, Bit1, Bit0, Bit0
	bv[33], bv[34] = Bit1, Bit0
	ones = 0
	for i := 29; i < 35; i++ {
		if bv[i] == Bit1 {
			ones++
		}
	}
	if ones%2 == 0 {
		bv[35] = Bit0
	} else {
		bv[35] = Bit1
	}

	// day 15: units=5(1010), tens=1(10)
	bv[36], bv[37], bv[38], bv[39] = Bit1, Bit0, Bit1, Bit0
	bv[40], bv[41] = Bit1, Bit0

	// weekday 5 (Friday)
	bv[42], bv[43], bv[44] = Bit1, Bit0, Bit1

	// month 3: units=3(1100)
	bv[45], bv[46], bv[47], bv[48] = Bit1, Bit1, Bit0, Bit0
	bv[49] = Bit0

	// year 24: units=4(0010), tens=2(0100)
	bv[50], bv[51], bv[52], bv[53] = Bit0, Bit0, Bit1, Bit0
	bv[54], bv[55], bv[56], bv[57] = Bit0, Bit1, Bit0, Bit0

	ones = 0
	for i := 36; i < 58; i++ {
		if bv[i] == Bit1 {
			ones++
		}
	}
	if ones%2 == 0 {
		bv[58] = Bit0
	} else {
		bv[58] = Bit1
	}

	return bv
}

func TestDecodeFullMinute(t *testing.T) {
	bv := minute()
	d := Decode(bv)

	if d.Min != 34 {
		t.Errorf("Min = %v, want 34", d.Min)
	}
	if d.Hour != 12 {
		t.Errorf("Hour = %v, want 12", d.Hour)
	}
	if d.Day != 15 {
		t.Errorf("Day = %v, want 15", d.Day)
	}
	if d.WDay != 5 {
		t.Errorf("WDay = %v, want 5", d.WDay)
	}
	if d.Mon != 3 {
		t.Errorf("Mon = %v, want 3", d.Mon)
	}
	if d.Year != 24 {
		t.Errorf("Year = %v, want 24", d.Year)
	}
	if d.TZ != 1 {
		t.Errorf("TZ = %v, want 1 (CET)", d.TZ)
	}
	if d.Check <= 0 {
		t.Errorf("Check = %v, want positive for a clean frame", d.Check)
	}
}

func TestStampFromFieldsRoundTrip(t *testing.T) {
	bv := minute()
	d := Decode(bv)

	stamp, weekday, ok := StampFromFields(d)
	if !ok {
		t.Fatalf("StampFromFields: ok = false")
	}
	if weekday != 5 {
		t.Fatalf("weekday = %v, want 5", weekday)
	}

	back := FieldsFromStamp(stamp, d.TZ)
	if back.Min != d.Min || back.Hour != d.Hour || back.Day != d.Day || back.Mon != d.Mon || back.Year != d.Year {
		t.Fatalf("FieldsFromStamp round trip = %+v, want match to %+v", back, d)
	}
}

func TestStampFromFieldsIncomplete(t *testing.T) {
	d := New()
	if _, _, ok := StampFromFields(d); ok {
		t.Fatalf("StampFromFields on unset DcfTime: ok = true, want false")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := New()
	want.Min, want.Hour, want.Day, want.WDay, want.Mon, want.Year, want.TZ = 34, 12, 15, 5, 3, 24, 1

	bv := Encode(want)
	got := Decode(bv)

	if got.Min != want.Min || got.Hour != want.Hour || got.Day != want.Day ||
		got.WDay != want.WDay || got.Mon != want.Mon || got.Year != want.Year || got.TZ != want.TZ {
		t.Fatalf("Decode(Encode(d)) = %+v, want fields matching %+v", got, want)
	}
}

func TestDSTSuppressedOutsideWindow(t *testing.T) {
	bv := minute()
	bv[16] = Bit1 // announce DST change
	// hour is 12, outside [1,4]
	d := Decode(bv)
	if d.DST != 0 {
		t.Fatalf("DST = %v, want suppressed (0) outside the changeover window", d.DST)
	}
}

func TestLeapSecondImplausibleIsRejected(t *testing.T) {
	bv := minute() // month 3, day 15 -- not a quarter end
	bv[19] = Bit1
	d := Decode(bv)
	if d.LSec != 0 {
		t.Fatalf("LSec = %v, want rejected for an implausible date", d.LSec)
	}
}
