package precision

import "testing"

func TestRingMean(t *testing.T) {
	r := NewRing(4)
	r.Add(4)
	r.Add(8)
	if got, want := r.Mean(), int64(3); got != want {
		t.Fatalf("Mean() = %v, want %v", got, want)
	}
}

func TestEWMA(t *testing.T) {
	e := NewEWMA(16)
	got := e.Update(160)
	if want := int64(10); got != want {
		t.Fatalf("Update(160) = %v, want %v", got, want)
	}
}

func TestExponentBounds(t *testing.T) {
	e := NewExponent()
	if got := e.Seconds(); got != -5 {
		t.Fatalf("initial Seconds() = %v, want -5", got)
	}

	for i := 0; i < 240; i++ {
		e.Observe(100) // sub-microsecond deviation: best band
	}
	if got := e.Seconds(); got != -20 {
		t.Fatalf("after promotion Seconds() = %v, want -20", got)
	}

	for i := 0; i < 200; i++ {
		e.Observe(20_000_000) // worst band
	}
	if got := e.Seconds(); got != -5 {
		t.Fatalf("after degradation Seconds() = %v, want -5", got)
	}
}

func TestExponentAsymmetricRatchet(t *testing.T) {
	e := NewExponent()
	e.Observe(100) // promote toward -20, one step at a time
	if got := e.Seconds(); got != -5 {
		t.Fatalf("single promotion step Seconds() = %v, want -5 (value moved by 1/16)", got)
	}
}
