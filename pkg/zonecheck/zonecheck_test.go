package zonecheck

import (
	"testing"

	"github.com/ngrash/go-tz/tzif"
)

func berlinLikeResolver() *Resolver {
	// A minimal two-type table mimicking Europe/Berlin: standard time
	// (CET, +1h) before the transition, summer time (CEST, +2h) after.
	return &Resolver{
		times: []int64{1711760400}, // 2024-03-30T01:00:00Z, a CEST start
		types: []uint8{1},
		records: []tzif.LocalTimeTypeRecord{
			{Utoff: 3600, Dst: false},
			{Utoff: 7200, Dst: true},
		},
	}
}

func TestTZAtBeforeTransitionIsCET(t *testing.T) {
	r := berlinLikeResolver()
	if got := r.TZAt(1711760400-1, 0); got != 1 {
		t.Fatalf("TZAt() = %v, want 1 (CET)", got)
	}
}

func TestTZAtAfterTransitionIsCEST(t *testing.T) {
	r := berlinLikeResolver()
	if got := r.TZAt(1711760400+1, 0); got != 2 {
		t.Fatalf("TZAt() = %v, want 2 (CEST)", got)
	}
}

func TestIsDSTMatchesTZAt(t *testing.T) {
	r := berlinLikeResolver()
	if got := r.IsDST(1711760400 + 1); !got {
		t.Fatalf("IsDST() = false after transition, want true")
	}
	if got := r.IsDST(1711760400 - 1); got {
		t.Fatalf("IsDST() = true before transition, want false")
	}
}

func TestRecordAtBeforeFirstTransitionFallsBackToStandard(t *testing.T) {
	r := berlinLikeResolver()
	if got := r.TZAt(0, 0); got != 1 {
		t.Fatalf("TZAt(epoch) = %v, want 1 (CET fallback)", got)
	}
}
