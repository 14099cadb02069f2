package engine

import (
	"math"
	"testing"
)

func TestAge(t *testing.T) {
	if got := Age(9, 10); got != 0 {
		t.Errorf("Age(newest) = %d, want 0", got)
	}
	if got := Age(0, 10); got != 9 {
		t.Errorf("Age(oldest) = %d, want 9", got)
	}
}

func TestRetentionFormula(t *testing.T) {
	p := DefaultParams()
	got := Retention(0.5, 10, TypeContext, p)
	want := 0.5 * math.Exp(-0.12*10)
	if math.Abs(got-want) > eps {
		t.Errorf("Retention = %v, want %v", got, want)
	}
}

func TestRetentionFloor(t *testing.T) {
	p := DefaultParams()
	for _, typ := range []EntryType{TypeDecision, TypeUserIntent} {
		floor := p.Floor(typ)
		for age := 0; age <= 300; age += 7 {
			for _, importance := range []float64{0, 0.05, 0.1, 0.5, 0.9, 1} {
				if got := Retention(importance, age, typ, p); got < floor {
					t.Fatalf("Retention(%v, %d, %s) = %v, below floor %v", importance, age, typ, got, floor)
				}
			}
		}
	}
}

func TestRetentionZeroImportanceAnchored(t *testing.T) {
	p := DefaultParams()
	if got := Retention(0, 0, TypeDecision, p); got != 0.5 {
		t.Errorf("Retention = %v, want floor 0.5", got)
	}
	if got := Retention(0, 0, TypeToolResult, p); got != 0 {
		t.Errorf("Retention = %v, want 0 for unanchored type", got)
	}
}

func TestRetentionMonotonicInAge(t *testing.T) {
	p := DefaultParams()
	for _, typ := range EntryTypes {
		prev := math.Inf(1)
		for age := 0; age < 200; age++ {
			got := Retention(0.8, age, typ, p)
			if got > prev+eps {
				t.Fatalf("%s: Retention at age %d = %v > %v at age %d", typ, age, got, prev, age-1)
			}
			prev = got
		}
	}
}

func TestRetentionUnmappedRate(t *testing.T) {
	p := DefaultParams()
	delete(p.DecayRates, TypeContext)
	got := Retention(1, 4, TypeContext, p)
	want := math.Exp(-DefaultDecayRate * 4)
	if math.Abs(got-want) > eps {
		t.Errorf("Retention = %v, want default-rate %v", got, want)
	}
}

func TestSlowTypesOutlastFastTypes(t *testing.T) {
	p := DefaultParams()
	p.RetentionFloor = nil
	decision := Retention(1, 20, TypeDecision, p)
	ephemeral := Retention(1, 20, TypeEphemeral, p)
	if decision <= ephemeral {
		t.Errorf("decision %v <= ephemeral %v at age 20", decision, ephemeral)
	}
}
