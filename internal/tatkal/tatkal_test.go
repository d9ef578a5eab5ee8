package tatkal

import (
	"errors"
	"testing"
	"time"
)

func kolkata(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	return loc
}

func TestParseCategory(t *testing.T) {
	cases := []struct {
		raw  string
		want Category
		ok   bool
	}{
		{"AC", CategoryAC, true},
		{"ac", CategoryAC, true},
		{" Ac ", CategoryAC, true},
		{"NONAC", CategoryNonAC, true},
		{"nonac", CategoryNonAC, true},
		{"", "", false},
		{"XYZ", "", false},
		{"NON-AC", "", false},
	}
	for _, tc := range cases {
		got, err := ParseCategory(tc.raw)
		if tc.ok {
			if err != nil {
				t.Errorf("ParseCategory(%q): unexpected error %v", tc.raw, err)
				continue
			}
			if got != tc.want {
				t.Errorf("ParseCategory(%q) = %q, want %q", tc.raw, got, tc.want)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidCategory) {
			t.Errorf("ParseCategory(%q): want ErrInvalidCategory, got %v", tc.raw, err)
		}
	}
}

func TestResolveHours(t *testing.T) {
	loc := kolkata(t)

	t0, err := Resolve("2025-01-10", CategoryAC, loc)
	if err != nil {
		t.Fatalf("Resolve AC: %v", err)
	}
	want := time.Date(2025, 1, 10, 10, 0, 0, 0, loc)
	if !t0.Equal(want) {
		t.Fatalf("AC t0 = %v, want %v", t0, want)
	}

	t0, err = Resolve("2025-01-10", CategoryNonAC, loc)
	if err != nil {
		t.Fatalf("Resolve NONAC: %v", err)
	}
	want = time.Date(2025, 1, 10, 11, 0, 0, 0, loc)
	if !t0.Equal(want) {
		t.Fatalf("NONAC t0 = %v, want %v", t0, want)
	}
}

func TestResolveRejectsUnknownCategory(t *testing.T) {
	_, err := Resolve("2025-01-10", Category("XYZ"), kolkata(t))
	if !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("want ErrInvalidCategory, got %v", err)
	}
}

func TestResolveRejectsBadDate(t *testing.T) {
	for _, d := range []string{"", "10-01-2025", "2025-13-40", "notadate"} {
		if _, err := Resolve(d, CategoryAC, kolkata(t)); !errors.Is(err, ErrInvalidDate) {
			t.Errorf("Resolve(%q): want ErrInvalidDate, got %v", d, err)
		}
	}
}

func TestResolveInstantsLead(t *testing.T) {
	loc := kolkata(t)
	in, err := ResolveInstants("2025-01-10", CategoryAC, loc)
	if err != nil {
		t.Fatalf("ResolveInstants: %v", err)
	}
	if got := in.T0.Sub(in.PreOpen); got != PreOpenLead {
		t.Fatalf("lead = %v, want %v", got, PreOpenLead)
	}
	wantPre := time.Date(2025, 1, 10, 9, 50, 0, 0, loc)
	if !in.PreOpen.Equal(wantPre) {
		t.Fatalf("preOpen = %v, want %v", in.PreOpen, wantPre)
	}
}
