package ical

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"

	"tatkald/internal/model"
	"tatkald/pkg/logx"
)

func kolkata(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	return loc
}

func entries() []model.Entry {
	return []model.Entry{
		{ID: "T1", Date: "2025-01-10", Train: "12345", From: "NDLS", To: "BCT", TravelClass: "3A", Category: "AC"},
		{ID: "T2", Date: "2025-01-12", Train: "22691", From: "SBC", To: "NZM", TravelClass: "SL", Category: "NONAC"},
	}
}

func TestBuildTwoEventsPerEntry(t *testing.T) {
	blob, err := Build(entries(), kolkata(t), logx.Nop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	cal, err := ics.ParseCalendar(bytes.NewReader(blob))
	if err != nil {
		t.Fatalf("generated calendar does not parse: %v", err)
	}
	evs := cal.Events()
	if len(evs) != 4 {
		t.Fatalf("got %d events, want 4", len(evs))
	}

	var summaries []string
	for _, ev := range evs {
		if p := ev.GetProperty(ics.ComponentPropertySummary); p != nil {
			summaries = append(summaries, p.Value)
		}
		if p := ev.GetProperty(ics.ComponentPropertyLocation); p == nil || p.Value != "IRCTC" {
			t.Errorf("event missing IRCTC location")
		}
	}
	joined := strings.Join(summaries, "\n")
	for _, want := range []string{
		"Tatkal T-10: 12345 NDLS->BCT (3A)",
		"Tatkal T-0: 12345 NDLS->BCT (3A)",
		"Tatkal T-0: 22691 SBC->NZM (SL)",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("summaries missing %q:\n%s", want, joined)
		}
	}
}

func TestBuildEventTimes(t *testing.T) {
	loc := kolkata(t)
	blob, err := Build(entries()[:1], loc, logx.Nop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	cal, err := ics.ParseCalendar(bytes.NewReader(blob))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	wantPre := time.Date(2025, 1, 10, 9, 50, 0, 0, loc)
	wantT0 := time.Date(2025, 1, 10, 10, 0, 0, 0, loc)
	seenPre, seenT0 := false, false
	for _, ev := range cal.Events() {
		start, err := ev.GetStartAt()
		if err != nil {
			t.Fatalf("GetStartAt: %v", err)
		}
		end, err := ev.GetEndAt()
		if err != nil {
			t.Fatalf("GetEndAt: %v", err)
		}
		if got := end.Sub(start); got != EventDuration {
			t.Errorf("event duration = %v, want %v", got, EventDuration)
		}
		switch {
		case start.Equal(wantPre):
			seenPre = true
		case start.Equal(wantT0):
			seenT0 = true
		}
	}
	if !seenPre || !seenT0 {
		t.Fatalf("expected events at %v and %v", wantPre, wantT0)
	}
}

func TestBuildSkipsUnresolvableEntries(t *testing.T) {
	es := entries()
	es[1].Category = "XYZ"
	blob, err := Build(es, kolkata(t), logx.Nop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	cal, err := ics.ParseCalendar(bytes.NewReader(blob))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := len(cal.Events()); got != 2 {
		t.Fatalf("got %d events, want 2 (broken entry skipped)", got)
	}
}

func TestWriterAtomicReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal", "tatkal-events.ics")
	w, err := NewWriter(path, logx.Nop())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	if err := w.Write([]byte("first")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Write([]byte("second")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "second" {
		t.Fatalf("content = %q", b)
	}

	// An empty blob is a failure and must not clobber the artifact.
	if err := w.Write(nil); err == nil {
		t.Fatal("Write(nil) succeeded")
	}
	b, _ = os.ReadFile(path)
	if string(b) != "second" {
		t.Fatalf("failed write clobbered artifact: %q", b)
	}
}
