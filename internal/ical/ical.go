// Package ical renders the full entry set into a single ICS artifact:
// two short events per booking, one at the preparatory alert and one
// at the window-open instant. The artifact is rebuilt from scratch on
// every mutation rather than patched incrementally.
package ical

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"tatkald/internal/model"
	"tatkald/internal/tatkal"
	"tatkald/pkg/logx"
)

// EventDuration is the block length of each calendar event.
const EventDuration = 5 * time.Minute

const prodID = "-//tatkald//booking reminders//EN"

// Build serializes calendar events for every resolvable entry.
// Entries that no longer resolve (hand-edited store) are skipped so
// one bad record cannot take the whole calendar down.
func Build(entries []model.Entry, loc *time.Location, log logx.Logger) ([]byte, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(prodID)

	for _, e := range entries {
		cat, err := tatkal.ParseCategory(e.Category)
		if err != nil {
			log.Warn("entry skipped in calendar export", logx.String("id", e.ID), logx.Err(err))
			continue
		}
		ins, err := tatkal.ResolveInstants(e.Date, cat, loc)
		if err != nil {
			log.Warn("entry skipped in calendar export", logx.String("id", e.ID), logx.Err(err))
			continue
		}
		addEvent(cal, e, "pre", ins.PreOpen,
			fmt.Sprintf("Tatkal T-10: %s %s->%s (%s)", e.Train, e.From, e.To, e.TravelClass),
			"Prepare to book. Open IRCTC manually.")
		addEvent(cal, e, "t0", ins.T0,
			fmt.Sprintf("Tatkal T-0: %s %s->%s (%s)", e.Train, e.From, e.To, e.TravelClass),
			"Tatkal window opens. Proceed manually.")
	}

	out := cal.Serialize()
	if strings.TrimSpace(out) == "" {
		return nil, fmt.Errorf("ical: empty serialization")
	}
	return []byte(out), nil
}

func addEvent(cal *ics.Calendar, e model.Entry, suffix string, start time.Time, summary, description string) {
	ev := cal.AddEvent(fmt.Sprintf("%s-%s@tatkald", e.ID, suffix))
	ev.SetDtStampTime(start)
	ev.SetStartAt(start)
	ev.SetEndAt(start.Add(EventDuration))
	ev.SetSummary(summary)
	ev.SetDescription(description)
	ev.SetLocation("IRCTC")
	ev.SetStatus(ics.ObjectStatusConfirmed)
}

// Writer persists calendar blobs atomically. A failed write leaves the
// previous artifact on disk untouched.
type Writer struct {
	path string
	log  logx.Logger
}

func NewWriter(path string, log logx.Logger) (*Writer, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("ical: calendar path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &Writer{path: path, log: log}, nil
}

func (w *Writer) Path() string { return w.path }

func (w *Writer) Write(blob []byte) error {
	if len(blob) == 0 {
		return fmt.Errorf("ical: refusing to write empty calendar")
	}
	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return err
	}
	w.log.Debug("calendar written", logx.String("path", w.path), logx.Int("bytes", len(blob)))
	return nil
}
