package notify

import (
	"fmt"
	"strings"
	"time"

	"tatkald/internal/model"
	"tatkald/internal/tatkal"
)

const localFormat = "02 Jan 2006 • 15:04:05 MST"

func preWindowText(e model.Entry) string {
	return fmt.Sprintf("T-10 min: %s on %s\nOpen IRCTC now.", e.Route(), e.Date)
}

func windowOpenText(e model.Entry) string {
	return fmt.Sprintf("T-0: Tatkal open for %s on %s. Proceed!", e.Route(), e.Date)
}

// confirmText renders the booking summary sent right after creation,
// passenger list included, in submission order.
func confirmText(e model.Entry, ins tatkal.Instants, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("🚆 *Tatkal Booking Request*\n\n")
	fmt.Fprintf(&b, "📅 Date: *%s*\n", e.Date)
	fmt.Fprintf(&b, "🚋 Train: *%s*\n", e.Train)
	fmt.Fprintf(&b, "📍 From: *%s* → To: *%s*\n", e.From, e.To)
	fmt.Fprintf(&b, "🎟 Class: *%s*\n", e.TravelClass)
	fmt.Fprintf(&b, "⚡ Tatkal Type: *%s*\n\n", e.Category)

	b.WriteString("👥 *Passengers:*\n")
	for i, p := range e.Passengers {
		fmt.Fprintf(&b, "\n%d. *%s* (%d, %s)\n", i+1, p.Name, p.Age, p.Gender)
		berth := p.Berth
		if berth == "" {
			berth = "-"
		}
		fmt.Fprintf(&b, "   Berth: %s\n", berth)
		if p.IDType != "" && p.IDNumber != "" {
			fmt.Fprintf(&b, "   ID: %s - %s\n", p.IDType, p.IDNumber)
		}
	}

	fmt.Fprintf(&b, "\nT-10: %s\n", ins.PreOpen.In(loc).Format(localFormat))
	fmt.Fprintf(&b, "T-0 : %s\n", ins.T0.In(loc).Format(localFormat))
	return b.String()
}
