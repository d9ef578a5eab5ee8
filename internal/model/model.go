// Package model holds the persisted booking-reminder types shared by
// the store, scheduler, exporter and API layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Passenger is carried through unmodified; it is only used to build
// human-readable messages and calendar descriptions. Order matters and
// matches the order submitted by the caller.
type Passenger struct {
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Gender   string `json:"gender"`
	Berth    string `json:"berth,omitempty"`
	IDType   string `json:"idType,omitempty"`
	IDNumber string `json:"idNumber,omitempty"`
}

// Entry is one booking-reminder request. ID is generated at creation
// and never changes.
type Entry struct {
	ID          string      `json:"id"`
	Date        string      `json:"date"` // ISO calendar date, no time component
	Train       string      `json:"train"`
	From        string      `json:"from"`
	To          string      `json:"to"`
	TravelClass string      `json:"class"`
	Category    string      `json:"tatkalType"` // "AC" or "NONAC", stored uppercased
	Passengers  []Passenger `json:"passengers"`

	// NotifyTarget optionally overrides the configured destination for
	// this entry's notifications (e.g. a different chat id).
	NotifyTarget string `json:"notifyTarget,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// NewID returns a fresh time-based entry id ("T" + unix millis).
// Uniqueness only needs to hold within a single store, where entries
// are created one HTTP request at a time.
func NewID(now time.Time) string {
	return fmt.Sprintf("T%d", now.UnixMilli())
}

// Route renders "train from->to class" for log lines and messages.
func (e Entry) Route() string {
	return fmt.Sprintf("%s %s->%s %s", e.Train, e.From, e.To, e.TravelClass)
}

// PassengerNames joins passenger names in submission order.
func (e Entry) PassengerNames() string {
	names := make([]string, 0, len(e.Passengers))
	for _, p := range e.Passengers {
		names = append(names, p.Name)
	}
	return strings.Join(names, ", ")
}
