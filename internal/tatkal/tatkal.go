// Package tatkal implements the booking-window time rule: given a
// travel date and a quota category it yields the absolute instant the
// Tatkal window opens in a given zone. Pure; no clock, no I/O.
package tatkal

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category selects the window-open hour.
type Category string

const (
	CategoryAC    Category = "AC"    // window opens 10:00
	CategoryNonAC Category = "NONAC" // window opens 11:00
)

// PreOpenLead is how long before the window-open instant the
// preparatory alert fires.
const PreOpenLead = 10 * time.Minute

const dateLayout = "2006-01-02"

var (
	ErrInvalidCategory = errors.New("invalid tatkal category")
	ErrInvalidDate     = errors.New("invalid travel date")
)

// ParseCategory validates a raw category string, case-insensitively.
// Unknown values are rejected: a typo'd category must never silently
// book the wrong hour.
func ParseCategory(raw string) (Category, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(CategoryAC):
		return CategoryAC, nil
	case string(CategoryNonAC):
		return CategoryNonAC, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, raw)
	}
}

func (c Category) openHour() int {
	if c == CategoryAC {
		return 10
	}
	return 11
}

// Instants are the two alert moments derived for one entry.
type Instants struct {
	T0      time.Time // window opens
	PreOpen time.Time // T0 - PreOpenLead
}

// Resolve maps (ISO date, category, zone) to the window-open instant.
// Zone-aware throughout; DST shifts are absorbed by time.Date.
func Resolve(dateISO string, cat Category, loc *time.Location) (time.Time, error) {
	if _, err := ParseCategory(string(cat)); err != nil {
		return time.Time{}, err
	}
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(dateISO), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, dateISO)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), cat.openHour(), 0, 0, 0, loc), nil
}

// ResolveInstants resolves both alert instants for an entry.
func ResolveInstants(dateISO string, cat Category, loc *time.Location) (Instants, error) {
	t0, err := Resolve(dateISO, cat, loc)
	if err != nil {
		return Instants{}, err
	}
	return Instants{T0: t0, PreOpen: t0.Add(-PreOpenLead)}, nil
}
