// Package sched owns the armed-timer state for booking reminders: an
// in-memory registry of single-shot timers keyed by entry id, and the
// engine that resolves an entry's alert instants and arms them.
//
// Nothing here persists; the registry is rebuilt on process start by
// re-scheduling every stored entry (Engine.Restore).
package sched

import (
	"sort"
	"sync"
	"time"

	"tatkald/pkg/logx"
)

// Kind distinguishes the two timers an entry can own.
type Kind string

const (
	KindPre Kind = "pre" // preparatory alert, 10 minutes ahead
	KindT0  Kind = "t0"  // window-open alert
)

type armed struct {
	kind Kind
	at   time.Time
	stop func() bool
}

// Registry maps entry ids to their armed timers. It guarantees at most
// one firing per armed timer: a timer that fires removes itself, and
// Cancel bumps a per-id version so late callbacks from stopped timers
// are ignored even if they were already in flight.
type Registry struct {
	mu     sync.Mutex
	timers map[string]map[Kind]*armed
	ver    map[string]uint64
	log    logx.Logger

	// test seams; default to the real clock
	now       func() time.Time
	afterFunc func(d time.Duration, f func()) func() bool
}

func NewRegistry(log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{
		timers: map[string]map[Kind]*armed{},
		ver:    map[string]uint64{},
		log:    log,
		now:    time.Now,
		afterFunc: func(d time.Duration, f func()) func() bool {
			t := time.AfterFunc(d, f)
			return t.Stop
		},
	}
}

// Arm schedules fire to run once at the given instant and registers the
// timer under (id, kind), replacing any previous timer for that pair.
// Instants not strictly in the future are refused (no past-due firing);
// the return value reports whether a timer was actually armed.
func (r *Registry) Arm(id string, kind Kind, at time.Time, fire func()) bool {
	delay := at.Sub(r.now())
	if delay <= 0 {
		return false
	}

	r.mu.Lock()
	if prev, ok := r.timers[id][kind]; ok {
		_ = prev.stop()
	}
	set := r.timers[id]
	if set == nil {
		set = map[Kind]*armed{}
		r.timers[id] = set
	}
	a := &armed{kind: kind, at: at}
	set[kind] = a
	ver := r.ver[id]

	localID, localKind, localVer := id, kind, ver
	a.stop = r.afterFunc(delay, func() {
		if !r.claim(localID, localKind, a, localVer) {
			return
		}
		fire()
	})
	r.mu.Unlock()

	r.log.Debug("timer armed",
		logx.String("id", id), logx.String("kind", string(kind)), logx.Time("at", at))
	return true
}

// claim removes the armed record if it is still current. False means
// the timer was cancelled or replaced between scheduling and firing.
func (r *Registry) claim(id string, kind Kind, a *armed, ver uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ver[id] != ver {
		return false
	}
	cur, ok := r.timers[id][kind]
	if !ok || cur != a {
		return false
	}
	delete(r.timers[id], kind)
	if len(r.timers[id]) == 0 {
		delete(r.timers, id)
	}
	return true
}

// Cancel stops every still-pending timer for id and drops the id from
// the registry. Idempotent: cancelling an unknown id is a no-op. After
// Cancel returns, no future firing for id occurs.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	set, ok := r.timers[id]
	if ok {
		for _, a := range set {
			_ = a.stop()
		}
		delete(r.timers, id)
	}
	// bump even when nothing was armed: an in-flight callback that lost
	// the stop race must still see a newer version and give up
	r.ver[id]++
	r.mu.Unlock()

	if ok {
		r.log.Debug("timers cancelled", logx.String("id", id))
	}
	return ok
}

// Kinds reports which timers are currently armed for id, sorted for
// stable output. Nil means the id is unknown.
func (r *Registry) Kinds(id string) []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.timers[id]
	if !ok {
		return nil
	}
	kinds := make([]Kind, 0, len(set))
	for k := range set {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Len returns the number of entry ids with at least one armed timer.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// StopAll cancels everything. Called on shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	for id, set := range r.timers {
		for _, a := range set {
			_ = a.stop()
		}
		r.ver[id]++
	}
	r.timers = map[string]map[Kind]*armed{}
	r.mu.Unlock()
}
