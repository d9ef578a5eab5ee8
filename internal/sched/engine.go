package sched

import (
	"time"

	"tatkald/internal/model"
	"tatkald/internal/tatkal"
	"tatkald/pkg/logx"
)

// Notifier is the outbound side of a fired timer. Implementations are
// best-effort: they log their own failures and never return them here,
// so the scheduling path stays free of delivery concerns.
type Notifier interface {
	PreWindow(entry model.Entry)
	WindowOpen(entry model.Entry)
}

// Result reports which timers Schedule actually armed. Both false is a
// valid outcome for entries whose window already passed.
type Result struct {
	PreArmed bool
	T0Armed  bool
	Instants tatkal.Instants
}

// Engine turns entries into armed timers. It owns its Registry; no
// other code path arms or cancels booking timers.
type Engine struct {
	loc      *time.Location
	reg      *Registry
	notifier Notifier
	log      logx.Logger
}

func NewEngine(loc *time.Location, notifier Notifier, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	if loc == nil {
		loc = time.Local
	}
	reg := NewRegistry(log)
	return &Engine{
		loc:      loc,
		reg:      reg,
		notifier: notifier,
		log:      log,
	}
}

// Registry exposes the engine's timer index for read-side inspection
// (API status, tests). Arming and cancelling stay inside the engine.
func (e *Engine) Registry() *Registry { return e.reg }

// Schedule resolves both alert instants for the entry and arms a timer
// for each one still in the future. Resolution happens before any
// arming, so an invalid category or date arms nothing. Re-scheduling
// an id first cancels its previous registration, which makes Schedule
// idempotent with respect to registry state.
func (e *Engine) Schedule(entry model.Entry) (Result, error) {
	cat, err := tatkal.ParseCategory(entry.Category)
	if err != nil {
		return Result{}, err
	}
	ins, err := tatkal.ResolveInstants(entry.Date, cat, e.loc)
	if err != nil {
		return Result{}, err
	}

	e.reg.Cancel(entry.ID)

	res := Result{Instants: ins}
	ent := entry
	res.PreArmed = e.reg.Arm(entry.ID, KindPre, ins.PreOpen, func() {
		e.log.Info("pre-window alert firing",
			logx.String("id", ent.ID), logx.String("route", ent.Route()))
		e.notifier.PreWindow(ent)
	})
	res.T0Armed = e.reg.Arm(entry.ID, KindT0, ins.T0, func() {
		e.log.Info("window-open alert firing",
			logx.String("id", ent.ID), logx.String("route", ent.Route()))
		e.notifier.WindowOpen(ent)
	})

	e.log.Info("entry scheduled",
		logx.String("id", entry.ID),
		logx.String("route", entry.Route()),
		logx.Time("t0", ins.T0),
		logx.Bool("pre_armed", res.PreArmed),
		logx.Bool("t0_armed", res.T0Armed))
	return res, nil
}

// Cancel drops every armed timer for the entry id. Idempotent.
func (e *Engine) Cancel(id string) bool {
	return e.reg.Cancel(id)
}

// Restore re-schedules every entry, relying on the skip-if-past rule
// to avoid stale firings. Entries that fail to resolve (e.g. a store
// hand-edited into an invalid category) are logged and skipped rather
// than aborting the whole restore. Called at startup and after
// external store edits.
func (e *Engine) Restore(entries []model.Entry) (scheduled, skipped int) {
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		seen[entry.ID] = struct{}{}
		res, err := e.Schedule(entry)
		if err != nil {
			skipped++
			e.log.Warn("stored entry not schedulable; skipping",
				logx.String("id", entry.ID), logx.Err(err))
			continue
		}
		if res.PreArmed || res.T0Armed {
			scheduled++
		}
	}

	// Entries removed externally must lose their timers too.
	for _, id := range e.reg.ids() {
		if _, ok := seen[id]; !ok {
			e.reg.Cancel(id)
		}
	}
	return scheduled, skipped
}

func (r *Registry) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.timers))
	for id := range r.timers {
		out = append(out, id)
	}
	return out
}

// Stop cancels all armed timers. Called on shutdown.
func (e *Engine) Stop() {
	e.reg.StopAll()
	e.log.Info("scheduling engine stopped")
}
