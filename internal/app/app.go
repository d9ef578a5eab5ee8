// Package app assembles the daemon: store, scheduling engine,
// notifier, calendar writer, audit log, HTTP server and the nightly
// maintenance job. It is the api.Service implementation and owns the
// mutation lock all write paths share.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tatkald/internal/api"
	"tatkald/internal/audit"
	"tatkald/internal/config"
	"tatkald/internal/ical"
	"tatkald/internal/model"
	"tatkald/internal/notify"
	"tatkald/internal/sched"
	"tatkald/internal/store"
	"tatkald/internal/tatkal"
	"tatkald/internal/transport/telegram"
	"tatkald/pkg/logx"
)

type App struct {
	cfg *config.Config
	loc *time.Location
	log logx.Logger

	// mu serializes the mutation paths: create, delete, file resync
	// and maintenance. Store and engine are individually safe, but a
	// mutation touches both plus the calendar artifact and those
	// three must stay consistent with each other.
	mu sync.Mutex

	store   *store.Store
	auditor *audit.Log
	engine  *sched.Engine
	notif   *notify.Service
	calw    *ical.Writer

	srv  *http.Server
	cron *cron.Cron

	now func() time.Time
}

func New(cfg *config.Config, log logx.Logger) (*App, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.Data.EntriesPath, log.With(logx.String("comp", "store")))
	if err != nil {
		return nil, err
	}
	auditor, err := audit.Open(cfg.Data.AuditPath, log.With(logx.String("comp", "audit")))
	if err != nil {
		return nil, err
	}
	calw, err := ical.NewWriter(cfg.Data.CalendarPath, log.With(logx.String("comp", "ical")))
	if err != nil {
		auditor.Close()
		return nil, err
	}

	sender, err := buildSender(cfg, log)
	if err != nil {
		auditor.Close()
		return nil, err
	}

	sendTimeout, err := config.ParseDurationOrDefault("notifier.send_timeout", cfg.Notifier.SendTimeout, 10*time.Second)
	if err != nil {
		auditor.Close()
		return nil, err
	}
	notif := notify.New(notify.Config{
		Workers:     cfg.Notifier.Workers,
		QueueSize:   cfg.Notifier.QueueSize,
		RatePerSec:  cfg.Notifier.RatePerSec,
		SendTimeout: sendTimeout,
	}, sender, auditor, loc, log.With(logx.String("comp", "notifier")))

	engine := sched.NewEngine(loc, notif, log.With(logx.String("comp", "sched")))

	a := &App{
		cfg:     cfg,
		loc:     loc,
		log:     log.With(logx.String("comp", "app")),
		store:   st,
		auditor: auditor,
		engine:  engine,
		notif:   notif,
		calw:    calw,
		now:     time.Now,
	}
	a.srv = a.buildServer(cfg, log)
	return a, nil
}

func buildSender(cfg *config.Config, log logx.Logger) (notify.Sender, error) {
	if !cfg.Telegram.Enabled {
		log.Info("telegram disabled, reminders go to the log only")
		return logSender{log: log.With(logx.String("comp", "sender"))}, nil
	}
	sendTimeout, err := config.ParseDurationOrDefault("telegram.send_timeout", cfg.Telegram.SendTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	return telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		ChatID:      cfg.Telegram.ChatID,
		SendTimeout: sendTimeout,
	}, log.With(logx.String("comp", "telegram")))
}

// logSender stands in for Telegram when it is disabled. Deliveries
// still flow through the notifier pipeline and the audit log.
type logSender struct {
	log logx.Logger
}

func (s logSender) SendText(_ context.Context, target, text string) error {
	s.log.Info("reminder", logx.String("target", target), logx.String("text", text))
	return nil
}

func (a *App) buildServer(cfg *config.Config, log logx.Logger) *http.Server {
	h := api.NewHandler(a, cfg.Data.CalendarPath, log.With(logx.String("comp", "api")))
	read, _ := config.ParseDurationOrDefault("server.read_timeout", cfg.Server.ReadTimeout, 5*time.Second)
	write, _ := config.ParseDurationOrDefault("server.write_timeout", cfg.Server.WriteTimeout, 10*time.Second)
	idle, _ := config.ParseDurationOrDefault("server.idle_timeout", cfg.Server.IdleTimeout, 60*time.Second)
	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      h.Router(),
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
	}
}

// Start loads the store, re-arms timers for every surviving entry,
// rebuilds the calendar artifact and brings up the notifier, the
// maintenance job, the optional file watcher and the HTTP server.
func (a *App) Start(ctx context.Context) error {
	entries, err := a.store.Load()
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}
	scheduled, skipped := a.engine.Restore(entries)
	a.log.Info("timers restored",
		logx.Int("entries", len(entries)),
		logx.Int("scheduled", scheduled),
		logx.Int("skipped", skipped))
	a.rebuildCalendar(entries)

	a.notif.Start(ctx)

	if a.cfg.Maintenance.Enabled {
		if err := a.startMaintenance(); err != nil {
			return err
		}
	}

	if a.cfg.Data.WatchEntries {
		go func() {
			if err := a.store.Watch(ctx, a.resync); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Error("entries watcher stopped", logx.Err(err))
			}
		}()
	}

	go func() {
		a.log.Info("http server listening", logx.String("addr", a.srv.Addr))
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server exited", logx.Err(err))
		}
	}()
	return nil
}

// Stop shuts the pieces down in dependency order: no new HTTP
// mutations, then no more timer callbacks, then drain the notifier,
// then close the audit log.
func (a *App) Stop(ctx context.Context) error {
	var firstErr error
	if err := a.srv.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if a.cron != nil {
		stopCtx := a.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
	}
	a.engine.Stop()
	a.notif.Stop(ctx)
	if err := a.auditor.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Create validates, persists, schedules and announces one entry, in
// that order. Validation happens before any side effect so a bad
// category or date leaves no trace.
func (a *App) Create(ctx context.Context, e model.Entry) (api.CreateResult, error) {
	cat, err := tatkal.ParseCategory(e.Category)
	if err != nil {
		return api.CreateResult{}, err
	}
	if _, err := tatkal.ResolveInstants(e.Date, cat, a.loc); err != nil {
		return api.CreateResult{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	e.ID = model.NewID(a.now())
	e.Category = string(cat)
	e.CreatedAt = a.now().UTC()

	if err := a.store.Append(e); err != nil {
		return api.CreateResult{}, err
	}
	res, err := a.engine.Schedule(e)
	if err != nil {
		return api.CreateResult{}, err
	}

	a.notif.Confirm(e, res.Instants)
	a.rebuildCalendarFromStore()

	a.log.Info("entry created",
		logx.String("id", e.ID),
		logx.String("route", e.Route()),
		logx.Time("t0", res.Instants.T0))
	return api.CreateResult{
		Entry:    e,
		Instants: res.Instants,
		PreArmed: res.PreArmed,
		T0Armed:  res.T0Armed,
	}, nil
}

func (a *App) List(ctx context.Context) ([]model.Entry, error) {
	return a.store.Load()
}

func (a *App) Delete(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, err := a.store.Remove(id)
	if err != nil {
		return err
	}
	a.engine.Cancel(id)
	a.log.Info("entry removed", logx.String("id", id), logx.String("route", e.Route()))
	a.rebuildCalendarFromStore()
	return nil
}

func (a *App) Dispatches(ctx context.Context, n int) ([]audit.Dispatch, error) {
	return a.auditor.Recent(ctx, n)
}

// resync reconciles timers and the calendar with the entries file
// after an out-of-band edit.
func (a *App) resync() {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries, err := a.store.Load()
	if err != nil {
		a.log.Error("resync: load failed", logx.Err(err))
		return
	}
	scheduled, skipped := a.engine.Restore(entries)
	a.log.Info("entries file changed, timers resynced",
		logx.Int("entries", len(entries)),
		logx.Int("scheduled", scheduled),
		logx.Int("skipped", skipped))
	a.rebuildCalendar(entries)
}

// rebuildCalendarFromStore must be called with mu held.
func (a *App) rebuildCalendarFromStore() {
	entries, err := a.store.Load()
	if err != nil {
		a.log.Error("calendar rebuild: load failed", logx.Err(err))
		return
	}
	a.rebuildCalendar(entries)
}

// rebuildCalendar regenerates the full .ics artifact. On any failure
// the previous artifact stays on disk untouched.
func (a *App) rebuildCalendar(entries []model.Entry) {
	blob, err := ical.Build(entries, a.loc, a.log)
	if err != nil {
		a.log.Error("calendar build failed, keeping previous artifact", logx.Err(err))
		return
	}
	if err := a.calw.Write(blob); err != nil {
		a.log.Error("calendar write failed, keeping previous artifact", logx.Err(err))
	}
}
