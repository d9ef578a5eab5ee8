package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"tatkald/internal/config"
	"tatkald/internal/tatkal"
	"tatkald/pkg/logx"
)

// startMaintenance schedules the nightly housekeeping run in the
// daemon timezone.
func (a *App) startMaintenance() error {
	spec, err := dailySpec(a.cfg.Maintenance.DailyAt)
	if err != nil {
		return err
	}
	c := cron.New(cron.WithLocation(a.loc))
	if _, err := c.AddFunc(spec, a.maintain); err != nil {
		return fmt.Errorf("maintenance schedule: %w", err)
	}
	c.Start()
	a.cron = c
	a.log.Info("maintenance scheduled",
		logx.String("daily_at", a.cfg.Maintenance.DailyAt),
		logx.String("retention", a.cfg.Maintenance.Retention))
	return nil
}

// dailySpec turns "HH:MM" into a cron spec.
func dailySpec(dailyAt string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(dailyAt), ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("maintenance.daily_at: want HH:MM, got %q", dailyAt)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("maintenance.daily_at: bad hour in %q", dailyAt)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("maintenance.daily_at: bad minute in %q", dailyAt)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// maintain prunes entries whose booking window closed longer than the
// retention ago, then resyncs timers and rebuilds the calendar.
// Entries that no longer resolve are left alone; pruning is for the
// routine case, not for destroying data it cannot interpret.
func (a *App) maintain() {
	retention, err := config.ParseDurationOrDefault("maintenance.retention", a.cfg.Maintenance.Retention, 24*time.Hour)
	if err != nil {
		a.log.Error("maintenance: bad retention", logx.Err(err))
		return
	}
	cutoff := a.now().Add(-retention)

	a.mu.Lock()
	defer a.mu.Unlock()

	entries, err := a.store.Load()
	if err != nil {
		a.log.Error("maintenance: load failed", logx.Err(err))
		return
	}

	kept := entries[:0:0]
	pruned := 0
	for _, e := range entries {
		cat, err := tatkal.ParseCategory(e.Category)
		if err != nil {
			a.log.Warn("maintenance: keeping unparseable entry",
				logx.String("id", e.ID), logx.Err(err))
			kept = append(kept, e)
			continue
		}
		t0, err := tatkal.Resolve(e.Date, cat, a.loc)
		if err != nil {
			a.log.Warn("maintenance: keeping unparseable entry",
				logx.String("id", e.ID), logx.Err(err))
			kept = append(kept, e)
			continue
		}
		if t0.Before(cutoff) {
			pruned++
			continue
		}
		kept = append(kept, e)
	}

	if pruned == 0 {
		a.log.Debug("maintenance: nothing to prune", logx.Int("entries", len(entries)))
		return
	}
	if err := a.store.Save(kept); err != nil {
		a.log.Error("maintenance: save failed", logx.Err(err))
		return
	}
	scheduled, skipped := a.engine.Restore(kept)
	a.rebuildCalendar(kept)
	a.log.Info("maintenance run complete",
		logx.Int("pruned", pruned),
		logx.Int("kept", len(kept)),
		logx.Int("scheduled", scheduled),
		logx.Int("skipped", skipped))
}
