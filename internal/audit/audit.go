// Package audit keeps a small SQLite log of notification dispatch
// attempts. Delivery itself is fire-and-forget; this log is the only
// record of whether an alert actually went out.
package audit

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"tatkald/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Dispatch is one delivery attempt.
type Dispatch struct {
	At      time.Time
	EntryID string
	Kind    string // "pre", "t0", "confirm"
	Target  string
	OK      bool
	Error   string
	TookMS  int64
}

type Log struct {
	db  *sql.DB
	log logx.Logger
}

func Open(path string, log logx.Logger) (*Log, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("audit path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	l := &Log{db: db, log: log}
	if err := l.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx, string(b))
	return err
}

func (l *Log) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Record appends a dispatch row. Errors are returned, not fatal; the
// caller treats audit failures as best-effort.
func (l *Log) Record(ctx context.Context, d Dispatch) error {
	if l == nil || l.db == nil {
		return errors.New("audit log closed")
	}
	if d.At.IsZero() {
		d.At = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO dispatches(at, entry_id, kind, target, ok, err, took_ms)
		 VALUES(?,?,?,?,?,?,?)`,
		d.At.Format(time.RFC3339Nano), d.EntryID, d.Kind, nullStr(d.Target),
		boolInt(d.OK), nullStr(d.Error), d.TookMS,
	)
	return err
}

// Recent returns up to n dispatches, newest first.
func (l *Log) Recent(ctx context.Context, n int) ([]Dispatch, error) {
	if l == nil || l.db == nil {
		return nil, errors.New("audit log closed")
	}
	if n <= 0 {
		n = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT at, entry_id, kind, COALESCE(target,''), ok, COALESCE(err,''), took_ms
		 FROM dispatches ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Dispatch
	for rows.Next() {
		var d Dispatch
		var at string
		var ok int
		if err := rows.Scan(&at, &d.EntryID, &d.Kind, &d.Target, &ok, &d.Error, &d.TookMS); err != nil {
			return nil, err
		}
		if t, perr := time.Parse(time.RFC3339Nano, at); perr == nil {
			d.At = t
		}
		d.OK = ok != 0
		out = append(out, d)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
