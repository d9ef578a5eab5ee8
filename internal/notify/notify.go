// Package notify is the best-effort outbound side of the daemon:
// a small queue + worker pool that rate-limits, times out and audits
// every delivery attempt. Failures are logged and recorded, never
// retried, and never propagate back into the scheduling path.
package notify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"tatkald/internal/audit"
	"tatkald/internal/model"
	"tatkald/internal/tatkal"
	"tatkald/pkg/logx"
)

// Sender delivers one text message to a destination. An empty target
// means the sender's configured default destination.
type Sender interface {
	SendText(ctx context.Context, target, text string) error
}

type Config struct {
	Workers     int
	QueueSize   int
	RatePerSec  int
	SendTimeout time.Duration
}

type item struct {
	entryID string
	kind    string // "pre", "t0", "confirm"
	target  string
	text    string
}

type Service struct {
	mu sync.Mutex

	cfg     Config
	sender  Sender
	auditor *audit.Log
	loc     *time.Location
	log     logx.Logger

	limiter *rate.Limiter
	queue   chan item
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func New(cfg Config, sender Sender, auditor *audit.Log, loc *time.Location, log logx.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:     cfg,
		sender:  sender,
		auditor: auditor,
		loc:     loc,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue != nil {
		return
	}
	s.queue = make(chan item, s.cfg.QueueSize)
	s.stopCh = make(chan struct{})

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
	s.log.Info("notifier started", logx.Int("workers", s.cfg.Workers), logx.Int("rate_per_sec", s.cfg.RatePerSec))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	s.queue = nil
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	s.log.Info("notifier stopped")
}

// PreWindow implements sched.Notifier.
func (s *Service) PreWindow(e model.Entry) {
	s.enqueue(item{entryID: e.ID, kind: "pre", target: e.NotifyTarget, text: preWindowText(e)})
}

// WindowOpen implements sched.Notifier.
func (s *Service) WindowOpen(e model.Entry) {
	s.enqueue(item{entryID: e.ID, kind: "t0", target: e.NotifyTarget, text: windowOpenText(e)})
}

// Confirm sends the booking summary right after an entry is created.
// The create response never waits for it.
func (s *Service) Confirm(e model.Entry, ins tatkal.Instants) {
	s.enqueue(item{entryID: e.ID, kind: "confirm", target: e.NotifyTarget, text: confirmText(e, ins, s.loc)})
}

func (s *Service) enqueue(it item) {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		s.log.Warn("notifier not running; dropping notification",
			logx.String("id", it.entryID), logx.String("kind", it.kind))
		return
	}
	select {
	case q <- it:
	default:
		s.log.Warn("notifier queue full; dropping notification",
			logx.String("id", it.entryID), logx.String("kind", it.kind))
	}
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()
	s.mu.Lock()
	q := s.queue
	stop := s.stopCh
	s.mu.Unlock()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case it := <-q:
			s.deliver(ctx, it)
		}
	}
}

func (s *Service) deliver(ctx context.Context, it item) {
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	start := time.Now()
	err := s.sender.SendText(sendCtx, it.target, it.text)
	cancel()
	took := time.Since(start)

	d := audit.Dispatch{
		At:      start,
		EntryID: it.entryID,
		Kind:    it.kind,
		Target:  it.target,
		OK:      err == nil,
		TookMS:  took.Milliseconds(),
	}
	if err != nil {
		d.Error = err.Error()
		s.log.Warn("notification send failed",
			logx.String("id", it.entryID), logx.String("kind", it.kind), logx.Err(err))
	} else {
		s.log.Debug("notification sent",
			logx.String("id", it.entryID), logx.String("kind", it.kind), logx.Duration("took", took))
	}

	if s.auditor != nil {
		actx, acancel := context.WithTimeout(context.Background(), 2*time.Second)
		if aerr := s.auditor.Record(actx, d); aerr != nil {
			s.log.Warn("audit record failed", logx.Err(aerr))
		}
		acancel()
	}
}
