// Package syncer mirrors scraped projects into the remote store.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AlfredBerg/rootdata-sync/internal/archive"
	"github.com/AlfredBerg/rootdata-sync/internal/metrics"
	"github.com/AlfredBerg/rootdata-sync/internal/project"
	"go.uber.org/zap"
)

// Store is the remote table the engine syncs into.
type Store interface {
	ExistingNames(ctx context.Context) (map[string]struct{}, error)
	CreateProjects(ctx context.Context, records []project.Record) error
}

// FailureRecorder keeps the records of a sync call that could not be pushed.
type FailureRecorder interface {
	Record(entry archive.FailedPush) error
}

type Outcome int

const (
	Synced Outcome = iota
	// Collision means an incoming project already exists remotely, i.e.
	// the scrape has reached previously synced data.
	Collision
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Synced:
		return "synced"
	case Collision:
		return "collision"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Continue reports whether the caller should keep scraping.
func (o Outcome) Continue() bool { return o == Synced }

type Options struct {
	BatchSize        int
	MaxAttempts      int
	RateLimitBackoff time.Duration
	RetryBackoff     time.Duration
	BatchPause       time.Duration
}

func DefaultOptions() Options {
	return Options{
		BatchSize:        10,
		MaxAttempts:      3,
		RateLimitBackoff: 30 * time.Second,
		RetryBackoff:     5 * time.Second,
		BatchPause:       time.Second,
	}
}

type Engine struct {
	Store    Store
	Failures FailureRecorder
	Options  Options
	Logger   *zap.Logger

	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

type passIDKey struct{}

// WithPassID tags ctx so failure entries can be traced back to their pass.
func WithPassID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, passIDKey{}, id)
}

func passID(ctx context.Context) string {
	id, _ := ctx.Value(passIDKey{}).(string)
	return id
}

func New(store Store, failures FailureRecorder, opts Options, logger *zap.Logger) *Engine {
	return &Engine{
		Store:    store,
		Failures: failures,
		Options:  opts,
		Logger:   logger,
		Sleep:    Sleep,
		Now:      time.Now,
	}
}

// SyncProjects checks records against the names already in the store and
// uploads them in batches when none collide. Errors never escape: a failed
// call is written to the failure log and reported as Failed.
func (e *Engine) SyncProjects(ctx context.Context, records []project.Record) Outcome {
	if len(records) == 0 {
		return Synced
	}

	collided, err := e.sync(ctx, records)
	if err != nil {
		e.Logger.Error("sync failed", zap.Int("projects", len(records)), zap.Error(err))
		entry := archive.FailedPush{
			Timestamp: e.Now(),
			PassID:    passID(ctx),
			Error:     err.Error(),
			Projects:  records,
		}
		if e.Failures != nil {
			if ferr := e.Failures.Record(entry); ferr != nil {
				e.Logger.Error("could not record failed push", zap.Error(ferr))
			}
		}
		return Failed
	}
	if collided != "" {
		e.Logger.Info("found existing project, stopping sync", zap.String("project", collided))
		return Collision
	}
	return Synced
}

func (e *Engine) sync(ctx context.Context, records []project.Record) (string, error) {
	existing, err := e.Store.ExistingNames(ctx)
	if err != nil {
		return "", fmt.Errorf("query existing projects: %w", err)
	}
	for _, r := range records {
		if _, ok := existing[r.Name]; ok {
			return r.Name, nil
		}
	}

	size := e.Options.BatchSize
	if size < 1 {
		size = 1
	}
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		if err := e.pushBatch(ctx, records[start:end]); err != nil {
			return "", err
		}
		e.Logger.Info("pushed projects", zap.Int("count", end-start))
		if end == len(records) {
			break
		}
		if err := e.Sleep(ctx, e.Options.BatchPause); err != nil {
			return "", err
		}
	}
	return "", nil
}

func (e *Engine) pushBatch(ctx context.Context, batch []project.Record) error {
	attempts := max(e.Options.MaxAttempts, 1)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = e.Store.CreateProjects(ctx, batch)
		if err == nil {
			metrics.SyncBatches.WithLabelValues("ok").Inc()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == attempts {
			break
		}

		wait := e.Options.RetryBackoff
		reason := "error"
		if IsRateLimited(err) {
			wait = e.Options.RateLimitBackoff
			reason = "rate_limit"
		}
		metrics.SyncRetries.WithLabelValues(reason).Inc()
		e.Logger.Warn("batch push failed, retrying",
			zap.Int("attempt", attempt),
			zap.String("reason", reason),
			zap.Duration("wait", wait),
			zap.Error(err))
		if serr := e.Sleep(ctx, wait); serr != nil {
			return serr
		}
	}
	metrics.SyncBatches.WithLabelValues("failed").Inc()
	return fmt.Errorf("push batch after %d attempts: %w", attempts, err)
}

// IsRateLimited reports whether err carries a store throttling signal.
func IsRateLimited(err error) bool {
	var rl interface{ RateLimited() bool }
	return errors.As(err, &rl) && rl.RateLimited()
}

func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
