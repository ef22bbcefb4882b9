package crawl

import (
	"context"
	"time"

	"github.com/AlfredBerg/rootdata-sync/internal/project"
	"github.com/AlfredBerg/rootdata-sync/internal/syncer"
	"go.uber.org/zap"
)

// Site is where and as whom a pass logs in.
type Site struct {
	LoginURL   string
	ListingURL string
	Email      string
	Password   string
	PageSize   int
}

type Archiver interface {
	AppendProjects(records []project.Record) error
}

type Syncer interface {
	SyncProjects(ctx context.Context, records []project.Record) syncer.Outcome
}

// Runner performs scrape passes. It is not safe for overlapping Run calls
// since the archive and failure log files are shared.
type Runner struct {
	Launch    Launcher
	Site      Site
	Extractor *Extractor
	Archive   Archiver
	Syncer    Syncer
	Logger    *zap.Logger

	// StopOnExisting ends the pass at the first page that collides with
	// projects already in the remote store.
	StopOnExisting bool
}

func NewRunner(launch Launcher, site Site, timings Timings, archive Archiver, sync Syncer, logger *zap.Logger) *Runner {
	return &Runner{
		Launch: launch,
		Site:   site,
		Extractor: &Extractor{
			Timings: timings,
			Logger:  logger.Named("extract"),
			Sleep:   syncer.Sleep,
		},
		Archive:        archive,
		Syncer:         sync,
		Logger:         logger,
		StopOnExisting: true,
	}
}

// Result summarises one pass. Err is set when the pass ended early.
type Result struct {
	PassID            string    `json:"pass_id"`
	StartedAt         time.Time `json:"started_at"`
	ElapsedSeconds    float64   `json:"elapsed_seconds"`
	TotalPages        int       `json:"total_pages"`
	PagesScraped      int       `json:"pages_scraped"`
	ProjectsFound     int       `json:"projects_found"`
	ProjectsSynced    int       `json:"projects_synced"`
	SyncFailures      int       `json:"sync_failures"`
	ArchiveFailures   int       `json:"archive_failures"`
	StoppedOnExisting bool      `json:"stopped_on_existing"`
	Error             string    `json:"error,omitempty"`

	Err error `json:"-"`
}

func (r *Result) fail(err error) {
	r.Err = err
	r.Error = err.Error()
}
