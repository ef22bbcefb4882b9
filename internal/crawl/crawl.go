package crawl

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AlfredBerg/rootdata-sync/internal/metrics"
	"github.com/AlfredBerg/rootdata-sync/internal/syncer"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

const (
	button        = "button"
	popupText     = "/Experience it now/i"
	emailInput    = `input[placeholder="Please enter your Email"]`
	passwordInput = `input[placeholder="Please enter your password"]`
	signInText    = "/Sign in/i"
	totalPattern  = `Total\s+[0-9][0-9,]*`
)

var totalRe = regexp.MustCompile(`Total\s+([0-9][0-9,]*)`)

// PageCount parses a "Total N" label into the number of listing pages.
func PageCount(label string, perPage int) (int, error) {
	if perPage <= 0 {
		return 0, fmt.Errorf("invalid page size %d", perPage)
	}
	m := totalRe.FindStringSubmatch(label)
	if m == nil {
		return 0, fmt.Errorf("no total count in %q", label)
	}
	total, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, fmt.Errorf("parse total count %q: %w", m[1], err)
	}
	return (total + perPage - 1) / perPage, nil
}

// Run performs one pass: log in, walk every listing page and archive and sync
// each page's projects. The browser is always closed before Run returns.
// Failures never propagate; they end the pass and are reported in Result.
func (r *Runner) Run(ctx context.Context) (res Result) {
	res = Result{PassID: uuid.NewString(), StartedAt: time.Now()}
	logger := r.Logger.With(zap.String("pass_id", res.PassID))
	ctx = syncer.WithPassID(ctx, res.PassID)
	start := time.Now()

	defer func() {
		elapsed := time.Since(start)
		res.ElapsedSeconds = elapsed.Seconds()
		metrics.PassDuration.Observe(elapsed.Seconds())
		status := "ok"
		if res.Err != nil {
			status = "failed"
		}
		metrics.Passes.WithLabelValues(status).Inc()
	}()

	var err error
	var pc panics.Catcher
	pc.Try(func() { err = r.run(ctx, &res, logger) })
	if recovered := pc.Recovered(); recovered != nil {
		err = recovered.AsError()
	}
	if err != nil {
		logger.Error("error during scraping", zap.Error(err))
		res.fail(err)
		return res
	}
	logger.Info("scrape pass finished",
		zap.Int("pages", res.PagesScraped),
		zap.Int("projects", res.ProjectsFound),
		zap.Int("synced", res.ProjectsSynced),
		zap.Int("sync_failures", res.SyncFailures))
	return res
}

func (r *Runner) run(ctx context.Context, res *Result, logger *zap.Logger) error {
	browser, err := r.Launch(ctx)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			logger.Warn("failed closing browser", zap.Error(err))
		}
	}()

	page, err := browser.NewPage(ctx)
	if err != nil {
		return err
	}
	if err := r.login(ctx, page, logger); err != nil {
		return err
	}
	total, err := r.openListing(ctx, page, logger)
	if err != nil {
		return err
	}
	res.TotalPages = total

	timings := r.Extractor.Timings
	for current := 1; current <= total; current++ {
		logger.Info("scraping page", zap.Int("page", current), zap.Int("total", total))

		if err := page.WaitFor(ctx, "table", timings.Element); err != nil {
			return err
		}
		records, err := r.Extractor.Extract(ctx, page, current)
		if err != nil {
			return fmt.Errorf("extract page %d: %w", current, err)
		}
		res.PagesScraped++
		res.ProjectsFound += len(records)
		metrics.PagesScraped.Inc()
		metrics.ProjectsScraped.Add(float64(len(records)))

		if err := r.Archive.AppendProjects(records); err != nil {
			res.ArchiveFailures++
			logger.Error("error appending to archive", zap.Int("page", current), zap.Error(err))
		}

		outcome := r.Syncer.SyncProjects(ctx, records)
		switch outcome {
		case syncer.Synced:
			res.ProjectsSynced += len(records)
		case syncer.Failed:
			res.SyncFailures++
		}
		logger.Info("page done",
			zap.Int("page", current),
			zap.Int("added", len(records)),
			zap.Stringer("sync", outcome))

		if outcome == syncer.Collision && r.StopOnExisting {
			res.StoppedOnExisting = true
			logger.Info("stopping scrape as existing projects found", zap.Int("page", current))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if current < total {
			if err := r.Extractor.NextPage(ctx, page, current+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Runner) login(ctx context.Context, page Page, logger *zap.Logger) error {
	if err := page.Navigate(ctx, r.Site.LoginURL); err != nil {
		return err
	}
	r.dismissPopup(ctx, page, logger)

	t := r.Extractor.Timings
	if err := page.Fill(ctx, emailInput, r.Site.Email, t.Element); err != nil {
		return fmt.Errorf("fill email: %w", err)
	}
	if err := page.Fill(ctx, passwordInput, r.Site.Password, t.Element); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	if err := page.Click(ctx, button, signInText, t.Element); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	// there is no success marker; a login that did not stick shows up as
	// a missing listing table later on
	return r.Extractor.Sleep(ctx, t.LoginSettle)
}

func (r *Runner) openListing(ctx context.Context, page Page, logger *zap.Logger) (int, error) {
	if err := page.Navigate(ctx, r.Site.ListingURL); err != nil {
		return 0, err
	}
	r.dismissPopup(ctx, page, logger)

	label, err := page.FindText(ctx, totalPattern, r.Extractor.Timings.Element)
	if err != nil {
		return 0, fmt.Errorf("read total count: %w", err)
	}
	total, err := PageCount(label, r.Site.PageSize)
	if err != nil {
		return 0, err
	}
	logger.Info("total items to scrape", zap.String("label", label), zap.Int("pages", total))
	return total, nil
}

// dismissPopup closes the intro dialog when it shows up. Its absence is normal.
func (r *Runner) dismissPopup(ctx context.Context, page Page, logger *zap.Logger) {
	t := r.Extractor.Timings
	err := page.Click(ctx, button, popupText, t.PopupWait)
	if err != nil {
		if ctx.Err() == nil {
			logger.Info("no popup found or already closed")
		}
		return
	}
	_ = r.Extractor.Sleep(ctx, t.PopupSettle)
}
