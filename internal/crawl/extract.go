package crawl

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/AlfredBerg/rootdata-sync/internal/project"
	"go.uber.org/zap"
)

const (
	rowSelector       = "table tbody tr"
	moreSelector      = "td:nth-of-type(6) .more_btn"
	overlaySelector   = ".v-dialog"
	closeSelector     = ".dialog_close"
	pagerSelector     = ".el-pagination .el-pager"
	pagerItemSelector = ".el-pagination .el-pager li.number"
)

// Extractor reads project rows off the fundraising listing and moves
// between its pages.
type Extractor struct {
	Timings Timings
	Logger  *zap.Logger
	Sleep   func(ctx context.Context, d time.Duration) error
}

// Extract reads every row of the current page in DOM order. Inline data is
// parsed first; rows with collapsed investors are then expanded through the
// overlay dialog, which is closed again before the next row. The first row
// error aborts the page.
func (e *Extractor) Extract(ctx context.Context, page Page, pageNum int) ([]project.Record, error) {
	rows, err := page.Rows(ctx, rowSelector)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	base, _ := url.Parse(page.URL())

	records := make([]project.Record, 0, len(rows))
	for i, row := range rows {
		html, err := row.HTML()
		if err != nil {
			return nil, fmt.Errorf("row %d: read html: %w", i+1, err)
		}
		parsed, ok, err := ParseRow(html)
		if err != nil {
			return nil, fmt.Errorf("row %d: parse: %w", i+1, err)
		}
		if !ok {
			continue
		}
		if parsed.HasMore {
			investors, err := e.expandInvestors(ctx, page, row)
			if err != nil {
				return nil, fmt.Errorf("row %d: expand investors: %w", i+1, err)
			}
			parsed.Raw.Investors = investors
		}

		rec, ok := project.Normalize(parsed.Raw, base)
		if !ok {
			e.Logger.Debug("skipping row without project name", zap.Int("page", pageNum), zap.Int("row", i+1))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (e *Extractor) expandInvestors(ctx context.Context, page Page, row Node) ([]project.RawInvestor, error) {
	if err := row.Click(ctx, moreSelector, e.Timings.Element); err != nil {
		return nil, err
	}
	if err := e.Sleep(ctx, e.Timings.OverlayOpen); err != nil {
		return nil, err
	}

	overlay, err := page.Overlay(ctx, overlaySelector, e.Timings.Element)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.Logger.Warn("investor dialog did not open", zap.Error(err))
		return nil, nil
	}
	html, err := overlay.HTML()
	if err != nil {
		return nil, fmt.Errorf("read dialog: %w", err)
	}
	investors, hasClose, err := ParseOverlay(html)
	if err != nil {
		return nil, fmt.Errorf("parse dialog: %w", err)
	}

	if hasClose {
		if err := overlay.Click(ctx, closeSelector, e.Timings.Element); err != nil {
			return nil, fmt.Errorf("close dialog: %w", err)
		}
		if err := overlay.WaitHidden(ctx, e.Timings.Element); err != nil {
			e.Logger.Warn("investor dialog still visible after close", zap.Error(err))
		}
		if err := e.Sleep(ctx, e.Timings.OverlayClose); err != nil {
			return nil, err
		}
	}
	return investors, nil
}

// NextPage clicks the pager entry labelled next and waits for the new rows.
func (e *Extractor) NextPage(ctx context.Context, page Page, next int) error {
	if err := page.WaitFor(ctx, pagerSelector, e.Timings.Element); err != nil {
		return err
	}
	if err := page.Click(ctx, pagerItemSelector, fmt.Sprintf(`^\s*%d\s*$`, next), e.Timings.Element); err != nil {
		return fmt.Errorf("open page %d: %w", next, err)
	}
	if err := e.Sleep(ctx, e.Timings.PagerSettle); err != nil {
		return err
	}
	return page.WaitFor(ctx, rowSelector, e.Timings.Element)
}
