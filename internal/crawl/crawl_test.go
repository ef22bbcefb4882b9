package crawl

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/AlfredBerg/rootdata-sync/internal/project"
	"github.com/AlfredBerg/rootdata-sync/internal/syncer"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPageCount(t *testing.T) {
	tests := []struct {
		label   string
		perPage int
		want    int
		wantErr bool
	}{
		{"Total 301", 30, 11, false},
		{"Total 300", 30, 10, false},
		{"Total 1", 30, 1, false},
		{"Total 0", 30, 0, false},
		{"Total 1,234", 30, 42, false},
		{"  Total   45 items", 30, 2, false},
		{"301 results", 30, 0, true},
		{"Total 10", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := PageCount(tt.label, tt.perPage)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

type fakeArchive struct {
	appended [][]string
	err      error
}

func (a *fakeArchive) AppendProjects(records []project.Record) error {
	a.appended = append(a.appended, project.Names(records))
	return a.err
}

type fakeSyncer struct {
	outcomes []syncer.Outcome
	calls    [][]string
	panicAt  int
}

func (s *fakeSyncer) SyncProjects(ctx context.Context, records []project.Record) syncer.Outcome {
	s.calls = append(s.calls, project.Names(records))
	if s.panicAt > 0 && len(s.calls) == s.panicAt {
		panic("store exploded")
	}
	if len(s.outcomes) == 0 {
		return syncer.Synced
	}
	out := s.outcomes[0]
	s.outcomes = s.outcomes[1:]
	return out
}

func listing(pages, perPage int) [][]fakeRow {
	out := make([][]fakeRow, pages)
	for p := range out {
		for i := 0; i < perPage; i++ {
			name := fmt.Sprintf("p%d-r%d", p+1, i+1)
			out[p] = append(out[p], fakeRow{html: rowHTML(name, "$1M", "")})
		}
	}
	return out
}

func newTestRunner(page *fakePage, archive Archiver, sync Syncer) (*Runner, *fakeBrowser) {
	browser := &fakeBrowser{page: page}
	site := Site{
		LoginURL:   "https://www.rootdata.com/login",
		ListingURL: "https://www.rootdata.com/Fundraising",
		Email:      "user@example.com",
		Password:   "secret",
		PageSize:   30,
	}
	r := NewRunner(func(context.Context) (Browser, error) { return browser, nil },
		site, DefaultTimings(), archive, sync, zap.NewNop())
	r.Extractor.Sleep = noSleep
	return r, browser
}

func TestRunAllPages(t *testing.T) {
	page := newFakePage(listing(3, 2)...)
	page.totalLabel = "Total 61"
	page.popup = true
	archive := &fakeArchive{}
	sync := &fakeSyncer{}
	r, browser := newTestRunner(page, archive, sync)

	res := r.Run(context.Background())

	require.NoError(t, res.Err)
	require.NotEmpty(t, res.PassID)
	require.Equal(t, 3, res.TotalPages)
	require.Equal(t, 3, res.PagesScraped)
	require.Equal(t, 6, res.ProjectsFound)
	require.Equal(t, 6, res.ProjectsSynced)
	require.False(t, res.StoppedOnExisting)
	require.Equal(t, 1, browser.closed)

	require.Equal(t, []string{r.Site.LoginURL, r.Site.ListingURL}, page.navigations)
	require.Equal(t, "user@example.com", page.fills[emailInput])
	require.Equal(t, "secret", page.fills[passwordInput])
	require.Contains(t, page.clicks, button+"|"+signInText)
	require.Equal(t, [][]string{{"p1-r1", "p1-r2"}, {"p2-r1", "p2-r2"}, {"p3-r1", "p3-r2"}}, archive.appended)
	require.Equal(t, archive.appended, sync.calls)

	var pagerClicks int
	for _, c := range page.clicks {
		if c == pagerItemSelector+`|^\s*2\s*$` || c == pagerItemSelector+`|^\s*3\s*$` {
			pagerClicks++
		}
	}
	require.Equal(t, 2, pagerClicks)
}

func TestRunStopsOnExisting(t *testing.T) {
	page := newFakePage(listing(3, 1)...)
	page.totalLabel = "Total 90"
	sync := &fakeSyncer{outcomes: []syncer.Outcome{syncer.Synced, syncer.Collision}}
	r, browser := newTestRunner(page, &fakeArchive{}, sync)

	res := r.Run(context.Background())

	require.NoError(t, res.Err)
	require.True(t, res.StoppedOnExisting)
	require.Equal(t, 2, res.PagesScraped)
	require.Equal(t, 1, res.ProjectsSynced)
	require.Len(t, sync.calls, 2)
	require.Equal(t, 1, browser.closed)
}

func TestRunContinuesOnExistingWhenDisabled(t *testing.T) {
	page := newFakePage(listing(3, 1)...)
	page.totalLabel = "Total 90"
	sync := &fakeSyncer{outcomes: []syncer.Outcome{syncer.Collision, syncer.Failed, syncer.Synced}}
	r, _ := newTestRunner(page, &fakeArchive{}, sync)
	r.StopOnExisting = false

	res := r.Run(context.Background())

	require.NoError(t, res.Err)
	require.False(t, res.StoppedOnExisting)
	require.Equal(t, 3, res.PagesScraped)
	require.Equal(t, 1, res.ProjectsSynced)
	require.Equal(t, 1, res.SyncFailures)
}

func TestRunArchiveErrorIsSwallowed(t *testing.T) {
	page := newFakePage(listing(1, 2)...)
	page.totalLabel = "Total 2"
	archive := &fakeArchive{err: errors.New("disk full")}
	sync := &fakeSyncer{}
	r, _ := newTestRunner(page, archive, sync)

	res := r.Run(context.Background())

	require.NoError(t, res.Err)
	require.Equal(t, 1, res.ArchiveFailures)
	require.Len(t, sync.calls, 1)
}

func TestRunExtractionErrorEndsPass(t *testing.T) {
	page := newFakePage(listing(2, 2)...)
	page.totalLabel = "Total 60"
	page.rowErr = 0
	sync := &fakeSyncer{}
	r, browser := newTestRunner(page, &fakeArchive{}, sync)

	res := r.Run(context.Background())

	require.Error(t, res.Err)
	require.Contains(t, res.Error, "extract page 1")
	require.Empty(t, sync.calls)
	require.Equal(t, 1, browser.closed)
}

func TestRunMissingTotalLabel(t *testing.T) {
	page := newFakePage()
	page.totalLabel = ""
	r, browser := newTestRunner(page, &fakeArchive{}, &fakeSyncer{})

	res := r.Run(context.Background())

	require.Error(t, res.Err)
	require.Contains(t, res.Error, "read total count")
	require.Equal(t, 1, browser.closed)
}

func TestRunPanicIsContained(t *testing.T) {
	page := newFakePage(listing(2, 1)...)
	page.totalLabel = "Total 60"
	r, browser := newTestRunner(page, &fakeArchive{}, &fakeSyncer{panicAt: 1})

	res := r.Run(context.Background())

	require.Error(t, res.Err)
	require.Contains(t, res.Error, "store exploded")
	require.Equal(t, 1, browser.closed)
}

func TestRunLaunchFailure(t *testing.T) {
	r, _ := newTestRunner(newFakePage(), &fakeArchive{}, &fakeSyncer{})
	r.Launch = func(context.Context) (Browser, error) { return nil, errors.New("no chromium") }

	res := r.Run(context.Background())

	require.Error(t, res.Err)
	require.Contains(t, res.Error, "launch browser")
}

func TestRunPageFailureClosesBrowser(t *testing.T) {
	r, browser := newTestRunner(newFakePage(), &fakeArchive{}, &fakeSyncer{})
	browser.pageErr = errors.New("target crashed")

	res := r.Run(context.Background())

	require.Error(t, res.Err)
	require.Equal(t, 1, browser.closed)
}
