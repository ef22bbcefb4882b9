package crawl

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// fakePage serves listing pages of canned row HTML. A row's overlay opens
// when its more button is clicked.
type fakePage struct {
	url        string
	totalLabel string
	popup      bool
	listing    [][]fakeRow
	current    int

	overlay string
	// rowErr makes HTML() fail for the row at this index (0 based) when >= 0
	rowErr int

	navigations []string
	fills       map[string]string
	clicks      []string
	waits       []string
}

type fakeRow struct {
	html    string
	overlay string
}

func newFakePage(listing ...[]fakeRow) *fakePage {
	return &fakePage{
		url:        "https://www.rootdata.com/Fundraising",
		totalLabel: "Total 301",
		listing:    listing,
		rowErr:     -1,
		fills:      map[string]string{},
	}
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.navigations = append(p.navigations, url)
	return nil
}

func (p *fakePage) WaitFor(_ context.Context, selector string, _ time.Duration) error {
	p.waits = append(p.waits, selector)
	return nil
}

func (p *fakePage) Fill(_ context.Context, selector, value string, _ time.Duration) error {
	p.fills[selector] = value
	return nil
}

func (p *fakePage) Click(_ context.Context, selector, pattern string, _ time.Duration) error {
	p.clicks = append(p.clicks, selector+"|"+pattern)
	switch {
	case pattern == popupText:
		if !p.popup {
			return errors.New("element not found")
		}
		p.popup = false
	case selector == pagerItemSelector:
		p.current++
		if p.current >= len(p.listing) {
			return fmt.Errorf("no page %d", p.current+1)
		}
	}
	return nil
}

func (p *fakePage) FindText(context.Context, string, time.Duration) (string, error) {
	if p.totalLabel == "" {
		return "", errors.New("timeout")
	}
	return p.totalLabel, nil
}

func (p *fakePage) Rows(context.Context, string) ([]Node, error) {
	if p.current >= len(p.listing) {
		return nil, nil
	}
	rows := p.listing[p.current]
	nodes := make([]Node, len(rows))
	for i, r := range rows {
		nodes[i] = &fakeNode{page: p, html: r.html, overlay: r.overlay, fail: i == p.rowErr}
	}
	return nodes, nil
}

func (p *fakePage) Overlay(context.Context, string, time.Duration) (Node, error) {
	if p.overlay == "" {
		return nil, errors.New("timeout")
	}
	return &fakeNode{page: p, html: p.overlay, isOverlay: true}, nil
}

func (p *fakePage) URL() string { return p.url }

type fakeNode struct {
	page      *fakePage
	html      string
	overlay   string
	isOverlay bool
	fail      bool
}

func (n *fakeNode) HTML() (string, error) {
	if n.fail {
		return "", errors.New("node detached")
	}
	return n.html, nil
}

func (n *fakeNode) Click(_ context.Context, selector string, _ time.Duration) error {
	n.page.clicks = append(n.page.clicks, "node "+selector)
	if n.isOverlay {
		n.page.overlay = ""
		return nil
	}
	n.page.overlay = n.overlay
	return nil
}

func (n *fakeNode) WaitHidden(context.Context, time.Duration) error { return nil }

type fakeBrowser struct {
	page    *fakePage
	pageErr error
	closed  int
}

func (b *fakeBrowser) NewPage(context.Context) (Page, error) {
	if b.pageErr != nil {
		return nil, b.pageErr
	}
	return b.page, nil
}

func (b *fakeBrowser) Close() error {
	b.closed++
	return nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func rowHTML(name, amount, investors string) string {
	return fmt.Sprintf(`<tr>
<td><a href="/Projects/detail/%[1]s"><img src="https://img.rootdata.com/%[1]s.png"><span class="list_name"> %[1]s </span></a></td>
<td> Seed </td>
<td> %[2]s </td>
<td> -- </td>
<td> Jan 02, 2024 </td>
<td>%[3]s</td>
</tr>`, name, amount, investors)
}
