package crawl

import (
	"context"
	"time"
)

// Page is the browser tab a pass drives. Text patterns are JS regex syntax,
// optionally written as /pattern/flags.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	Fill(ctx context.Context, selector, value string, timeout time.Duration) error
	// Click clicks the first element matching selector whose text matches
	// textPattern. An empty pattern matches any element.
	Click(ctx context.Context, selector, textPattern string, timeout time.Duration) error
	// FindText waits for a text node matching pattern and returns its content.
	FindText(ctx context.Context, pattern string, timeout time.Duration) (string, error)
	// Rows returns the elements currently matching selector without waiting.
	Rows(ctx context.Context, selector string) ([]Node, error)
	// Overlay waits for the first visible element matching selector.
	Overlay(ctx context.Context, selector string, timeout time.Duration) (Node, error)
	URL() string
}

// Node is a handle to one element on the page.
type Node interface {
	HTML() (string, error)
	Click(ctx context.Context, selector string, timeout time.Duration) error
	WaitHidden(ctx context.Context, timeout time.Duration) error
}

// Browser owns one browsing context. Close must be called on every exit path.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

type Launcher func(ctx context.Context) (Browser, error)

// Timings are the fixed settle delays and waits between UI actions.
type Timings struct {
	Element      time.Duration
	PopupWait    time.Duration
	PopupSettle  time.Duration
	LoginSettle  time.Duration
	PagerSettle  time.Duration
	OverlayOpen  time.Duration
	OverlayClose time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		Element:      30 * time.Second,
		PopupWait:    5 * time.Second,
		PopupSettle:  time.Second,
		LoginSettle:  2 * time.Second,
		PagerSettle:  time.Second,
		OverlayOpen:  500 * time.Millisecond,
		OverlayClose: 200 * time.Millisecond,
	}
}
