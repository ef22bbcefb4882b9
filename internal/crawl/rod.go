package crawl

import (
	"context"
	"fmt"
	"time"

	"github.com/AlfredBerg/rootdata-sync/internal/js"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

type BrowserOptions struct {
	// Bin is the browser executable. Empty downloads rod's default browser.
	Bin        string
	Headless   bool
	Stealth    bool
	Navigation time.Duration
}

// RodLauncher starts a local chromium through rod's launcher and opens an
// incognito context on it.
func RodLauncher(opts BrowserOptions, logger *zap.Logger) Launcher {
	return func(ctx context.Context) (Browser, error) {
		bin := opts.Bin
		if bin == "" {
			logger.Info("no browser binary specified, downloading default")
			path, err := launcher.NewBrowser().Get()
			if err != nil {
				return nil, fmt.Errorf("download browser: %w", err)
			}
			bin = path
		}

		l := launcher.New().
			Context(ctx).
			Headless(opts.Headless).
			Bin(bin).
			NoSandbox(true).
			Set("disable-dev-shm-usage", "true").
			Set("disable-gpu", "true")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}

		browser := rod.New().Context(ctx).ControlURL(u)
		if err := browser.Connect(); err != nil {
			l.Cleanup()
			return nil, fmt.Errorf("connect browser: %w", err)
		}

		//Don't download files in the browser
		_ = proto.BrowserSetDownloadBehavior{
			Behavior:         proto.BrowserSetDownloadBehaviorBehaviorDeny,
			BrowserContextID: browser.BrowserContextID,
		}.Call(browser)

		incognito, err := browser.Incognito()
		if err != nil {
			_ = browser.Close()
			l.Cleanup()
			return nil, fmt.Errorf("open browser context: %w", err)
		}

		logger.Info("browser started", zap.String("bin", bin), zap.Bool("headless", opts.Headless))
		return &rodBrowser{browser: browser, context: incognito, launcher: l, opts: opts}, nil
	}
}

type rodBrowser struct {
	browser  *rod.Browser
	context  *rod.Browser
	launcher *launcher.Launcher
	opts     BrowserOptions
}

func (b *rodBrowser) NewPage(ctx context.Context) (Page, error) {
	page, err := b.context.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	if b.opts.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("apply stealth script: %w", err)
		}
	}
	nav := b.opts.Navigation
	if nav <= 0 {
		nav = time.Minute
	}
	return &rodPage{page: page, navigation: nav}, nil
}

func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Cleanup()
	return err
}

type rodPage struct {
	page       *rod.Page
	navigation time.Duration
}

// Navigate loads url and waits until the network has gone idle.
func (p *rodPage) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx).Timeout(p.navigation)
	defer page.CancelTimeout()

	wait := page.WaitNavigation(proto.PageLifecycleEventNameNetworkIdle)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	wait()
	return nil
}

func (p *rodPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	page := p.page.Context(ctx).Timeout(timeout)
	defer page.CancelTimeout()

	if _, err := page.Element(selector); err != nil {
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

func (p *rodPage) Fill(ctx context.Context, selector, value string, timeout time.Duration) error {
	page := p.page.Context(ctx).Timeout(timeout)
	defer page.CancelTimeout()

	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("find %q: %w", selector, err)
	}
	return el.Input(value)
}

func (p *rodPage) Click(ctx context.Context, selector, textPattern string, timeout time.Duration) error {
	page := p.page.Context(ctx).Timeout(timeout)
	defer page.CancelTimeout()

	var el *rod.Element
	var err error
	if textPattern == "" {
		el, err = page.Element(selector)
	} else {
		el, err = page.ElementR(selector, textPattern)
	}
	if err != nil {
		return fmt.Errorf("find %q matching %q: %w", selector, textPattern, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) FindText(ctx context.Context, pattern string, timeout time.Duration) (string, error) {
	page := p.page.Context(ctx).Timeout(timeout)
	defer page.CancelTimeout()

	if err := page.Wait(rod.Eval(js.HAS_TEXT, pattern)); err != nil {
		return "", fmt.Errorf("wait for text %q: %w", pattern, err)
	}
	res, err := page.Eval(js.FIND_TEXT, pattern)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (p *rodPage) Rows(ctx context.Context, selector string) ([]Node, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	nodes := make([]Node, len(els))
	for i, el := range els {
		nodes[i] = &rodNode{el: el}
	}
	return nodes, nil
}

func (p *rodPage) Overlay(ctx context.Context, selector string, timeout time.Duration) (Node, error) {
	page := p.page.Context(ctx).Timeout(timeout)
	defer page.CancelTimeout()

	el, err := page.ElementByJS(rod.Eval(js.FIRST_VISIBLE, selector))
	if err != nil {
		return nil, err
	}
	return &rodNode{el: el.Context(ctx)}, nil
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

type rodNode struct {
	el *rod.Element
}

func (n *rodNode) HTML() (string, error) {
	return n.el.HTML()
}

func (n *rodNode) Click(ctx context.Context, selector string, timeout time.Duration) error {
	el := n.el.Context(ctx).Timeout(timeout)
	defer el.CancelTimeout()

	child, err := el.Element(selector)
	if err != nil {
		return fmt.Errorf("find %q: %w", selector, err)
	}
	return child.Click(proto.InputMouseButtonLeft, 1)
}

func (n *rodNode) WaitHidden(ctx context.Context, timeout time.Duration) error {
	el := n.el.Context(ctx).Timeout(timeout)
	defer el.CancelTimeout()
	return el.WaitInvisible()
}
