package coretools

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Renderer returns the HTML of a page after its scripts have run.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// ChromeRenderer launches a headless Chrome per page. The binary is found
// or downloaded by rod's launcher.
type ChromeRenderer struct {
	// Bin overrides the browser binary.
	Bin string
}

// Render loads url in a fresh headless browser and returns the final DOM.
func (r ChromeRenderer) Render(ctx context.Context, url string) (string, error) {
	l := launcher.New().Headless(true).Leakless(true)
	if r.Bin != "" {
		l = l.Bin(r.Bin)
	}
	defer l.Cleanup()
	defer l.Kill()

	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return "", fmt.Errorf("failed to launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("failed to connect to chrome: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return "", fmt.Errorf("failed to open page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("page load failed: %w", err)
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}
	return html, nil
}
