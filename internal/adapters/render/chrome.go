package render

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	perr "arledger/internal/platform/errors"
	"arledger/internal/platform/logger"
	"arledger/internal/services/dunning/domain"
)

const (
	a4WidthIn  = 210 / 25.4
	a4HeightIn = 297 / 25.4
)

// ChromeOptions configures the headless browser renderer
type ChromeOptions struct {
	// RemoteURL points at a running Chrome DevTools endpoint, empty launches a local browser
	RemoteURL string
	NoSandbox bool
	Timeout   time.Duration
	Sender    Sender
}

// Chrome prints the HTML cover letter to PDF through the Chrome DevTools Protocol
type Chrome struct {
	opts        ChromeOptions
	allocCtx    context.Context
	allocCancel context.CancelFunc
	log         *logger.Logger
}

var _ domain.Renderer = (*Chrome)(nil)

// NewChrome sets up the browser allocator, Close releases it
func NewChrome(o ChromeOptions) *Chrome {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	c := &Chrome{opts: o, log: logger.Named("render")}
	if o.RemoteURL != "" {
		c.allocCtx, c.allocCancel = chromedp.NewRemoteAllocator(context.Background(), o.RemoteURL)
		return c
	}
	flags := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if o.NoSandbox {
		flags = append(flags, chromedp.Flag("no-sandbox", true))
	}
	c.allocCtx, c.allocCancel = chromedp.NewExecAllocator(context.Background(), flags...)
	return c
}

// Render prints the cover letter of req
func (c *Chrome) Render(ctx context.Context, req domain.LetterRequest) ([]byte, error) {
	html, err := HTML(c.opts.Sender, req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	browserCtx, browserCancel := chromedp.NewContext(c.allocCtx)
	defer browserCancel()
	// tie the tab to the caller's deadline
	stop := context.AfterFunc(ctx, browserCancel)
	defer stop()

	start := time.Now()
	var pdf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(a4WidthIn).
				WithPaperHeight(a4HeightIn).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				WithPreferCSSPageSize(true).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "render: timed out after %s", c.opts.Timeout)
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "render: print letter")
	}
	if len(pdf) == 0 {
		return nil, perr.Unavailablef("render: empty document")
	}
	c.log.Debug().
		Str("group", req.GroupID.String()).
		Int("bytes", len(pdf)).
		Dur("took", time.Since(start)).
		Msg("letter printed")
	return pdf, nil
}

// Close shuts the browser allocator down
func (c *Chrome) Close() error {
	if c.allocCancel != nil {
		c.allocCancel()
	}
	return nil
}
