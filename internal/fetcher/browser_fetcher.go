package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserFetcher renders pages in headless Chrome so that script-built
// content and links are visible to the parser.
type BrowserFetcher struct {
	userAgent string
	settle    time.Duration
	robots    *robotsCache
}

func NewBrowserFetcher(userAgent string) *BrowserFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &BrowserFetcher{
		userAgent: userAgent,
		settle:    2 * time.Second,
		robots:    newRobotsCache(&http.Client{Timeout: robotsTimeout}, userAgent),
	}
}

// Fetch returns the rendered outer HTML of the page. The browser does not
// expose the response status, so every failure is reported as Failed.
func (bf *BrowserFetcher) Fetch(ctx context.Context, urlStr string) ([]byte, Outcome, error) {
	u, err := parseHTTPURL(urlStr)
	if err != nil {
		return nil, Failed, err
	}
	if !bf.robots.allowed(ctx, u) {
		return nil, Failed, ErrDisallowed
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(bf.userAgent),
		chromedp.Flag("disable-downloads", true),
		chromedp.Flag("disable-plugins", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var html string
	err = chromedp.Run(browserCtx,
		chromedp.Navigate(urlStr),
		chromedp.Sleep(bf.settle),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, Failed, fmt.Errorf("browser fetch failed: %w", err)
	}
	return []byte(html), OK, nil
}
