package fetcher

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const robotsTimeout = 10 * time.Second

// robotsCache keeps one parsed robots.txt per scheme and host. Hosts that
// answer robots.txt with anything but 200 allow everything. A request that
// gets no response is not cached and is retried on the next check.
type robotsCache struct {
	client    *http.Client
	userAgent string

	mu    sync.RWMutex
	hosts map[string]*robotstxt.RobotsData
}

func newRobotsCache(client *http.Client, userAgent string) *robotsCache {
	return &robotsCache{
		client:    client,
		userAgent: userAgent,
		hosts:     make(map[string]*robotstxt.RobotsData),
	}
}

func (c *robotsCache) allowed(ctx context.Context, u *url.URL) bool {
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	c.mu.RLock()
	robots, exists := c.hosts[robotsURL]
	c.mu.RUnlock()

	if !exists {
		var answered bool
		robots, answered = c.fetch(ctx, robotsURL)
		if answered {
			c.mu.Lock()
			c.hosts[robotsURL] = robots
			c.mu.Unlock()
		}
	}
	if robots == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return robots.FindGroup(c.userAgent).Test(path)
}

// fetch reports whether the host answered at all, alongside the parsed rules.
func (c *robotsCache) fetch(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, bool) {
	ctx, cancel := context.WithTimeout(ctx, robotsTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, true
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, true
	}
	robots, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, true
	}
	return robots, true
}
