package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/panjf2000/ants/v2"

	"github.com/deidaraiorek/searchcore/internal/fetcher"
	"github.com/deidaraiorek/searchcore/internal/frontier"
	"github.com/deidaraiorek/searchcore/internal/parser"
)

const (
	DefaultMaxDepth = 2
	DefaultWorkers  = 1
)

// ErrInvalidSeed is recorded in the report for seeds that do not parse as a
// URL.
var ErrInvalidSeed = errors.New("invalid seed url")

// Indexer receives the text and anchors of every fetched page.
type Indexer interface {
	AddToIndex(ctx context.Context, url, text string) (bool, error)
	AddLink(ctx context.Context, fromURL, toURL, anchorText string) (bool, error)
}

// Store answers whether a discovered URL still needs a visit.
type Store interface {
	IsIndexed(ctx context.Context, url string) (bool, error)
}

type Config struct {
	MaxDepth int
	Workers  int
}

type Crawler struct {
	config  Config
	fetcher fetcher.Fetcher
	parser  *parser.Parser
	indexer Indexer
	store   Store
	logger  *slog.Logger
}

type Option func(*Crawler)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(f fetcher.Fetcher, idx Indexer, store Store, config Config, opts ...Option) *Crawler {
	if config.MaxDepth == 0 {
		config.MaxDepth = DefaultMaxDepth
	}
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}

	c := &Crawler{
		config:  config,
		fetcher: f,
		parser:  parser.New(),
		indexer: idx,
		store:   store,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// pageResult is what one worker learned about one frontier URL.
type pageResult struct {
	url      string
	outcome  fetcher.Outcome
	fetchErr error
	storeErr error
	indexed  bool
	links    []string
}

// Crawl visits seeds and everything reachable from them breadth first, one
// level per depth up to MaxDepth. Seeds are normalized like discovered links. Fetch failures are recorded in the report
// and skipped. A storage failure stops the crawl once the current level has
// drained; so does cancellation.
func (c *Crawler) Crawl(ctx context.Context, seeds []string) (*Report, error) {
	report := &Report{RunID: uuid.New()}
	log := c.logger.With("run", report.RunID.String())

	pool, err := ants.NewPool(c.config.Workers)
	if err != nil {
		return report, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	// queued spans the whole run so no URL is scheduled twice.
	queued := make(map[string]bool)
	current := frontier.New(0)
	for _, seed := range seeds {
		url, ok := parser.Resolve(seed, seed)
		if !ok {
			log.Warn("skipping invalid seed", "seed", seed)
			report.skipErr = multierror.Append(report.skipErr, fmt.Errorf("%s: %w", seed, ErrInvalidSeed))
			continue
		}
		if current.Add(url) {
			queued[url] = true
		}
	}

	log.Info("starting crawl", "seeds", current.Len(), "max_depth", c.config.MaxDepth, "workers", c.config.Workers)

	for current.Level() < c.config.MaxDepth && !current.IsEmpty() {
		if err := ctx.Err(); err != nil {
			report.Frontier = current.URLs()
			return report, err
		}

		urls := current.URLs()
		results := c.runLevel(ctx, pool, urls)

		level := Level{Depth: current.Level(), URLs: urls}
		var storeErr *multierror.Error
		for _, r := range results {
			switch {
			case r.storeErr != nil:
				level.Failed = append(level.Failed, Skip{URL: r.url, Outcome: r.outcome, Err: r.storeErr})
				storeErr = multierror.Append(storeErr, fmt.Errorf("%s: %w", r.url, r.storeErr))
			case r.fetchErr != nil:
				level.Skipped = append(level.Skipped, Skip{URL: r.url, Outcome: r.outcome, Err: r.fetchErr})
				report.skipErr = multierror.Append(report.skipErr, fmt.Errorf("%s: %w", r.url, r.fetchErr))
			case r.indexed:
				level.Indexed = append(level.Indexed, r.url)
			}
		}

		if err := storeErr.ErrorOrNil(); err != nil {
			report.Levels = append(report.Levels, level)
			log.Error("crawl stopped by storage failure", "depth", level.Depth, "err", err)
			return report, err
		}
		if err := ctx.Err(); err != nil {
			report.Levels = append(report.Levels, level)
			return report, err
		}

		next, err := c.nextFrontier(ctx, current, results, queued)
		if err != nil {
			report.Levels = append(report.Levels, level)
			return report, err
		}
		level.Next = next.URLs()
		report.Levels = append(report.Levels, level)

		log.Info("finished level",
			"depth", level.Depth,
			"visited", len(urls),
			"indexed", len(level.Indexed),
			"skipped", len(level.Skipped),
			"next", next.Len(),
		)
		current = next
	}

	report.Frontier = current.URLs()
	log.Info("crawl completed", "levels", len(report.Levels), "indexed", report.IndexedCount(), "skipped", report.SkippedCount())
	return report, nil
}

// runLevel processes every url on the pool and waits for all of them.
// Results keep the order of urls.
func (c *Crawler) runLevel(ctx context.Context, pool *ants.Pool, urls []string) []pageResult {
	results := make([]pageResult, len(urls))

	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			results[i] = c.crawlURL(ctx, url)
		})
		if err != nil {
			wg.Done()
			results[i] = pageResult{url: url, outcome: fetcher.Failed, fetchErr: fmt.Errorf("failed to schedule fetch: %w", err)}
		}
	}
	wg.Wait()
	return results
}

func (c *Crawler) crawlURL(ctx context.Context, url string) pageResult {
	result := pageResult{url: url}
	if err := ctx.Err(); err != nil {
		result.outcome, result.fetchErr = fetcher.Failed, err
		return result
	}

	content, outcome, err := c.fetcher.Fetch(ctx, url)
	result.outcome = outcome
	if outcome != fetcher.OK {
		if err == nil {
			err = fmt.Errorf("fetch outcome %s", outcome)
		}
		c.logger.Warn("skipping url", "url", url, "outcome", outcome.String(), "err", err)
		result.fetchErr = err
		return result
	}

	doc := c.parser.Parse(content)
	result.indexed, err = c.indexer.AddToIndex(ctx, url, doc.Text)
	if err != nil {
		result.storeErr = fmt.Errorf("failed to index page: %w", err)
		return result
	}

	for _, link := range doc.Links {
		target, ok := parser.Resolve(url, link.Href)
		if !ok {
			continue
		}
		if _, err := c.indexer.AddLink(ctx, url, target, link.Text); err != nil {
			result.storeErr = fmt.Errorf("failed to add link to %s: %w", target, err)
			return result
		}
		result.links = append(result.links, target)
	}
	return result
}

// nextFrontier merges the links of a finished level in frontier order,
// keeping crawlable URLs that are neither indexed nor already queued.
func (c *Crawler) nextFrontier(ctx context.Context, current *frontier.Set, results []pageResult, queued map[string]bool) (*frontier.Set, error) {
	next := current.Next()
	for _, r := range results {
		for _, link := range r.links {
			if queued[link] || !parser.IsCrawlable(link) {
				continue
			}
			indexed, err := c.store.IsIndexed(ctx, link)
			if err != nil {
				return nil, fmt.Errorf("failed to check %s: %w", link, err)
			}
			if indexed {
				continue
			}
			queued[link] = true
			next.Add(link)
		}
	}
	return next, nil
}
