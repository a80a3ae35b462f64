package crawler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/searchcore/internal/crawler"
	"github.com/deidaraiorek/searchcore/internal/fetcher"
	"github.com/deidaraiorek/searchcore/internal/indexer"
	"github.com/deidaraiorek/searchcore/internal/storage"
)

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(context.Background(), storage.Config{Driver: storage.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// fakeFetcher serves pages from memory and remembers what was requested.
type fakeFetcher struct {
	pages map[string]string

	mu      sync.Mutex
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, fetcher.Outcome, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, url)
	f.mu.Unlock()

	page, ok := f.pages[url]
	if !ok {
		return nil, fetcher.NotFound, fetcher.ErrNotFound
	}
	return []byte(page), fetcher.OK, nil
}

func (f *fakeFetcher) Fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

func TestCrawlDepthTwoOverHTTP(t *testing.T) {
	mux := http.NewServeMux()
	serve := func(path, body string) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, body)
		})
	}
	serve("/s", `<p>start page</p><a href="/t1">first</a> <a href="/t2#top">second</a>`)
	serve("/t1", `<p>page one</p><a href="/u">onward</a> <a href="/s">back home</a>`)
	serve("/t2", `<p>page two</p>`)
	serve("/u", `<p>never fetched</p>`)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	store := newStore(t)
	c := crawler.New(
		fetcher.New("testbot", fetcher.WithClient(srv.Client())),
		indexer.New(store),
		store,
		crawler.Config{MaxDepth: 2},
	)

	report, err := c.Crawl(ctx, []string{srv.URL + "/s"})
	require.NoError(t, err)
	require.NoError(t, report.SkipErr())

	require.Len(t, report.Levels, 2)
	assert.Equal(t, []string{srv.URL + "/t1", srv.URL + "/t2"}, report.Levels[0].Next)
	assert.Equal(t, []string{srv.URL + "/u"}, report.Levels[1].Next)
	assert.Equal(t, []string{srv.URL + "/u"}, report.Frontier)
	assert.Equal(t, 3, report.IndexedCount())

	indexed, err := store.IsIndexed(ctx, srv.URL+"/u")
	require.NoError(t, err)
	assert.False(t, indexed)

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, st.Links)
	assert.Equal(t, 3, st.Indexed)
	assert.Equal(t, 4, st.Documents)
}

func scenarioPages() map[string]string {
	return map[string]string{
		"http://site.test/s": `start <a href="/t1">one</a> <a href="/t2">two</a> <a href="/t3">three</a>
			<a href="mailto:me@site.test">mail</a> <a href="/old">old</a>`,
		"http://site.test/t1": `one <a href="/u">you</a> <a href="/s">home</a> <a href="/t2">two</a>`,
		"http://site.test/t2": `two <a href="/v">vee</a> <a href="/u">you</a>`,
		"http://site.test/u":  `you`,
		"http://site.test/v":  `vee`,
	}
}

func TestCrawlFrontiersDoNotDependOnWorkers(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)
			idx := indexer.New(store)

			_, err := idx.AddToIndex(ctx, "http://site.test/old", "already indexed")
			require.NoError(t, err)

			f := &fakeFetcher{pages: scenarioPages()}
			c := crawler.New(f, idx, store, crawler.Config{MaxDepth: 3, Workers: workers})

			report, err := c.Crawl(ctx, []string{"http://site.test/s"})
			require.NoError(t, err)

			require.Len(t, report.Levels, 3)
			assert.Equal(t, []string{"http://site.test/t1", "http://site.test/t2", "http://site.test/t3"}, report.Levels[0].Next)
			assert.Equal(t, []string{"http://site.test/u", "http://site.test/v"}, report.Levels[1].Next)
			assert.Empty(t, report.Levels[2].Next)
			assert.Empty(t, report.Frontier)

			// t3 does not exist.
			require.Len(t, report.Levels[1].Skipped, 1)
			assert.Equal(t, "http://site.test/t3", report.Levels[1].Skipped[0].URL)
			assert.Equal(t, fetcher.NotFound, report.Levels[1].Skipped[0].Outcome)
			assert.ErrorIs(t, report.SkipErr(), fetcher.ErrNotFound)

			assert.ElementsMatch(t, []string{
				"http://site.test/s",
				"http://site.test/t1", "http://site.test/t2", "http://site.test/t3",
				"http://site.test/u", "http://site.test/v",
			}, f.Fetched(), "every url is fetched exactly once")
		})
	}
}

func TestCrawlStopsAtMaxDepth(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	f := &fakeFetcher{pages: scenarioPages()}
	c := crawler.New(f, indexer.New(store), store, crawler.Config{MaxDepth: 1})

	report, err := c.Crawl(ctx, []string{"http://site.test/s", "http://site.test/s"})
	require.NoError(t, err)

	require.Len(t, report.Levels, 1)
	assert.Equal(t, []string{"http://site.test/s"}, f.Fetched())
	assert.Len(t, report.Frontier, 4)
}

// failingIndexer fails to index one url.
type failingIndexer struct {
	crawler.Indexer
	failURL string
}

var errStorage = errors.New("disk full")

func (f failingIndexer) AddToIndex(ctx context.Context, url, text string) (bool, error) {
	if url == f.failURL {
		return false, errStorage
	}
	return f.Indexer.AddToIndex(ctx, url, text)
}

func TestCrawlStorageFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	f := &fakeFetcher{pages: scenarioPages()}
	idx := failingIndexer{Indexer: indexer.New(store), failURL: "http://site.test/t1"}
	c := crawler.New(f, idx, store, crawler.Config{MaxDepth: 3})

	report, err := c.Crawl(ctx, []string{"http://site.test/s"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errStorage)

	require.Len(t, report.Levels, 2)
	level := report.Levels[1]
	require.Len(t, level.Failed, 1)
	assert.Equal(t, "http://site.test/t1", level.Failed[0].URL)
	assert.Contains(t, level.Indexed, "http://site.test/t2", "the level drains before stopping")
	assert.Empty(t, level.Next)
	assert.NotContains(t, f.Fetched(), "http://site.test/u")
}

// cancelingFetcher cancels the crawl while the first page is in flight.
type cancelingFetcher struct {
	cancel context.CancelFunc
}

func (f cancelingFetcher) Fetch(ctx context.Context, url string) ([]byte, fetcher.Outcome, error) {
	f.cancel()
	return nil, fetcher.Failed, ctx.Err()
}

func TestCrawlCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newStore(t)
	c := crawler.New(cancelingFetcher{cancel: cancel}, indexer.New(store), store, crawler.Config{MaxDepth: 2})

	report, err := c.Crawl(ctx, []string{"http://site.test/s", "http://site.test/t1"})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, report.Levels, 1)
	assert.Len(t, report.Levels[0].Skipped, 2)

	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.Postings)
}

func TestCrawlWithoutSeeds(t *testing.T) {
	store := newStore(t)
	c := crawler.New(&fakeFetcher{}, indexer.New(store), store, crawler.Config{})

	report, err := c.Crawl(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Levels)
	assert.NotEqual(t, uuid.Nil, report.RunID)
}

func TestCrawlNormalizesSeeds(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	f := &fakeFetcher{pages: map[string]string{
		"http://site.test/s": `start <a href="/t">tee</a>`,
		"http://site.test/t": `tee <a href="/s">back</a>`,
	}}
	c := crawler.New(f, indexer.New(store), store, crawler.Config{MaxDepth: 3})

	report, err := c.Crawl(ctx, []string{"http://site.test/s#top", "http://site.test/s", "http://[::1"})
	require.NoError(t, err)
	assert.ErrorIs(t, report.SkipErr(), crawler.ErrInvalidSeed)

	require.Len(t, report.Levels, 2)
	assert.Equal(t, []string{"http://site.test/s"}, report.Levels[0].URLs)
	assert.Equal(t, []string{"http://site.test/t"}, report.Levels[1].URLs)
	assert.Empty(t, report.Levels[1].Next)
	assert.Equal(t, []string{"http://site.test/s", "http://site.test/t"}, f.Fetched())

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Documents)
	assert.Equal(t, 2, st.Indexed)
	assert.Equal(t, 2, st.Postings)
}
