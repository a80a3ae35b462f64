// Package storetest holds a conformance suite that every storage dialect
// must pass.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/deidaraiorek/searchcore/internal/indexer"
	"github.com/deidaraiorek/searchcore/internal/storage"

	"gopkg.in/check.v1"
)

type SuiteBase struct {
	s *storage.Store
}

func (s *SuiteBase) SetStore(store *storage.Store) {
	s.s = store
}

func (s *SuiteBase) TestGetOrCreateIsIdempotent(c *check.C) {
	ctx := context.Background()

	id1, err := s.s.GetOrCreate(ctx, storage.Words, "machine")
	c.Assert(err, check.IsNil)
	id2, err := s.s.GetOrCreate(ctx, storage.Words, "machine")
	c.Assert(err, check.IsNil)
	c.Assert(id2, check.Equals, id1, check.Commentf("expected the same id for the same word"))

	id3, err := s.s.GetOrCreate(ctx, storage.Words, "learning")
	c.Assert(err, check.IsNil)
	c.Assert(id3, check.Not(check.Equals), id1)

	urlID, err := s.s.GetOrCreate(ctx, storage.URLs, "https://example.com/")
	c.Assert(err, check.IsNil)
	got, found, err := s.s.Lookup(ctx, storage.URLs, "https://example.com/")
	c.Assert(err, check.IsNil)
	c.Assert(found, check.Equals, true)
	c.Assert(got, check.Equals, urlID)

	_, found, err = s.s.Lookup(ctx, storage.Words, "missing")
	c.Assert(err, check.IsNil)
	c.Assert(found, check.Equals, false)

	_, err = s.s.GetOrCreate(ctx, storage.Table(42), "x")
	c.Assert(err, check.ErrorMatches, ".*unknown table.*")
}

func (s *SuiteBase) TestConcurrentGetOrCreate(c *check.C) {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		workers = 8
		ids     = make(map[int64]struct{})
	)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			id, err := s.s.GetOrCreate(context.Background(), storage.URLs, "https://example.com/shared")
			c.Check(err, check.IsNil)
			mu.Lock()
			ids[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	c.Assert(ids, check.HasLen, 1, check.Commentf("concurrent inserts produced different ids"))
}

func (s *SuiteBase) TestGetOrCreateAll(c *check.C) {
	ctx := context.Background()
	betaID, err := s.s.GetOrCreate(ctx, storage.Words, "beta")
	c.Assert(err, check.IsNil)

	ids, err := s.s.GetOrCreateAll(ctx, storage.Words, []string{"gamma", "beta", "alpha", "gamma"})
	c.Assert(err, check.IsNil)
	c.Assert(ids, check.HasLen, 3)
	c.Assert(ids["beta"], check.Equals, betaID)
	for word, id := range ids {
		got, found, err := s.s.Lookup(ctx, storage.Words, word)
		c.Assert(err, check.IsNil)
		c.Assert(found, check.Equals, true)
		c.Assert(got, check.Equals, id)
	}

	ids, err = s.s.GetOrCreateAll(ctx, storage.Words, nil)
	c.Assert(err, check.IsNil)
	c.Assert(ids, check.HasLen, 0)
}

// Documents sharing new words in opposite orders are indexed and linked in
// parallel; every call must succeed.
func (s *SuiteBase) TestConcurrentIndexingWithSharedWords(c *check.C) {
	ctx := context.Background()
	idx := indexer.New(s.s)
	texts := []string{"alpha beta gamma delta", "delta gamma beta alpha"}

	const docs = 8
	var wg sync.WaitGroup
	wg.Add(2 * docs)
	for i := 0; i < docs; i++ {
		url := fmt.Sprintf("https://example.com/doc/%d", i)
		target := fmt.Sprintf("https://example.com/doc/%d", docs-1-i)
		go func() {
			defer wg.Done()
			added, err := idx.AddToIndex(ctx, url, texts[i%2])
			c.Check(err, check.IsNil)
			c.Check(added, check.Equals, true)
		}()
		go func() {
			defer wg.Done()
			_, err := idx.AddLink(ctx, url, target, texts[(i+1)%2])
			c.Check(err, check.IsNil)
		}()
	}
	wg.Wait()

	st, err := s.s.Stats(ctx)
	c.Assert(err, check.IsNil)
	c.Assert(st.Documents, check.Equals, docs)
	c.Assert(st.Indexed, check.Equals, docs)
	c.Assert(st.Words, check.Equals, 4)
	c.Assert(st.Postings, check.Equals, 4*docs)
	c.Assert(st.Links, check.Equals, docs)
}

func (s *SuiteBase) TestIsIndexedRequiresPostings(c *check.C) {
	ctx := context.Background()
	url := "https://example.com/doc"

	indexed, err := s.s.IsIndexed(ctx, url)
	c.Assert(err, check.IsNil)
	c.Assert(indexed, check.Equals, false)

	urlID, err := s.s.GetOrCreate(ctx, storage.URLs, url)
	c.Assert(err, check.IsNil)
	indexed, err = s.s.IsIndexed(ctx, url)
	c.Assert(err, check.IsNil)
	c.Assert(indexed, check.Equals, false, check.Commentf("a known url without postings is not indexed"))

	sess, err := s.s.Begin(ctx)
	c.Assert(err, check.IsNil)
	wordID, err := sess.GetOrCreate(ctx, storage.Words, "hello")
	c.Assert(err, check.IsNil)
	c.Assert(sess.Claim(ctx, urlID), check.IsNil)
	c.Assert(sess.InsertPosting(ctx, urlID, wordID, 0), check.IsNil)
	c.Assert(sess.Commit(), check.IsNil)
	c.Assert(sess.Rollback(), check.IsNil)

	indexed, err = s.s.IsIndexed(ctx, url)
	c.Assert(err, check.IsNil)
	c.Assert(indexed, check.Equals, true)
}

func (s *SuiteBase) TestRollbackDiscardsWrites(c *check.C) {
	ctx := context.Background()

	sess, err := s.s.Begin(ctx)
	c.Assert(err, check.IsNil)
	urlID, err := sess.GetOrCreate(ctx, storage.URLs, "https://example.com/rolled-back")
	c.Assert(err, check.IsNil)
	wordID, err := sess.GetOrCreate(ctx, storage.Words, "ghost")
	c.Assert(err, check.IsNil)
	c.Assert(sess.InsertPosting(ctx, urlID, wordID, 0), check.IsNil)
	indexed, err := sess.HasPostings(ctx, urlID)
	c.Assert(err, check.IsNil)
	c.Assert(indexed, check.Equals, true, check.Commentf("a session sees its own writes"))
	c.Assert(sess.Rollback(), check.IsNil)

	_, found, err := s.s.Lookup(ctx, storage.URLs, "https://example.com/rolled-back")
	c.Assert(err, check.IsNil)
	c.Assert(found, check.Equals, false)
}

func (s *SuiteBase) TestLinksAndLinkText(c *check.C) {
	ctx := context.Background()
	a := s.mustURL(c, "https://a.example/")
	b := s.mustURL(c, "https://b.example/")

	sess, err := s.s.Begin(ctx)
	c.Assert(err, check.IsNil)
	linkID, err := sess.InsertLink(ctx, a, b)
	c.Assert(err, check.IsNil)
	wordID, err := sess.GetOrCreate(ctx, storage.Words, "anchor")
	c.Assert(err, check.IsNil)
	c.Assert(sess.InsertLinkWord(ctx, linkID, wordID), check.IsNil)
	c.Assert(sess.Commit(), check.IsNil)

	edges, err := s.s.Links(ctx)
	c.Assert(err, check.IsNil)
	c.Assert(edges, check.DeepEquals, []storage.Edge{{ID: linkID, FromID: a, ToID: b}})

	sources, err := s.s.LinkTextSources(ctx, wordID)
	c.Assert(err, check.IsNil)
	c.Assert(sources, check.DeepEquals, []storage.Edge{{ID: linkID, FromID: a, ToID: b}})

	inbound, err := s.s.InboundCounts(ctx, []int64{a, b})
	c.Assert(err, check.IsNil)
	c.Assert(inbound, check.DeepEquals, map[int64]int{b: 1})
}

func (s *SuiteBase) TestMatchRowsIsConjunctive(c *check.C) {
	ctx := context.Background()
	both := s.indexDoc(c, "https://example.com/both", "alpha", "beta", "alpha")
	s.indexDoc(c, "https://example.com/alpha-only", "alpha", "gamma")

	alpha, _, err := s.s.Lookup(ctx, storage.Words, "alpha")
	c.Assert(err, check.IsNil)
	beta, _, err := s.s.Lookup(ctx, storage.Words, "beta")
	c.Assert(err, check.IsNil)

	rows, err := s.s.MatchRows(ctx, []int64{alpha, beta})
	c.Assert(err, check.IsNil)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Locations[0] < rows[j].Locations[0] })
	c.Assert(rows, check.DeepEquals, []storage.MatchRow{
		{URLID: both, Locations: []int{0, 1}},
		{URLID: both, Locations: []int{2, 1}},
	})

	rows, err = s.s.MatchRows(ctx, nil)
	c.Assert(err, check.IsNil)
	c.Assert(rows, check.HasLen, 0)
}

func (s *SuiteBase) TestReplacePageRanks(c *check.C) {
	ctx := context.Background()
	a := s.mustURL(c, "https://a.example/")
	b := s.mustURL(c, "https://b.example/")

	c.Assert(s.s.ReplacePageRanks(ctx, map[int64]float64{a: 1.0, b: 1.0}), check.IsNil)
	c.Assert(s.s.ReplacePageRanks(ctx, map[int64]float64{a: 0.15}), check.IsNil)

	scores, err := s.s.PageRanks(ctx, []int64{a, b})
	c.Assert(err, check.IsNil)
	c.Assert(scores, check.DeepEquals, map[int64]float64{a: 0.15}, check.Commentf("the table must be fully replaced"))
}

func (s *SuiteBase) TestURLsAndStats(c *check.C) {
	ctx := context.Background()
	ids := make([]int64, 0, 3)
	for i := 0; i < 3; i++ {
		ids = append(ids, s.mustURL(c, fmt.Sprintf("https://example.com/%d", i)))
	}
	s.indexDoc(c, "https://example.com/0", "one", "two")

	urls, err := s.s.URLs(ctx, ids)
	c.Assert(err, check.IsNil)
	c.Assert(urls, check.HasLen, 3)
	c.Assert(urls[ids[1]], check.Equals, "https://example.com/1")

	all, err := s.s.URLIDs(ctx)
	c.Assert(err, check.IsNil)
	c.Assert(all, check.DeepEquals, ids)

	st, err := s.s.Stats(ctx)
	c.Assert(err, check.IsNil)
	c.Assert(st.Documents, check.Equals, 3)
	c.Assert(st.Indexed, check.Equals, 1)
	c.Assert(st.Words, check.Equals, 2)
	c.Assert(st.Postings, check.Equals, 2)
}

func (s *SuiteBase) mustURL(c *check.C, url string) int64 {
	id, err := s.s.GetOrCreate(context.Background(), storage.URLs, url)
	c.Assert(err, check.IsNil)
	return id
}

func (s *SuiteBase) indexDoc(c *check.C, url string, words ...string) int64 {
	ctx := context.Background()
	sess, err := s.s.Begin(ctx)
	c.Assert(err, check.IsNil)
	defer sess.Rollback()

	urlID, err := sess.GetOrCreate(ctx, storage.URLs, url)
	c.Assert(err, check.IsNil)
	for i, w := range words {
		wordID, err := sess.GetOrCreate(ctx, storage.Words, w)
		c.Assert(err, check.IsNil)
		c.Assert(sess.InsertPosting(ctx, urlID, wordID, i), check.IsNil)
	}
	c.Assert(sess.Commit(), check.IsNil)
	return urlID
}
