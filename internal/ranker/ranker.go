package ranker

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/deidaraiorek/searchcore/internal/storage"
)

// unrankedScore is assumed for documents without a stored PageRank, which is
// the score every document starts from.
const unrankedScore = 1.0

// Store is the read side of the persistent store used to answer queries.
type Store interface {
	Lookup(ctx context.Context, table storage.Table, key string) (int64, bool, error)
	MatchRows(ctx context.Context, wordIDs []int64) ([]storage.MatchRow, error)
	PageRanks(ctx context.Context, ids []int64) (map[int64]float64, error)
	LinkTextSources(ctx context.Context, wordID int64) ([]storage.Edge, error)
	InboundCounts(ctx context.Context, ids []int64) (map[int64]int, error)
	URLs(ctx context.Context, ids []int64) (map[int64]string, error)
}

// Weights scales each signal in the combined score. A zero weight removes
// the signal; Distance and Inbound are only computed when weighted.
type Weights struct {
	Frequency float64
	Location  float64
	PageRank  float64
	LinkText  float64
	Distance  float64
	Inbound   float64
}

func DefaultWeights() Weights {
	return Weights{
		Frequency: 1.0,
		Location:  1.0,
		PageRank:  1.0,
		LinkText:  1.0,
	}
}

// Signals holds the normalized value of every signal for one document.
type Signals struct {
	Frequency float64
	Location  float64
	PageRank  float64
	LinkText  float64
	Distance  float64
	Inbound   float64
}

type Result struct {
	URLID   int64
	URL     string
	Score   float64
	Signals Signals
}

type Ranker struct {
	store   Store
	weights Weights
	logger  *slog.Logger
}

type Option func(*Ranker)

func WithWeights(w Weights) Option {
	return func(r *Ranker) {
		r.weights = w
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Ranker) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func New(store Store, opts ...Option) *Ranker {
	r := &Ranker{
		store:   store,
		weights: DefaultWeights(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Query returns every document containing all known terms of text, best
// first. Terms are split on whitespace and matched literally; unknown terms
// are dropped. A query without known terms yields no results.
func (r *Ranker) Query(ctx context.Context, text string) ([]Result, error) {
	wordIDs, err := r.wordIDs(ctx, strings.Fields(text))
	if err != nil {
		return nil, err
	}
	if len(wordIDs) == 0 {
		return []Result{}, nil
	}

	rows, err := r.store.MatchRows(ctx, wordIDs)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []Result{}, nil
	}

	ids := candidates(rows)
	signals, err := r.signals(ctx, rows, ids, wordIDs)
	if err != nil {
		return nil, err
	}
	urls, err := r.store.URLs(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		s := signals[id]
		results = append(results, Result{
			URLID:   id,
			URL:     urls[id],
			Score:   r.combine(s),
			Signals: s,
		})
	}
	slices.SortFunc(results, func(a, b Result) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.URLID, b.URLID)
	})

	r.logger.Debug("query ranked", "query", text, "terms", len(wordIDs), "rows", len(rows), "results", len(results))
	return results, nil
}

func (r *Ranker) wordIDs(ctx context.Context, terms []string) ([]int64, error) {
	ids := make([]int64, 0, len(terms))
	for _, term := range terms {
		id, found, err := r.store.Lookup(ctx, storage.Words, term)
		if err != nil {
			return nil, err
		}
		if !found {
			r.logger.Debug("dropping unknown query term", "term", term)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *Ranker) signals(ctx context.Context, rows []storage.MatchRow, ids, wordIDs []int64) (map[int64]Signals, error) {
	freq := normalize(frequency(rows), false)
	loc := normalize(location(rows), true)

	ranks, err := r.pageRanks(ctx, ids)
	if err != nil {
		return nil, err
	}
	pr := normalize(ranks, false)

	linkText, err := r.linkText(ctx, ids, wordIDs)
	if err != nil {
		return nil, err
	}
	lt := normalize(linkText, false)

	var dist, inbound map[int64]float64
	if r.weights.Distance != 0 {
		if raw := distance(rows); raw != nil {
			dist = normalize(raw, true)
		} else {
			dist = uniform(ids, 1.0)
		}
	}
	if r.weights.Inbound != 0 {
		counts, err := r.store.InboundCounts(ctx, ids)
		if err != nil {
			return nil, err
		}
		raw := uniform(ids, 0)
		for id, n := range counts {
			raw[id] = float64(n)
		}
		inbound = normalize(raw, false)
	}

	out := make(map[int64]Signals, len(ids))
	for _, id := range ids {
		out[id] = Signals{
			Frequency: freq[id],
			Location:  loc[id],
			PageRank:  pr[id],
			LinkText:  lt[id],
			Distance:  dist[id],
			Inbound:   inbound[id],
		}
	}
	return out, nil
}

// pageRanks returns the stored score of every candidate, defaulting to the
// initial score when none is stored.
func (r *Ranker) pageRanks(ctx context.Context, ids []int64) (map[int64]float64, error) {
	stored, err := r.store.PageRanks(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := uniform(ids, unrankedScore)
	for id, score := range stored {
		out[id] = score
	}
	return out, nil
}

// linkText credits each candidate with the PageRank of every page linking to
// it with a query term in the anchor.
func (r *Ranker) linkText(ctx context.Context, ids, wordIDs []int64) (map[int64]float64, error) {
	out := uniform(ids, 0)

	var edges []storage.Edge
	for _, wordID := range wordIDs {
		sources, err := r.store.LinkTextSources(ctx, wordID)
		if err != nil {
			return nil, err
		}
		for _, e := range sources {
			if _, ok := out[e.ToID]; ok {
				edges = append(edges, e)
			}
		}
	}
	if len(edges) == 0 {
		return out, nil
	}

	from := make([]int64, 0, len(edges))
	for _, e := range edges {
		from = append(from, e.FromID)
	}
	slices.Sort(from)
	ranks, err := r.pageRanks(ctx, slices.Compact(from))
	if err != nil {
		return nil, fmt.Errorf("failed to read linker scores: %w", err)
	}
	for _, e := range edges {
		out[e.ToID] += ranks[e.FromID]
	}
	return out, nil
}

func (r *Ranker) combine(s Signals) float64 {
	w := r.weights
	return w.Frequency*s.Frequency +
		w.Location*s.Location +
		w.PageRank*s.PageRank +
		w.LinkText*s.LinkText +
		w.Distance*s.Distance +
		w.Inbound*s.Inbound
}

// candidates returns the distinct document ids of rows in ascending order.
func candidates(rows []storage.MatchRow) []int64 {
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.URLID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
