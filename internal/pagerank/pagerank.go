package pagerank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/deidaraiorek/searchcore/internal/storage"
)

const (
	DefaultIterations = 20
	DefaultDamping    = 0.85

	// initialScore is also what the ranker assumes for unscored documents.
	initialScore = 1.0

	// minChunk keeps tiny graphs from being split across goroutines.
	minChunk = 256
)

var (
	ErrInvalidDamping    = errors.New("damping factor must be in (0, 1)")
	ErrInvalidIterations = errors.New("iterations must not be negative")
)

// Store is the part of the persistent store a PageRank run needs.
type Store interface {
	URLIDs(ctx context.Context) ([]int64, error)
	Links(ctx context.Context) ([]storage.Edge, error)
	ReplacePageRanks(ctx context.Context, scores map[int64]float64) error
}

// Config holds the parameters of Run. Zero Iterations or Damping select
// DefaultIterations and DefaultDamping; ComputeRanks takes both explicitly
// and runs no passes for zero iterations.
type Config struct {
	Iterations int
	Damping    float64
	// Workers bounds the goroutines computing one pass. Zero means GOMAXPROCS.
	Workers int
}

func (c *Config) validate() error {
	if c.Iterations == 0 {
		c.Iterations = DefaultIterations
	}
	if c.Damping == 0 {
		c.Damping = DefaultDamping
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	return checkParams(c.Iterations, c.Damping)
}

func checkParams(iterations int, damping float64) error {
	var err error
	if iterations < 0 {
		err = multierror.Append(err, ErrInvalidIterations)
	}
	if !(damping > 0 && damping < 1) {
		err = multierror.Append(err, ErrInvalidDamping)
	}
	return err
}

type Engine struct {
	store  Store
	config Config
	logger *slog.Logger
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func New(store Store, config Config, opts ...Option) (*Engine, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("pagerank config validation failed: %w", err)
	}
	e := &Engine{
		store:  store,
		config: config,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run computes ranks with the configured iteration count and damping.
func (e *Engine) Run(ctx context.Context) (map[int64]float64, error) {
	return e.ComputeRanks(ctx, e.config.Iterations, e.config.Damping)
}

// ComputeRanks runs exactly iterations passes of
//
//	PR(p) = (1 - d) + d * sum(PR(q) / out(q)) for every distinct q linking to p
//
// starting from 1.0 everywhere, and replaces the stored scores with the
// result in one transaction. If ctx is cancelled between passes the last
// completed pass is stored and the context error returned.
func (e *Engine) ComputeRanks(ctx context.Context, iterations int, damping float64) (map[int64]float64, error) {
	if err := checkParams(iterations, damping); err != nil {
		return nil, err
	}

	g, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	e.logger.Info("computing pagerank", "documents", len(g.ids), "iterations", iterations, "damping", damping)

	prev := make([]float64, len(g.ids))
	for i := range prev {
		prev[i] = initialScore
	}
	next := make([]float64, len(g.ids))

	var runErr error
	for pass := 0; pass < iterations; pass++ {
		if runErr = ctx.Err(); runErr != nil {
			e.logger.Warn("pagerank cancelled", "completed_passes", pass)
			break
		}
		if err := g.pass(ctx, prev, next, damping, e.config.Workers); err != nil {
			return nil, err
		}
		e.logger.Debug("pagerank pass", "pass", pass+1, "delta", sumAbsDiff(prev, next))
		prev, next = next, prev
	}

	scores := make(map[int64]float64, len(g.ids))
	for i, id := range g.ids {
		scores[id] = prev[i]
	}

	// The partial result of a cancelled run is still written.
	if err := e.store.ReplacePageRanks(context.WithoutCancel(ctx), scores); err != nil {
		return nil, fmt.Errorf("failed to store pagerank scores: %w", err)
	}
	if runErr != nil {
		return scores, runErr
	}

	e.logger.Info("pagerank completed", "documents", len(scores))
	return scores, nil
}

// graph is a dense arena over document ids: inbound holds the distinct
// linkers of each document, out the total number of link rows leaving it.
type graph struct {
	ids     []int64
	inbound [][]int32
	out     []int
}

func (e *Engine) load(ctx context.Context) (*graph, error) {
	ids, err := e.store.URLIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	edges, err := e.store.Links(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load links: %w", err)
	}

	index := make(map[int64]int32, len(ids))
	for i, id := range ids {
		index[id] = int32(i)
	}

	g := &graph{
		ids:     ids,
		inbound: make([][]int32, len(ids)),
		out:     make([]int, len(ids)),
	}
	seen := make(map[[2]int32]bool, len(edges))
	for _, edge := range edges {
		from, okFrom := index[edge.FromID]
		to, okTo := index[edge.ToID]
		if !okFrom || !okTo || from == to {
			continue
		}
		g.out[from]++
		if key := [2]int32{from, to}; !seen[key] {
			seen[key] = true
			g.inbound[to] = append(g.inbound[to], from)
		}
	}
	return g, nil
}

// pass fills next from the frozen prev. Every document is computed
// independently; Wait is the barrier between passes.
func (g *graph) pass(ctx context.Context, prev, next []float64, damping float64, workers int) error {
	chunk := max(minChunk, (len(prev)+workers-1)/max(workers, 1))

	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for start := 0; start < len(prev); start += chunk {
		end := min(start+chunk, len(prev))
		eg.Go(func() error {
			for v := start; v < end; v++ {
				var sum float64
				for _, u := range g.inbound[v] {
					sum += prev[u] / float64(g.out[u])
				}
				next[v] = (1 - damping) + damping*sum
			}
			return nil
		})
	}
	return eg.Wait()
}

func sumAbsDiff(a, b []float64) float64 {
	var sad float64
	for i := range a {
		sad += math.Abs(a[i] - b[i])
	}
	return sad
}
