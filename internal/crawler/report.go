package crawler

import (
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/deidaraiorek/searchcore/internal/fetcher"
)

// Skip is a frontier URL that produced nothing for the index.
type Skip struct {
	URL     string
	Outcome fetcher.Outcome
	Err     error
}

// Level summarizes one depth of a crawl.
type Level struct {
	Depth   int
	URLs    []string
	Indexed []string
	Skipped []Skip
	Failed  []Skip
	Next    []string
}

// Report describes a crawl run.
type Report struct {
	RunID  uuid.UUID
	Levels []Level
	// Frontier holds the URLs that were discovered but not visited when the
	// run ended.
	Frontier []string

	skipErr *multierror.Error
}

// SkipErr aggregates every fetch failure of the run, or returns nil.
func (r *Report) SkipErr() error {
	return r.skipErr.ErrorOrNil()
}

func (r *Report) IndexedCount() int {
	n := 0
	for _, l := range r.Levels {
		n += len(l.Indexed)
	}
	return n
}

func (r *Report) SkippedCount() int {
	n := 0
	for _, l := range r.Levels {
		n += len(l.Skipped)
	}
	return n
}
