package indexer

import (
	"context"
	"log/slog"

	"github.com/deidaraiorek/searchcore/internal/storage"
	"github.com/deidaraiorek/searchcore/internal/tokenizer"
)

// Store is the subset of the persistent store the indexer writes through.
type Store interface {
	Begin(ctx context.Context) (*storage.Session, error)
	GetOrCreate(ctx context.Context, table storage.Table, key string) (int64, error)
	GetOrCreateAll(ctx context.Context, table storage.Table, keys []string) (map[string]int64, error)
	IsIndexed(ctx context.Context, url string) (bool, error)
}

// Indexer turns fetched documents into postings and anchors into link rows.
type Indexer struct {
	store     Store
	tokenizer *tokenizer.Tokenizer
	logger    *slog.Logger
}

type Option func(*Indexer)

func WithLogger(logger *slog.Logger) Option {
	return func(i *Indexer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

func New(store Store, opts ...Option) *Indexer {
	i := &Indexer{
		store:     store,
		tokenizer: tokenizer.NewTokenizer(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// AddToIndex stores one posting per token of text at its token offset and
// reports whether any postings were written. An already indexed url is
// skipped without writing anything.
//
// Document and word ids are resolved before the session opens, so a session
// only locks the row of its own document. The indexed check and the posting
// inserts run in that session with the document row claimed, so two
// concurrent callers cannot both index the same url.
func (i *Indexer) AddToIndex(ctx context.Context, url, text string) (bool, error) {
	indexed, err := i.store.IsIndexed(ctx, url)
	if err != nil {
		return false, err
	}
	if indexed {
		i.logger.Debug("skipping already indexed url", "url", url)
		return false, nil
	}

	urlID, err := i.store.GetOrCreate(ctx, storage.URLs, url)
	if err != nil {
		return false, err
	}
	words := i.tokenizer.Tokenize(text)
	wordIDs, err := i.store.GetOrCreateAll(ctx, storage.Words, words)
	if err != nil {
		return false, err
	}

	sess, err := i.store.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer sess.Rollback()

	if err := sess.Claim(ctx, urlID); err != nil {
		return false, err
	}
	if indexed, err = sess.HasPostings(ctx, urlID); err != nil {
		return false, err
	}
	if indexed {
		i.logger.Debug("skipping already indexed url", "url", url)
		return false, nil
	}

	for pos, word := range words {
		if err := sess.InsertPosting(ctx, urlID, wordIDs[word], pos); err != nil {
			return false, err
		}
	}

	if err := sess.Commit(); err != nil {
		return false, err
	}

	i.logger.Info("indexed url", "url", url, "words", len(words), "unique", len(wordIDs))
	return len(words) > 0, nil
}

// AddLink records a link from one document to another and associates the
// content words of its anchor text with it. Self links are ignored and
// reported as false.
func (i *Indexer) AddLink(ctx context.Context, fromURL, toURL, anchorText string) (bool, error) {
	urlIDs, err := i.store.GetOrCreateAll(ctx, storage.URLs, []string{fromURL, toURL})
	if err != nil {
		return false, err
	}
	fromID, toID := urlIDs[fromURL], urlIDs[toURL]
	if fromID == toID {
		return false, nil
	}

	words := i.tokenizer.ContentWords(anchorText)
	wordIDs, err := i.store.GetOrCreateAll(ctx, storage.Words, words)
	if err != nil {
		return false, err
	}

	sess, err := i.store.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer sess.Rollback()

	linkID, err := sess.InsertLink(ctx, fromID, toID)
	if err != nil {
		return false, err
	}
	for _, word := range words {
		if err := sess.InsertLinkWord(ctx, linkID, wordIDs[word]); err != nil {
			return false, err
		}
	}

	return true, sess.Commit()
}
