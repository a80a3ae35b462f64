package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/deidaraiorek/searchcore/internal/config"
	"github.com/deidaraiorek/searchcore/internal/crawler"
	"github.com/deidaraiorek/searchcore/internal/fetcher"
	"github.com/deidaraiorek/searchcore/internal/indexer"
	"github.com/deidaraiorek/searchcore/internal/pagerank"
	"github.com/deidaraiorek/searchcore/internal/ranker"
	"github.com/deidaraiorek/searchcore/internal/storage"
)

const (
	configKey  = "config"
	logFileKey = "log-file"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "searchcore",
		Usage: "Crawl, index, rank and search a small web corpus",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML configuration file",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Database path (sqlite3) or connection string (postgres)",
			},
			&cli.StringFlag{
				Name:  "driver",
				Usage: "Database driver (sqlite3, postgres)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Also append logs to this file",
			},
		},
		Before: setup,
		After:  teardown,
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Create the index tables",
				Action: initCommand,
			},
			{
				Name:      "crawl",
				Usage:     "Crawl breadth first from the given seed URLs and index every page",
				ArgsUsage: "SEED [SEED...]",
				Action:    crawlCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "depth",
						Usage: "Number of levels to crawl, seeds included",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of pages fetched concurrently",
					},
					&cli.BoolFlag{
						Name:  "browser",
						Usage: "Render pages with headless Chrome",
					},
				},
			},
			{
				Name:   "pagerank",
				Usage:  "Recompute PageRank scores for every document",
				Action: pageRankCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "iterations",
						Usage: "Number of passes",
					},
					&cli.Float64Flag{
						Name:  "damping",
						Usage: "Damping factor",
					},
				},
			},
			{
				Name:      "query",
				Usage:     "Rank the documents containing every query term",
				ArgsUsage: "TERM [TERM...]",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results to print (0 prints all)",
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Print the size of the index",
				Action: statsCommand,
			},
		},
	}
}

// setup loads the configuration, applies global flag overrides and installs
// the default logger.
func setup(c *cli.Context) error {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return err
		}
	}
	if c.IsSet("db") {
		cfg.Storage.DSN = c.String("db")
	}
	if c.IsSet("driver") {
		cfg.Storage.Driver = c.String("driver")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-file") {
		cfg.Log.File = c.String("log-file")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := config.ParseLevel(cfg.Log.Level)
	var out io.Writer = c.App.ErrWriter
	if out == nil {
		out = os.Stderr
	}
	if cfg.Log.File != "" {
		logFile, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		out = io.MultiWriter(out, logFile)
		metadata(c)[logFileKey] = logFile
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))

	metadata(c)[configKey] = cfg
	return nil
}

func teardown(c *cli.Context) error {
	if f, ok := metadata(c)[logFileKey].(*os.File); ok {
		delete(metadata(c), logFileKey)
		return f.Close()
	}
	return nil
}

func metadata(c *cli.Context) map[string]interface{} {
	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]interface{})
	}
	return c.App.Metadata
}

func loadedConfig(c *cli.Context) config.Config {
	if cfg, ok := metadata(c)[configKey].(config.Config); ok {
		return cfg
	}
	return config.Default()
}

func openStore(ctx context.Context, cfg config.Config) (*storage.Store, error) {
	store, err := storage.Open(ctx, storage.Config{
		Driver: cfg.Storage.Driver,
		DSN:    cfg.Storage.DSN,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, nil
}

func initCommand(c *cli.Context) error {
	cfg := loadedConfig(c)
	store, err := openStore(c.Context, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	slog.Info("index ready", "driver", store.Driver(), "dsn", cfg.Storage.DSN)
	return nil
}

func crawlCommand(c *cli.Context) error {
	cfg := loadedConfig(c)
	if c.IsSet("depth") {
		cfg.Crawler.MaxDepth = c.Int("depth")
	}
	if c.IsSet("workers") {
		cfg.Crawler.Workers = c.Int("workers")
	}
	if c.IsSet("browser") {
		cfg.Crawler.Browser = c.Bool("browser")
	}
	seeds := c.Args().Slice()
	if len(seeds) == 0 {
		return errors.New("crawl needs at least one seed url")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var f fetcher.Fetcher
	if cfg.Crawler.Browser {
		f = fetcher.NewBrowserFetcher(cfg.Crawler.UserAgent)
	} else {
		f = fetcher.New(cfg.Crawler.UserAgent,
			fetcher.WithRateLimit(cfg.Crawler.RateLimit, cfg.Crawler.RateBurst),
			fetcher.WithMaxBodySize(cfg.Crawler.MaxBodySize),
		)
	}

	logger := slog.Default()
	cr := crawler.New(f,
		indexer.New(store, indexer.WithLogger(logger)),
		store,
		crawler.Config{MaxDepth: cfg.Crawler.MaxDepth, Workers: cfg.Crawler.Workers},
		crawler.WithLogger(logger),
	)

	report, err := cr.Crawl(ctx, seeds)
	if report != nil {
		for _, level := range report.Levels {
			fmt.Fprintf(c.App.Writer, "depth %d: visited %d, indexed %d, skipped %d, failed %d, next %d\n",
				level.Depth, len(level.URLs), len(level.Indexed), len(level.Skipped), len(level.Failed), len(level.Next))
		}
		if skipErr := report.SkipErr(); skipErr != nil {
			slog.Warn("some urls were skipped", "run", report.RunID.String(), "err", skipErr)
		}
	}
	return err
}

func pageRankCommand(c *cli.Context) error {
	cfg := loadedConfig(c)
	if c.IsSet("iterations") {
		cfg.PageRank.Iterations = c.Int("iterations")
	}
	if c.IsSet("damping") {
		cfg.PageRank.Damping = c.Float64("damping")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	engine, err := pagerank.New(store, pagerank.Config{
		Iterations: cfg.PageRank.Iterations,
		Damping:    cfg.PageRank.Damping,
		Workers:    cfg.PageRank.Workers,
	}, pagerank.WithLogger(slog.Default()))
	if err != nil {
		return err
	}

	scores, err := engine.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "ranked %d documents\n", len(scores))
	return nil
}

func queryCommand(c *cli.Context) error {
	cfg := loadedConfig(c)
	if c.IsSet("limit") {
		cfg.Ranker.Limit = c.Int("limit")
	}

	store, err := openStore(c.Context, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	r := ranker.New(store,
		ranker.WithWeights(ranker.Weights(cfg.Ranker.Weights)),
		ranker.WithLogger(slog.Default()),
	)
	results, err := r.Query(c.Context, strings.Join(c.Args().Slice(), " "))
	if err != nil {
		return err
	}

	if cfg.Ranker.Limit > 0 && len(results) > cfg.Ranker.Limit {
		results = results[:cfg.Ranker.Limit]
	}
	for _, res := range results {
		fmt.Fprintf(c.App.Writer, "%f\t%s\n", res.Score, res.URL)
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	store, err := openStore(c.Context, loadedConfig(c))
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := store.Stats(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "documents: %d\nindexed: %d\nwords: %d\npostings: %d\nlinks: %d\nranked: %d\n",
		st.Documents, st.Indexed, st.Words, st.Postings, st.Links, st.Ranked)
	return nil
}
