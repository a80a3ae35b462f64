// Package config loads the searchcore settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
)

var ErrUnknownKeys = errors.New("unknown configuration keys")

type Config struct {
	Storage  Storage  `toml:"storage"`
	Crawler  Crawler  `toml:"crawler"`
	PageRank PageRank `toml:"pagerank"`
	Ranker   Ranker   `toml:"ranker"`
	Log      Log      `toml:"log"`
}

type Storage struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

type Crawler struct {
	MaxDepth  int    `toml:"max_depth"`
	Workers   int    `toml:"workers"`
	UserAgent string `toml:"user_agent"`
	// RateLimit is the number of requests per second sent to one host.
	// Zero disables limiting.
	RateLimit   float64 `toml:"rate_limit"`
	RateBurst   int     `toml:"rate_burst"`
	MaxBodySize int64   `toml:"max_body_size"`
	Browser     bool    `toml:"browser"`
}

type PageRank struct {
	Iterations int     `toml:"iterations"`
	Damping    float64 `toml:"damping"`
	Workers    int     `toml:"workers"`
}

type Ranker struct {
	Limit   int     `toml:"limit"`
	Weights Weights `toml:"weights"`
}

type Weights struct {
	Frequency float64 `toml:"frequency"`
	Location  float64 `toml:"location"`
	PageRank  float64 `toml:"pagerank"`
	LinkText  float64 `toml:"linktext"`
	Distance  float64 `toml:"distance"`
	Inbound   float64 `toml:"inbound"`
}

type Log struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

func Default() Config {
	return Config{
		Storage: Storage{
			Driver: "sqlite3",
			DSN:    "searchindex.db",
		},
		Crawler: Crawler{
			MaxDepth:    2,
			Workers:     1,
			UserAgent:   "searchcore/1.0",
			RateLimit:   2,
			RateBurst:   1,
			MaxBodySize: 10 << 20,
		},
		PageRank: PageRank{
			Iterations: 20,
			Damping:    0.85,
		},
		Ranker: Ranker{
			Limit: 10,
			Weights: Weights{
				Frequency: 1.0,
				Location:  1.0,
				PageRank:  1.0,
				LinkText:  1.0,
			},
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value; keys the file sets but Config does not know are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("%w in %s: %s", ErrUnknownKeys, path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var err error
	if c.Storage.Driver != "sqlite3" && c.Storage.Driver != "postgres" {
		err = multierror.Append(err, fmt.Errorf("storage.driver %q must be sqlite3 or postgres", c.Storage.Driver))
	}
	if c.Storage.DSN == "" {
		err = multierror.Append(err, errors.New("storage.dsn must not be empty"))
	}
	if c.Crawler.MaxDepth < 1 {
		err = multierror.Append(err, errors.New("crawler.max_depth must be at least 1"))
	}
	if c.Crawler.Workers < 1 {
		err = multierror.Append(err, errors.New("crawler.workers must be at least 1"))
	}
	if c.Crawler.RateLimit < 0 {
		err = multierror.Append(err, errors.New("crawler.rate_limit must not be negative"))
	}
	if c.PageRank.Iterations < 1 {
		err = multierror.Append(err, errors.New("pagerank.iterations must be at least 1"))
	}
	if !(c.PageRank.Damping > 0 && c.PageRank.Damping < 1) {
		err = multierror.Append(err, errors.New("pagerank.damping must be in (0, 1)"))
	}
	if c.Ranker.Limit < 0 {
		err = multierror.Append(err, errors.New("ranker.limit must not be negative"))
	}
	w := c.Ranker.Weights
	for _, weight := range []struct {
		name  string
		value float64
	}{
		{"frequency", w.Frequency},
		{"location", w.Location},
		{"pagerank", w.PageRank},
		{"linktext", w.LinkText},
		{"distance", w.Distance},
		{"inbound", w.Inbound},
	} {
		if weight.value < 0 {
			err = multierror.Append(err, fmt.Errorf("ranker.weights.%s must not be negative", weight.name))
		}
	}
	if _, lerr := ParseLevel(c.Log.Level); lerr != nil {
		err = multierror.Append(err, lerr)
	}
	return err
}

// ParseLevel maps a case-insensitive level name to its slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", s)
	}
}
