package storage_test

import (
	"context"
	"database/sql"
	"os"

	"github.com/deidaraiorek/searchcore/internal/storage"
	"github.com/deidaraiorek/searchcore/internal/storage/storetest"

	"gopkg.in/check.v1"
)

var _ = check.Suite(new(PostgresStoreTestSuite))

type PostgresStoreTestSuite struct {
	storetest.SuiteBase
	store *storage.Store
	db    *sql.DB
}

func (s *PostgresStoreTestSuite) SetUpSuite(c *check.C) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		c.Skip("Missing PG_DSN envvar; skipping postgres-backed store test suite")
	}

	store, err := storage.Open(context.Background(), storage.Config{
		Driver: storage.DriverPostgres,
		DSN:    dsn,
	})
	c.Assert(err, check.IsNil)
	s.SetStore(store)
	s.store = store

	s.db, err = sql.Open("postgres", dsn)
	c.Assert(err, check.IsNil)
}

func (s *PostgresStoreTestSuite) SetUpTest(c *check.C) {
	s.flushDB(c)
}

func (s *PostgresStoreTestSuite) flushDB(c *check.C) {
	for _, table := range []string{"linkwords", "link", "wordlocation", "wordlist", "urllist", "pagerank"} {
		_, err := s.db.Exec("DELETE FROM " + table)
		c.Assert(err, check.IsNil)
	}
}

func (s *PostgresStoreTestSuite) TearDownSuite(c *check.C) {
	if s.db != nil {
		s.flushDB(c)
		c.Assert(s.db.Close(), check.IsNil)
	}
	if s.store != nil {
		c.Assert(s.store.Close(), check.IsNil)
	}
}
