package storage

import "fmt"

const schemaTemplate = `
-- Documents: one row per normalized URL, created on first reference
CREATE TABLE IF NOT EXISTS urllist (
    id %[1]s,
    url TEXT UNIQUE NOT NULL
);
CREATE INDEX IF NOT EXISTS urlidx ON urllist(url);

-- Vocabulary: one row per distinct token across the corpus
CREATE TABLE IF NOT EXISTS wordlist (
    id %[1]s,
    word TEXT UNIQUE NOT NULL
);
CREATE INDEX IF NOT EXISTS wordidx ON wordlist(word);

-- Postings: one row per token occurrence, location is the token offset
CREATE TABLE IF NOT EXISTS wordlocation (
    urlid BIGINT NOT NULL,
    wordid BIGINT NOT NULL,
    location INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS wordurlidx ON wordlocation(wordid);
CREATE INDEX IF NOT EXISTS urlwordidx ON wordlocation(urlid);

-- Link graph used by PageRank
CREATE TABLE IF NOT EXISTS link (
    id %[1]s,
    fromid BIGINT NOT NULL,
    toid BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS urltoidx ON link(toid);
CREATE INDEX IF NOT EXISTS urlfromidx ON link(fromid);

-- Anchor text terms attached to a link
CREATE TABLE IF NOT EXISTS linkwords (
    linkid BIGINT NOT NULL,
    wordid BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS linkwordidx ON linkwords(wordid);

` + pageRankTable

// pageRankTable is recreated on every PageRank run.
const pageRankTable = `
CREATE TABLE IF NOT EXISTS pagerank (
    urlid BIGINT PRIMARY KEY,
    score DOUBLE PRECISION NOT NULL
);
`

func schema(d *dialect) string {
	return fmt.Sprintf(schemaTemplate, d.idColumn)
}
