package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	pg := dialects[DriverPostgres]
	lite := dialects[DriverSQLite]

	q := "SELECT id FROM urllist WHERE url = ? AND id IN (?, ?)"
	assert.Equal(t, "SELECT id FROM urllist WHERE url = $1 AND id IN ($2, $3)", pg.rebind(q))
	assert.Equal(t, q, lite.rebind(q))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}
