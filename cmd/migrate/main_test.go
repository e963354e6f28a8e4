package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPgxURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/x?sslmode=disable", pgxURL("postgres://u:p@db:5432/x?sslmode=disable"))
	assert.Equal(t, "pgx5://db/x", pgxURL("postgresql://db/x"))
	assert.Equal(t, "pgx5://db/x", pgxURL("pgx5://db/x"))
}
