package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBestPerPlayerQuery(t *testing.T) {
	query, args, err := bestPerPlayerQuery(5, 10).ToSql()
	require.NoError(t, err)

	assert.Contains(t, query, "SELECT DISTINCT ON (user_id) id, user_id")
	assert.Contains(t, query, "WHERE table_number = $1")
	assert.Contains(t, query, "ORDER BY user_id, points ASC, created_at ASC, id ASC")
	assert.Contains(t, query, ") AS best ORDER BY points ASC, created_at ASC, id ASC LIMIT 10")
	assert.Equal(t, []interface{}{5}, args)
	assert.False(t, strings.Contains(query, "?"), "placeholders must be rewritten for postgres: %s", query)
}

func TestBestPerPlayerQueryWithoutLimit(t *testing.T) {
	query, _, err := bestPerPlayerQuery(3, 0).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, query, "LIMIT")
}
