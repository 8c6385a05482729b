package db

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	q := `UPDATE projects SET title=?,phase=? WHERE id=?`
	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t, `UPDATE projects SET title=$1,phase=$2 WHERE id=$3`, Postgres.Rebind(q))
}

func TestOpenSQLiteCreatesWorkspace(t *testing.T) {
	dir := t.TempDir()
	conn, dialect, err := Open(Config{Workspace: dir})
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, SQLite, dialect)
	require.NoError(t, conn.Ping())

	_, err = os.Stat(Path(dir))
	assert.NoError(t, err)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, _, err := Open(Config{Driver: "oracle"})
	assert.Error(t, err)
}
