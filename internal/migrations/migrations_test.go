package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	for _, dialect := range []string{DialectSQLite, DialectPostgres} {
		t.Run(dialect, func(t *testing.T) {
			migrations, err := Load(dialect)
			require.NoError(t, err)
			require.Len(t, migrations, 2)

			assert.Equal(t, 1, migrations[0].Version)
			assert.Equal(t, "initial_schema", migrations[0].Name)
			assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS conversations")
			assert.Contains(t, migrations[0].SQL, "message_id TEXT UNIQUE")

			assert.Equal(t, 2, migrations[1].Version)
			assert.Equal(t, "unreplied_counts", migrations[1].Name)
		})
	}
}

func TestLoad_UnknownDialect(t *testing.T) {
	_, err := Load("oracle")
	assert.Error(t, err)
}
