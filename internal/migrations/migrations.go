package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

// Dialects with embedded schemas
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// TrackingTableSQL creates the table that records applied versions; valid in both dialects
const TrackingTableSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

//go:embed sql/sqlite/*.sql sql/postgres/*.sql
var files embed.FS

// Migration is one versioned schema file
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Load returns the migrations of a dialect ordered by version.
// File names follow NNN_name.sql.
func Load(dialect string) ([]Migration, error) {
	dir := path.Join("sql", dialect)
	entries, err := fs.ReadDir(files, dir)
	if err != nil {
		return nil, fmt.Errorf("unknown migration dialect %q: %w", dialect, err)
	}

	migrations := make([]Migration, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		prefix, name, ok := strings.Cut(strings.TrimSuffix(entry.Name(), ".sql"), "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: missing version prefix", entry.Name())
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %s: invalid version: %w", entry.Name(), err)
		}
		content, err := fs.ReadFile(files, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{Version: version, Name: name, SQL: string(content)})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version == migrations[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %d", migrations[i].Version)
		}
	}
	return migrations, nil
}
