package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"messengerhub/internal/config"
	"messengerhub/internal/constants"
	"messengerhub/internal/database"
	"messengerhub/internal/database/mongodb"
	"messengerhub/internal/database/postgres"
	"messengerhub/internal/models"
)

// migrator is implemented by the relational stores
type migrator interface {
	Migrate(ctx context.Context) ([]int, error)
	Close() error
}

func main() {
	configPath := flag.String("config", constants.DefaultConfigPath, "Path to optional configuration file")
	dbPath := flag.String("db", "", "Override the SQLite database path")
	flag.Parse()

	dbCfg, err := config.LoadDatabaseConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dbPath != "" {
		dbCfg.Driver = constants.DatabaseDriverSQLite
		dbCfg.Path = *dbPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultStoreConnectTimeoutSec)*time.Second)
	defer cancel()

	if dbCfg.Driver == constants.DatabaseDriverMongoDB {
		store, err := mongodb.New(ctx, dbCfg.URL, dbCfg.Name)
		if err != nil {
			log.Fatalf("Failed to prepare mongodb: %v", err)
		}
		defer store.Close()
		fmt.Println("MongoDB indexes are up to date")
		return
	}

	m, err := openMigrator(ctx, dbCfg)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer m.Close()

	applied, err := m.Migrate(ctx)
	for _, version := range applied {
		fmt.Printf("Applied migration %d\n", version)
	}
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	if len(applied) == 0 {
		fmt.Println("Schema already up to date, nothing to apply")
		return
	}
	fmt.Printf("%s schema updated (%d migrations)\n", dbCfg.Driver, len(applied))
}

func openMigrator(ctx context.Context, dbCfg models.DatabaseConfig) (migrator, error) {
	switch dbCfg.Driver {
	case constants.DatabaseDriverPostgres:
		return postgres.Connect(ctx, dbCfg.URL)
	case constants.DatabaseDriverSQLite, "":
		return database.Open(dbCfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", dbCfg.Driver)
	}
}
