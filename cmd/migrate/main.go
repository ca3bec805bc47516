package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/repricer-backend/internal/bootstrap"
	"github.com/angelmondragon/repricer-backend/pkg/db"
	"github.com/angelmondragon/repricer-backend/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	// create and validate only touch the filesystem.
	switch *cmd {
	case "create":
		if *name == "" {
			fail("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			fail("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			fail("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	rt := bootstrap.Start("migrate")
	defer rt.Close()
	ctx := rt.Logger.WithFields(context.Background(), map[string]any{
		"env": rt.Config.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	// Opened directly: the dev auto-migrate hook must not race an explicit command.
	dbClient, err := db.New(ctx, rt.Config.DB, rt.Logger)
	rt.Require(ctx, "database", err)
	rt.OnClose("database", dbClient.Close)

	sqlDB, err := dbClient.SQL()
	rt.Require(ctx, "sql database", err)

	if err := run(ctx, sqlDB, *cmd, *dir, *version); err != nil {
		rt.Fail(ctx, "migration command failed", err)
	}
	rt.Logger.Info(ctx, "migration command complete")
}

func run(ctx context.Context, sqlDB *sql.DB, cmd, dir, version string) error {
	switch cmd {
	case "up", "down", "status":
		return migrate.Run(ctx, sqlDB, dir, cmd)
	case "version":
		if version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, dir, version)
	default:
		return fmt.Errorf("unknown -cmd value: %s", cmd)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
