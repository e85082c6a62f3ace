package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/bizvistar/billing-backend/pkg/config"
	"github.com/bizvistar/billing-backend/pkg/db"
	"github.com/bizvistar/billing-backend/pkg/logger"
	"github.com/bizvistar/billing-backend/pkg/migrate"
)

type options struct {
	dir     string
	name    string
	version string
}

// offline commands work on the migration files alone.
var offline = map[string]func(opts options) error{
	"create": func(opts options) error {
		if opts.name == "" {
			return fmt.Errorf("-name is required for create")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name, time.Now())
		if err != nil {
			return err
		}
		fmt.Println("created", path)
		return nil
	},
	"validate": func(opts options) error {
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return err
		}
		fmt.Println("migrations valid")
		return nil
	},
	"list": func(opts options) error {
		files, err := migrate.ListDir(opts.dir)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Printf("%s  %s\n", f.Version, f.Name)
		}
		return nil
	},
}

// online commands run goose against postgres.
var online = map[string]func(ctx context.Context, sqlDB *sql.DB, opts options) error{
	"up": func(ctx context.Context, sqlDB *sql.DB, opts options) error {
		return migrate.Run(ctx, sqlDB, opts.dir, "up")
	},
	"down": func(ctx context.Context, sqlDB *sql.DB, opts options) error {
		return migrate.Run(ctx, sqlDB, opts.dir, "down")
	},
	"status": func(ctx context.Context, sqlDB *sql.DB, opts options) error {
		return migrate.Run(ctx, sqlDB, opts.dir, "status")
	},
	"version": func(ctx context.Context, sqlDB *sql.DB, opts options) error {
		if opts.version == "" {
			return fmt.Errorf("-version is required for version")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version)
	},
}

func commandNames() string {
	var names []string
	for name := range offline {
		names = append(names, name)
	}
	for name := range online {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: "+commandNames())
	var opts options
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "migrations directory, or \""+migrate.EmbeddedDir+"\" for the compiled-in set")
	flag.StringVar(&opts.name, "name", "", "migration name for create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for version")
	flag.Parse()

	if run, ok := offline[*cmd]; ok {
		if err := run(opts); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", *cmd, err)
			os.Exit(1)
		}
		return
	}
	run, ok := online[*cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown -cmd %q (want %s)\n", *cmd, commandNames())
		os.Exit(2)
	}

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Env:         cfg.App.Env,
		Format:      cfg.App.LogFormat,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"cmd": *cmd, "dir": opts.dir})

	// goose migrations are postgres only, so sqlite is never used here
	dbClient, err := db.New(ctx, cfg.DB, false, logg)
	if err != nil {
		logg.Error(ctx, "failed to connect to database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "failed to open sql handle", err)
		os.Exit(1)
	}

	if err := run(ctx, sqlDB, opts); err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration complete")
}
