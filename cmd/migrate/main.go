package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

type contextKey int

const contextKeyMigrator contextKey = iota

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

func getMigrator(ctx *cli.Context) *migrate.Migrate {
	return ctx.Context.Value(contextKeyMigrator).(*migrate.Migrate)
}

func prepareMigrator(ctx *cli.Context) error {
	dbURL := ctx.String("db-url")
	if dbURL == "" {
		return fmt.Errorf("DB_URL environment variable is required")
	}

	migrationsPath := ctx.String("path")
	if migrationsPath == "" {
		found, err := findMigrationsDir()
		if err != nil {
			return err
		}
		migrationsPath = found
	}
	absMigrationsPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		return err
	}

	m, err := migrate.New("file://"+absMigrationsPath, dbURL)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	ctx.Context = context.WithValue(ctx.Context, contextKeyMigrator, m)
	return nil
}

func closeMigrator(ctx *cli.Context) error {
	m, ok := ctx.Context.Value(contextKeyMigrator).(*migrate.Migrate)
	if !ok {
		return nil
	}
	sourceErr, dbErr := m.Close()
	return errors.Join(sourceErr, dbErr)
}

var upCommand = &cli.Command{
	Name:   "up",
	Usage:  "Apply all pending migrations",
	Before: prepareMigrator,
	After:  closeMigrator,
	Action: func(ctx *cli.Context) error {
		if err := getMigrator(ctx).Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		logger.Info().Msg("migration up successful")
		return nil
	},
}

var downCommand = &cli.Command{
	Name:  "down",
	Usage: "Roll back migrations",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "steps",
			Usage: "Number of migrations to roll back, 0 for all",
		},
	},
	Before: prepareMigrator,
	After:  closeMigrator,
	Action: func(ctx *cli.Context) error {
		m := getMigrator(ctx)
		var err error
		if steps := ctx.Int("steps"); steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		logger.Info().Msg("migration down successful")
		return nil
	},
}

var versionCommand = &cli.Command{
	Name:   "version",
	Usage:  "Print the applied migration version",
	Before: prepareMigrator,
	After:  closeMigrator,
	Action: func(ctx *cli.Context) error {
		version, dirty, err := getMigrator(ctx).Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty: %t)\n", version, dirty)
		return nil
	},
}

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg("no .env file found")
	}

	app := &cli.App{
		Name:  "migrate",
		Usage: "Manage the chat database schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db-url",
				Usage:   "Postgres connection URL",
				EnvVars: []string{"DB_URL"},
			},
			&cli.StringFlag{
				Name:  "path",
				Usage: "Migrations directory, searched upwards from the working directory when empty",
			},
		},
		Commands: []*cli.Command{
			upCommand,
			downCommand,
			versionCommand,
		},
		DefaultCommand: "up",
	}
	if err := app.Run(os.Args); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}
}

func findMigrationsDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	candidates := []string{}
	current := cwd
	for i := 0; i < 6; i++ {
		candidates = append(candidates, filepath.Join(current, "migrations"))
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		candidates = append(candidates,
			filepath.Join(exeDir, "migrations"),
			filepath.Join(exeDir, "..", "migrations"),
			filepath.Join(exeDir, "..", "..", "migrations"),
		)
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("migrations directory not found")
}
