package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"
	"text/tabwriter"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/Strob0t/PertForge/internal/adapter/filestore"
	"github.com/Strob0t/PertForge/internal/adapter/postgres"
	"github.com/Strob0t/PertForge/internal/config"
	"github.com/Strob0t/PertForge/internal/domain/snapshot"
	"github.com/Strob0t/PertForge/internal/port/database"
)

// minKeyLength is the shortest API key hash-key accepts.
const minKeyLength = 16

// runAdmin dispatches admin subcommands (hash-key, migrate-status,
// migrate-down, list-snapshots).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "hash-key":
		return runAdminHashKey(args[1:], os.Stdout, promptPassword)
	case "migrate-status":
		return runAdminMigrateStatus(args[1:])
	case "migrate-down":
		return runAdminMigrateDown(args[1:])
	case "list-snapshots":
		return runAdminListSnapshots(args[1:], os.Stdout)
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: pertforge admin <command> [options]

Commands:
  hash-key         Hash an API key for auth.api_key_hash
  migrate-status   Show the applied database migration version
  migrate-down     Roll back database migrations
  list-snapshots   List stored schedule snapshots
  help             Show this help message

Examples:
  pertforge admin hash-key
  pertforge admin migrate-down -steps 1
  pertforge admin list-snapshots
`)
}

// runAdminHashKey prints the bcrypt hash of an API key read from the
// terminal.
func runAdminHashKey(args []string, out io.Writer, prompt func(string) (string, error)) error {
	fs := flag.NewFlagSet("hash-key", flag.ContinueOnError)
	cost := fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := prompt("API key: ")
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}
	if len(key) < minKeyLength {
		return fmt.Errorf("key must be at least %d characters", minKeyLength)
	}
	confirm, err := prompt("Confirm API key: ")
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}
	if key != confirm {
		return errors.New("keys do not match")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), *cost)
	if err != nil {
		return fmt.Errorf("hash key: %w", err)
	}
	_, err = fmt.Fprintln(out, string(hash))
	return err
}

func runAdminMigrateStatus(args []string) error {
	fs := flag.NewFlagSet("migrate-status", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	version, err := postgres.MigrationVersion(context.Background(), cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}
	fmt.Printf("Database version: %d\n", version)
	return nil
}

func runAdminMigrateDown(args []string) error {
	fs := flag.NewFlagSet("migrate-down", flag.ContinueOnError)
	steps := fs.Int("steps", 1, "number of migrations to roll back")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *steps < 1 {
		return errors.New("-steps must be >= 1")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	if err := postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, *steps); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	version, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Rolled back %d migration(s), database version is now %d\n", *steps, version)
	return nil
}

func runAdminListSnapshots(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list-snapshots", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, cleanup, err := loadAdminStore()
	if err != nil {
		return err
	}
	defer cleanup()

	list, err := store.List(context.Background())
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	return writeSnapshots(out, list)
}

func writeSnapshots(out io.Writer, list []snapshot.Summary) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(out, "No snapshots found.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tCREATED\tT0\tTASKS\tDURATION")
	for i := range list {
		s := &list[i]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
			s.ID, s.Name, s.CreatedAt.Format("2006-01-02 15:04:05"), s.ProjectStart, s.TasksCount, s.ProjectDuration)
	}
	return w.Flush()
}

// loadAdminStore opens the configured snapshot store without running
// migrations.
func loadAdminStore() (database.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.Store.Backend == "file" {
		store, err := filestore.New(cfg.Store.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("open file store: %w", err)
		}
		return store, func() {}, nil
	}

	pool, err := postgres.NewPool(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return postgres.NewStore(pool), pool.Close, nil
}

// promptPassword reads a secret from the terminal without echoing.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)                         // newline after input
	if err != nil {
		return "", err
	}
	return string(b), nil
}
