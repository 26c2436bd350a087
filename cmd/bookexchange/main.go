// Command bookexchange manages the local book listing and sponsor stores.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/carbonware/bookexchange/internal/config"
	storeerrors "github.com/carbonware/bookexchange/internal/errors"
	"github.com/carbonware/bookexchange/internal/jsonldb"
	"github.com/carbonware/bookexchange/internal/storage/kv"
	"github.com/carbonware/bookexchange/internal/storage/listing"
	"github.com/carbonware/bookexchange/internal/storage/sponsor"
	"github.com/carbonware/bookexchange/internal/storage/sqlite"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "bookexchange: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			val := a.Value.Any()
			skip := false
			switch t := val.(type) {
			case string:
				skip = t == ""
			case bool:
				skip = !t
			case int64:
				skip = t == 0
			case time.Time:
				skip = t.IsZero()
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)
	return run(ctx, os.Args[1:], os.Stdout, ll)
}

const usage = `usage: bookexchange [flags] <command> [args]

commands:
  seed                 insert demo listings and sponsors into empty stores
  list                 print every listing
  get <id>             print one listing
  add [flags]          create a listing from form fields
  update <id> [flags]  change fields of a listing
  delete <id>          remove a listing
  sponsors [-top N]    print sponsors, most recent first
  add-sponsor [flags]  create a sponsor
  mailto <id>          print the contact link of a listing
  watch                print sponsor changes made by other processes

flags:
`

// run parses args and executes one command. ll receives the configured log
// level.
func run(ctx context.Context, args []string, stdout io.Writer, ll *slog.LevelVar) error {
	fs := flag.NewFlagSet("bookexchange", flag.ContinueOnError)
	dataDir := fs.String("data-dir", "./data", "Data directory")
	configPath := fs.String("config", "", "Configuration file (default <data-dir>/config.yaml)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if *configPath == "" {
		*configPath = filepath.Join(*dataDir, "config.yaml")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnvFile(filepath.Join(*dataDir, ".env")); err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("-log-level: %w", err)
	}
	ll.Set(level)

	a, err := openApp(ctx, *dataDir, cfg, stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.WarnContext(ctx, "failed to close storage", "err", err)
		}
	}()
	return a.dispatch(ctx, fs.Arg(0), fs.Args()[1:])
}

// app holds the stores, built once and shared by every command.
type app struct {
	cfg      *config.Config
	books    *listing.Repository
	kv       *kv.Store
	sponsors *sponsor.Store
	stdout   io.Writer
	closer   io.Closer
}

func openApp(ctx context.Context, dataDir string, cfg *config.Config, stdout io.Writer) (*app, error) {
	a := &app{cfg: cfg, stdout: stdout}

	var store listing.Store
	switch cfg.Backend {
	case config.BackendSQLite:
		s, err := sqlite.Open(ctx, filepath.Join(dataDir, cfg.Database.Name+".sqlite"), cfg.Database.Version)
		if err != nil {
			return nil, err
		}
		store = s
		a.closer = s
	default:
		db, err := jsonldb.Open(filepath.Join(dataDir, cfg.Database.Name))
		if err != nil {
			return nil, storeerrors.StorageUnavailable("database "+cfg.Database.Name, err)
		}
		s, err := listing.OpenTableStore(ctx, db, cfg.Database.Collection, cfg.Database.Version)
		if err != nil {
			return nil, err
		}
		store = s
	}
	var opts []listing.Option
	if !cfg.Seed.Books {
		opts = append(opts, listing.WithSeeds(nil))
	}
	a.books = listing.NewRepository(store, opts...)

	kvs, err := kv.Open(filepath.Join(dataDir, "local_storage.json"))
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.kv = kvs
	sopts := []sponsor.Option{sponsor.WithKey(cfg.Sponsors.StorageKey)}
	if !cfg.Seed.Sponsors {
		sopts = append(sopts, sponsor.WithSeeds(nil))
	}
	a.sponsors = sponsor.NewStore(kvs, sopts...)
	slog.DebugContext(ctx, "storage ready", "backend", cfg.Backend, "data_dir", dataDir)
	return a, nil
}

func (a *app) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}
