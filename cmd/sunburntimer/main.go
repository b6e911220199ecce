package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/lox/sunburntimer/internal/config"
	"github.com/lox/sunburntimer/internal/log"
	"github.com/lox/sunburntimer/internal/store"
)

type Globals struct {
	Config  string                   `help:"Path to YAML config file." type:"path" env:"SUNBURN_CONFIG"`
	DB      string                   `help:"Path to SQLite database (overrides config)." type:"path"`
	Debug   bool                     `help:"Enable debug logging." env:"SUNBURN_DEBUG"`
	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name=env-file,default='.env',help='Path to .env file.'"`
}

type CLI struct {
	Globals

	Serve   ServeCmd   `cmd:"" default:"1" help:"Run the HTTP API and forecast scheduler."`
	Calc    CalcCmd    `cmd:"" help:"Estimate time to sunburn for a place."`
	Fetch   FetchCmd   `cmd:"" help:"Fetch forecasts once and exit."`
	Migrate MigrateCmd `cmd:"" help:"Apply database migrations and exit."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("sunburntimer"),
		kong.Description("Estimates how long until UV exposure burns your skin."),
		kong.UsageOnError(),
	)

	if err := log.Init(cli.Debug); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}

// app is the configuration and storage shared by every command.
type app struct {
	cfg   *config.Config
	db    *sql.DB
	store *store.Store
}

func (g *Globals) open() (*app, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.DB != "" {
		cfg.Database.Path = g.DB
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := cfg.Database.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Debugf("database ready at %s", cfg.Database.Path)

	return &app{cfg: cfg, db: db, store: st}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
