package cmd

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/mailscore/internal/addrbook"
	"github.com/solatis/mailscore/internal/core/config"
	"github.com/solatis/mailscore/internal/core/db"
	"github.com/solatis/mailscore/internal/core/metrics"
	"github.com/solatis/mailscore/internal/hook"
	"github.com/solatis/mailscore/internal/mailbox"
	"github.com/solatis/mailscore/internal/rc"
	"github.com/solatis/mailscore/internal/score"
)

// components is everything built from the configuration: the address
// book, hooks, rule store and engine.
type components struct {
	book   *addrbook.Book
	hooks  *hook.Registry
	store  *score.Store
	engine *score.Engine
}

// buildComponents applies the address book, hooks and rules from cfg, then
// the rules file, which may add to all three.
func buildComponents(cfg *config.Config, log *slog.Logger) (*components, error) {
	book, err := addrbook.FromConfig(cfg.AddressBook)
	if err != nil {
		return nil, fmt.Errorf("addressbook: %w", err)
	}
	hooks, err := hook.FromConfig(cfg.Hooks, book)
	if err != nil {
		return nil, fmt.Errorf("hooks: %w", err)
	}

	store := score.NewStore()
	for i, r := range cfg.Scoring.Rules {
		if err := store.UpsertToken(r.Pattern, r.Value); err != nil {
			metrics.PatternErrors.WithLabelValues("config").Inc()
			return nil, fmt.Errorf("scoring.rules[%d] %q: %w", i, r.Pattern, err)
		}
	}

	if cfg.Scoring.RulesFile != "" {
		interp := rc.New(store, book, hooks, rc.WithLogger(log))
		if err := interp.LoadFile(cfg.Scoring.RulesFile); err != nil {
			return nil, err
		}
	}

	thresholds := score.Thresholds{
		Delete: cfg.Scoring.ThresholdDelete,
		Read:   cfg.Scoring.ThresholdRead,
		Flag:   cfg.Scoring.ThresholdFlag,
	}
	engine := score.NewEngine(store, thresholds, score.WithDirectory(book), score.WithLogger(log))

	metrics.RulesLoaded.Set(float64(store.Len()))
	log.Debug("rules loaded", "rules", store.Len(), "hooks", len(hooks.Hooks()))
	return &components{book: book, hooks: hooks, store: store, engine: engine}, nil
}

// openMailbox opens a Maildir sorted by the configured keys, or by sortFlag
// when it is set.
func openMailbox(path, sortFlag string, log *slog.Logger) (*mailbox.Mailbox, error) {
	name := cfg.Scoring.Sort
	if sortFlag != "" {
		name = sortFlag
	}
	primary, err := score.ParseSortKey(name)
	if err != nil {
		return nil, err
	}
	aux, err := score.ParseSortKey(cfg.Scoring.SortAux)
	if err != nil {
		return nil, err
	}
	if aux == score.SortUnsorted {
		aux = score.SortDate
	}
	return mailbox.Open(path, mailbox.WithSort(primary, aux), mailbox.WithLogger(log))
}

// openDatabase opens the configured database and checks every migration
// was applied.
func openDatabase(cfg *config.Config) (*sqlx.DB, *db.Queries, error) {
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("no database configured (set --db-url or database.url)")
	}
	database, err := db.Open(cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	statuses, err := db.MigrateStatus(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			database.Close()
			return nil, nil, fmt.Errorf("migration %s not applied - run 'mailscore migrate' first", s.ID)
		}
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return database, queries, nil
}
