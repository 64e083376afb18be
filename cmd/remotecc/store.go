package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/flowpbx/remotecc/internal/config"
	"github.com/flowpbx/remotecc/internal/database"
	"github.com/flowpbx/remotecc/internal/database/pgstore"
	"github.com/flowpbx/remotecc/internal/routing"
)

// store is the routing table and event log behind whichever driver is
// configured.
type store struct {
	rules  database.RoutingRuleRepository
	events database.CallEventRepository
	ping   func(ctx context.Context) error
	close  func() error
}

func (s *store) PingContext(ctx context.Context) error { return s.ping(ctx) }

func (s *store) Close() error { return s.close() }

// openStore opens the configured backend and runs its migrations.
func openStore(cfg *config.Config) (*store, error) {
	switch cfg.DBDriver {
	case "postgres":
		pg, err := pgstore.New(cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		return &store{
			rules:  pg.RoutingRules(),
			events: pg.CallEvents(),
			ping:   pg.PingContext,
			close:  pg.Close,
		}, nil
	default:
		db, err := database.Open(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return &store{
			rules:  database.NewRoutingRuleRepository(db),
			events: database.NewCallEventRepository(db),
			ping:   db.PingContext,
			close:  db.Close,
		}, nil
	}
}

// importRules replaces the routing table with the rules in a CSV file and
// returns how many were loaded.
func importRules(ctx context.Context, repo database.RoutingRuleRepository, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening routing csv: %w", err)
	}
	defer f.Close()
	return importRulesFrom(ctx, repo, f)
}

func importRulesFrom(ctx context.Context, repo database.RoutingRuleRepository, r io.Reader) (int, error) {
	rules, err := routing.ReadRulesCSV(r)
	if err != nil {
		return 0, err
	}
	if err := repo.ReplaceAll(ctx, rules); err != nil {
		return 0, fmt.Errorf("replacing routing rules: %w", err)
	}
	return len(rules), nil
}
