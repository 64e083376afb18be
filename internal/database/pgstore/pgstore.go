// Package pgstore keeps the routing table and call event log in PostgreSQL
// for deployments that run several webhook instances against one database.
package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/flowpbx/remotecc/internal/database"
	"github.com/flowpbx/remotecc/internal/database/models"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store holds the PostgreSQL connection pool.
type Store struct {
	db *sql.DB
}

// New opens a PostgreSQL connection and runs pending migrations.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgresql: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgresql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	slog.Info("postgresql store opened")
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// PingContext checks that the database is reachable.
func (s *Store) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RoutingRules returns the routing table repository.
func (s *Store) RoutingRules() database.RoutingRuleRepository {
	return &routingRuleRepo{db: s.db}
}

// CallEvents returns the call event log repository.
func (s *Store) CallEvents() database.CallEventRepository {
	return &callEventRepo{db: s.db}
}

// migrate runs all pending SQL migration files in order.
func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version := strings.TrimSuffix(entry.Name(), ".sql")

		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = $1", version).Scan(&count)
		if err != nil {
			return fmt.Errorf("checking migration %s: %w", version, err)
		}
		if count > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", version, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %s: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", version, err)
		}

		slog.Info("applied migration", "version", version)
	}

	return nil
}

type routingRuleRepo struct {
	db *sql.DB
}

func (r *routingRuleRepo) List(ctx context.Context) ([]models.RoutingRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, state, area_codes, extension FROM routing_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing routing rules: %w", err)
	}
	defer rows.Close()

	var rules []models.RoutingRule
	for rows.Next() {
		var rule models.RoutingRule
		if err := rows.Scan(&rule.ID, &rule.State, &rule.AreaCodes, &rule.Extension); err != nil {
			return nil, fmt.Errorf("scanning routing rule row: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating routing rule rows: %w", err)
	}
	return rules, nil
}

func (r *routingRuleRepo) Create(ctx context.Context, rule *models.RoutingRule) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO routing_rules (state, area_codes, extension) VALUES ($1, $2, $3) RETURNING id`,
		rule.State, rule.AreaCodes, rule.Extension,
	).Scan(&rule.ID)
	if err != nil {
		return fmt.Errorf("inserting routing rule: %w", err)
	}
	return nil
}

func (r *routingRuleRepo) ReplaceAll(ctx context.Context, rules []models.RoutingRule) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning routing rule import: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM routing_rules`); err != nil {
		return fmt.Errorf("clearing routing rules: %w", err)
	}
	for i := range rules {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO routing_rules (state, area_codes, extension) VALUES ($1, $2, $3)`,
			rules[i].State, rules[i].AreaCodes, rules[i].Extension,
		); err != nil {
			return fmt.Errorf("inserting routing rule %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing routing rule import: %w", err)
	}
	return nil
}

type callEventRepo struct {
	db *sql.DB
}

func (r *callEventRepo) Create(ctx context.Context, ev *models.CallEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO call_events (source, pbx_id, call_id, dialed_number, caller_id_number,
		 caller_id_name, caller_area_code, matched_state, matched_extension, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		ev.Source, ev.PBXID, ev.CallID, ev.DialedNumber, ev.CallerIDNumber,
		ev.CallerIDName, ev.CallerAreaCode, ev.MatchedState, ev.MatchedExtension,
		ev.CreatedAt,
	).Scan(&ev.ID)
	if err != nil {
		return fmt.Errorf("inserting call event: %w", err)
	}
	return nil
}

func (r *callEventRepo) List(ctx context.Context, filter database.CallEventFilter) ([]models.CallEvent, error) {
	query := `SELECT id, source, pbx_id, call_id, dialed_number, caller_id_number,
		 caller_id_name, caller_area_code, matched_state, matched_extension, created_at
		 FROM call_events WHERE source = $1 ORDER BY id DESC`
	args := []any{filter.Source}
	if filter.Limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing call events: %w", err)
	}
	defer rows.Close()

	events := []models.CallEvent{}
	for rows.Next() {
		var e models.CallEvent
		if err := rows.Scan(&e.ID, &e.Source, &e.PBXID, &e.CallID, &e.DialedNumber,
			&e.CallerIDNumber, &e.CallerIDName, &e.CallerAreaCode,
			&e.MatchedState, &e.MatchedExtension, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning call event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating call event rows: %w", err)
	}
	return events, nil
}

func (r *callEventRepo) Count(ctx context.Context, source string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM call_events WHERE source = $1`, source).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting call events: %w", err)
	}
	return count, nil
}
