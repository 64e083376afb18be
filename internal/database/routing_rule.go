package database

import (
	"context"
	"fmt"

	"github.com/flowpbx/remotecc/internal/database/models"
)

// routingRuleRepo implements RoutingRuleRepository.
type routingRuleRepo struct {
	db *DB
}

// NewRoutingRuleRepository creates a new RoutingRuleRepository.
func NewRoutingRuleRepository(db *DB) RoutingRuleRepository {
	return &routingRuleRepo{db: db}
}

// List returns every routing rule in table order.
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

// Create inserts a routing rule at the end of the table.
func (r *routingRuleRepo) Create(ctx context.Context, rule *models.RoutingRule) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO routing_rules (state, area_codes, extension) VALUES (?, ?, ?)`,
		rule.State, rule.AreaCodes, rule.Extension,
	)
	if err != nil {
		return fmt.Errorf("inserting routing rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	rule.ID = id
	return nil
}

// ReplaceAll swaps the whole table for rules, keeping their order, in a
// single transaction. Readers see either the old or the new table.
func (r *routingRuleRepo) ReplaceAll(ctx context.Context, rules []models.RoutingRule) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning routing rule import: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM routing_rules`); err != nil {
		return fmt.Errorf("clearing routing rules: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO routing_rules (state, area_codes, extension) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing routing rule insert: %w", err)
	}
	defer stmt.Close()

	for i := range rules {
		if _, err := stmt.ExecContext(ctx, rules[i].State, rules[i].AreaCodes, rules[i].Extension); err != nil {
			return fmt.Errorf("inserting routing rule %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing routing rule import: %w", err)
	}
	return nil
}
