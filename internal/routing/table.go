// Package routing resolves a caller's area code to a routing extension using
// the persisted routing table.
package routing

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/flowpbx/remotecc/internal/database/models"
	"golang.org/x/sync/singleflight"
)

// Rule is a routing table row with its area-code list split and trimmed.
type Rule struct {
	State     string
	Extension string
	AreaCodes []string
}

// Compile splits each row's comma-separated area codes, keeping table order.
// Blank entries are dropped, so a row with no codes compiles to an inert rule.
func Compile(rows []models.RoutingRule) []Rule {
	rules := make([]Rule, 0, len(rows))
	for _, row := range rows {
		var codes []string
		if strings.TrimSpace(row.AreaCodes) != "" {
			for _, c := range strings.Split(row.AreaCodes, ",") {
				if c = strings.TrimSpace(c); c != "" {
					codes = append(codes, c)
				}
			}
		}
		rules = append(rules, Rule{
			State:     row.State,
			Extension: row.Extension,
			AreaCodes: codes,
		})
	}
	return rules
}

// Match returns the first rule whose area-code list contains areaCode
// exactly. Inert rules and the empty area code never match.
func Match(rules []Rule, areaCode string) (Rule, bool) {
	if areaCode == "" {
		return Rule{}, false
	}
	for _, r := range rules {
		for _, c := range r.AreaCodes {
			if c == areaCode {
				return r, true
			}
		}
	}
	return Rule{}, false
}

// RuleSource loads the routing table rows in table order.
type RuleSource interface {
	List(ctx context.Context) ([]models.RoutingRule, error)
}

// TableOptions configures a Table.
type TableOptions struct {
	// CacheTTL is how long a loaded rule set is reused. Zero reads the
	// source on every lookup.
	CacheTTL time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Table resolves area codes against a RuleSource.
type Table struct {
	src RuleSource
	ttl time.Duration
	now func() time.Time

	group singleflight.Group

	mu       sync.Mutex
	rules    []Rule
	loaded   bool
	loadedAt time.Time
}

// NewTable creates a Table reading from src.
func NewTable(src RuleSource, opts TableOptions) *Table {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Table{src: src, ttl: opts.CacheTTL, now: now}
}

// Resolve returns the rule matching areaCode. A failed table read is logged
// and resolves to no match unless an earlier rule set is cached, in which
// case that set is used.
func (t *Table) Resolve(ctx context.Context, areaCode string) (Rule, bool) {
	if areaCode == "" {
		return Rule{}, false
	}
	rules, err := t.load(ctx)
	if err != nil {
		slog.Error("routing table: failed to load rules", "error", err, "area_code", areaCode)
		return Rule{}, false
	}
	return Match(rules, areaCode)
}

// Invalidate drops the cached rule set so the next lookup reloads it.
func (t *Table) Invalidate() {
	t.mu.Lock()
	t.loaded = false
	t.rules = nil
	t.mu.Unlock()
}

func (t *Table) load(ctx context.Context) ([]Rule, error) {
	if t.ttl > 0 {
		t.mu.Lock()
		if t.loaded && t.now().Sub(t.loadedAt) < t.ttl {
			rules := t.rules
			t.mu.Unlock()
			return rules, nil
		}
		t.mu.Unlock()
	}

	v, err, _ := t.group.Do("rules", func() (any, error) {
		rows, err := t.src.List(ctx)
		if err != nil {
			return nil, err
		}
		rules := Compile(rows)
		if t.ttl > 0 {
			t.mu.Lock()
			t.rules = rules
			t.loaded = true
			t.loadedAt = t.now()
			t.mu.Unlock()
		}
		return rules, nil
	})
	if err != nil {
		t.mu.Lock()
		stale, ok := t.rules, t.loaded
		t.mu.Unlock()
		if ok {
			slog.Warn("routing table: reload failed, using cached rules", "error", err)
			return stale, nil
		}
		return nil, err
	}
	return v.([]Rule), nil
}
