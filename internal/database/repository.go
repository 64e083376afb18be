package database

import (
	"context"

	"github.com/flowpbx/remotecc/internal/database/models"
)

// RoutingRuleRepository manages the area-code routing table. The routing
// path only ever calls List; the write methods serve operator tooling.
type RoutingRuleRepository interface {
	List(ctx context.Context) ([]models.RoutingRule, error)
	Create(ctx context.Context, rule *models.RoutingRule) error
	ReplaceAll(ctx context.Context, rules []models.RoutingRule) error
}

// CallEventRepository is the append-only inbound call log.
type CallEventRepository interface {
	Create(ctx context.Context, ev *models.CallEvent) error
	List(ctx context.Context, filter CallEventFilter) ([]models.CallEvent, error)
	Count(ctx context.Context, source string) (int64, error)
}

// CallEventFilter selects events for listing. Results are always newest
// first. A zero Limit returns every matching row.
type CallEventFilter struct {
	Source string
	Limit  int
	Offset int
}
