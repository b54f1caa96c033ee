// Copyright (c) 2025 Northbound System
package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/northbound/ragcore/internal/domain"
)

// SubscriptionStore persists the one Subscription row per Workspace.
type SubscriptionStore struct {
	db *sql.DB
}

// NewSubscriptionStore wraps db.
func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// Create seeds a Subscription for a new workspace with tier's default quota
// and a period starting now.
func (s *SubscriptionStore) Create(ctx context.Context, workspaceID string, tier domain.PlanTier) (*domain.Subscription, error) {
	now := time.Now()
	sub := &domain.Subscription{
		WorkspaceID:  workspaceID,
		Tier:         tier,
		Status:       domain.SubscriptionActive,
		PeriodStart:  now,
		PeriodEnd:    now.Add(30 * 24 * time.Hour),
		MonthlyQuota: domain.DefaultMonthlyQuota(tier),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (workspace_id, tier, status, period_start, period_end, monthly_quota, queries_this_period)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		sub.WorkspaceID, sub.Tier, sub.Status, sub.PeriodStart, sub.PeriodEnd, sub.MonthlyQuota,
	)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "create subscription", err)
	}
	return sub, nil
}

// Get loads the Subscription for workspaceID.
func (s *SubscriptionStore) Get(ctx context.Context, workspaceID string) (*domain.Subscription, error) {
	return scanSubscription(s.db.QueryRowContext(ctx,
		`SELECT workspace_id, tier, status, period_start, period_end, monthly_quota, queries_this_period
		 FROM subscriptions WHERE workspace_id = ?`, workspaceID))
}

func scanSubscription(row *sql.Row) (*domain.Subscription, error) {
	var sub domain.Subscription
	var quota sql.NullInt64
	err := row.Scan(&sub.WorkspaceID, &sub.Tier, &sub.Status, &sub.PeriodStart, &sub.PeriodEnd, &quota, &sub.QueriesThisPeriod)
	if err == sql.ErrNoRows {
		return nil, domain.New(domain.KindNotFound, "subscription not found")
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "get subscription", err)
	}
	if quota.Valid {
		q := int(quota.Int64)
		sub.MonthlyQuota = &q
	}
	return &sub, nil
}
