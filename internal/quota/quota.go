// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package quota implements the Quota Manager (C11): atomic, serializable
// per-workspace period quota tracking against the subscriptions table.
package quota

import (
	"context"
	"database/sql"
	"time"

	"github.com/northbound/ragcore/internal/domain"
)

// Manager reserves, rolls over, and refunds query quota for workspaces.
// Every operation runs inside a single immediate-mode transaction (the
// database is opened with _txlock=immediate) so two concurrent reservers
// serialize on the subscription row instead of racing.
type Manager struct {
	db *sql.DB
}

// New wraps db.
func New(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// Reserve attempts to reserve n units of quota for workspaceID. It rolls
// the period over first if the current one has ended, then grants the
// reservation only if quota is unlimited (nil) or the new usage would not
// exceed it.
func (m *Manager) Reserve(ctx context.Context, workspaceID string, n int) (granted bool, err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return false, domain.Wrap(domain.KindInternal, "begin quota reservation", err)
	}
	defer tx.Rollback()

	sub, err := loadForUpdate(ctx, tx, workspaceID)
	if err != nil {
		return false, err
	}

	now := time.Now()
	if !sub.periodEnd.After(now) {
		sub = rollover(sub, now)
	}

	if sub.quota != nil && sub.used+n > *sub.quota {
		if err := persist(ctx, tx, sub); err != nil {
			return false, err
		}
		if err := tx.Commit(); err != nil {
			return false, domain.Wrap(domain.KindInternal, "commit quota rollover", err)
		}
		return false, nil
	}

	sub.used += n
	if err := persist(ctx, tx, sub); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, domain.Wrap(domain.KindInternal, "commit quota reservation", err)
	}
	return true, nil
}

// Rollover advances workspaceID's subscription period if it has ended.
// Idempotent: calling it repeatedly within the same period is a no-op.
func (m *Manager) Rollover(ctx context.Context, workspaceID string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Wrap(domain.KindInternal, "begin quota rollover", err)
	}
	defer tx.Rollback()

	sub, err := loadForUpdate(ctx, tx, workspaceID)
	if err != nil {
		return err
	}
	now := time.Now()
	if !sub.periodEnd.After(now) {
		sub = rollover(sub, now)
		if err := persist(ctx, tx, sub); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Wrap(domain.KindInternal, "commit quota rollover", err)
	}
	return nil
}

// Refund gives back n units of previously reserved quota, floored at zero.
// Not called by the orchestrator today; kept for future charge-reversal
// policy per §4.11.
func (m *Manager) Refund(ctx context.Context, workspaceID string, n int) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Wrap(domain.KindInternal, "begin quota refund", err)
	}
	defer tx.Rollback()

	sub, err := loadForUpdate(ctx, tx, workspaceID)
	if err != nil {
		return err
	}
	sub.used -= n
	if sub.used < 0 {
		sub.used = 0
	}
	if err := persist(ctx, tx, sub); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return domain.Wrap(domain.KindInternal, "commit quota refund", err)
	}
	return nil
}

type subscriptionRow struct {
	workspaceID string
	periodStart time.Time
	periodEnd   time.Time
	quota       *int
	used        int
}

func loadForUpdate(ctx context.Context, tx *sql.Tx, workspaceID string) (subscriptionRow, error) {
	var sub subscriptionRow
	sub.workspaceID = workspaceID
	var quota sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT period_start, period_end, monthly_quota, queries_this_period
		 FROM subscriptions WHERE workspace_id = ?`, workspaceID,
	).Scan(&sub.periodStart, &sub.periodEnd, &quota, &sub.used)
	if err == sql.ErrNoRows {
		return subscriptionRow{}, domain.New(domain.KindNotFound, "subscription not found: "+workspaceID)
	}
	if err != nil {
		return subscriptionRow{}, domain.Wrap(domain.KindInternal, "load subscription for quota", err)
	}
	if quota.Valid {
		q := int(quota.Int64)
		sub.quota = &q
	}
	return sub, nil
}

func rollover(sub subscriptionRow, now time.Time) subscriptionRow {
	sub.periodStart = sub.periodEnd
	sub.periodEnd = sub.periodStart.Add(30 * 24 * time.Hour)
	sub.used = 0
	return sub
}

func persist(ctx context.Context, tx *sql.Tx, sub subscriptionRow) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE subscriptions SET period_start = ?, period_end = ?, queries_this_period = ? WHERE workspace_id = ?`,
		sub.periodStart, sub.periodEnd, sub.used, sub.workspaceID,
	)
	if err != nil {
		return domain.Wrap(domain.KindInternal, "persist subscription", err)
	}
	return nil
}
