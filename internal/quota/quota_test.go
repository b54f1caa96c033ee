// Copyright (c) 2025 Northbound System
package quota

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file::memory:?cache=shared&_txlock=immediate")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE subscriptions (
		workspace_id TEXT PRIMARY KEY,
		tier TEXT NOT NULL,
		status TEXT NOT NULL,
		period_start DATETIME NOT NULL,
		period_end DATETIME NOT NULL,
		monthly_quota INTEGER,
		queries_this_period INTEGER NOT NULL DEFAULT 0
	)`); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func seedSubscription(t *testing.T, db *sql.DB, workspaceID string, quota *int, used int, periodEnd time.Time) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO subscriptions (workspace_id, tier, status, period_start, period_end, monthly_quota, queries_this_period)
		 VALUES (?, 'free', 'active', ?, ?, ?, ?)`,
		workspaceID, periodEnd.Add(-30*24*time.Hour), periodEnd, quota, used,
	)
	if err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
}

func TestReserve_GrantsUnderQuota(t *testing.T) {
	db := testDB(t)
	q := 5
	seedSubscription(t, db, "ws1", &q, 3, time.Now().Add(24*time.Hour))
	m := New(db)

	granted, err := m.Reserve(context.Background(), "ws1", 1)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if !granted {
		t.Fatalf("expected reservation to be granted")
	}

	var used int
	if err := db.QueryRow("SELECT queries_this_period FROM subscriptions WHERE workspace_id = ?", "ws1").Scan(&used); err != nil {
		t.Fatalf("read used: %v", err)
	}
	if used != 4 {
		t.Errorf("expected used=4, got %d", used)
	}
}

func TestReserve_RefusesAtQuota(t *testing.T) {
	db := testDB(t)
	q := 5
	seedSubscription(t, db, "ws1", &q, 5, time.Now().Add(24*time.Hour))
	m := New(db)

	granted, err := m.Reserve(context.Background(), "ws1", 1)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if granted {
		t.Errorf("expected reservation to be refused at quota")
	}

	var used int
	if err := db.QueryRow("SELECT queries_this_period FROM subscriptions WHERE workspace_id = ?", "ws1").Scan(&used); err != nil {
		t.Fatalf("read used: %v", err)
	}
	if used != 5 {
		t.Errorf("expected used to remain 5, got %d", used)
	}
}

func TestReserve_RollsOverExpiredPeriod(t *testing.T) {
	db := testDB(t)
	q := 5
	seedSubscription(t, db, "ws1", &q, 5, time.Now().Add(-time.Hour))
	m := New(db)

	granted, err := m.Reserve(context.Background(), "ws1", 1)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if !granted {
		t.Errorf("expected reservation to succeed after rollover")
	}

	var used int
	if err := db.QueryRow("SELECT queries_this_period FROM subscriptions WHERE workspace_id = ?", "ws1").Scan(&used); err != nil {
		t.Fatalf("read used: %v", err)
	}
	if used != 1 {
		t.Errorf("expected used=1 after rollover and reserve, got %d", used)
	}
}

func TestReserve_ConcurrentGrantsExactlyOne(t *testing.T) {
	db := testDB(t)
	q := 1
	seedSubscription(t, db, "ws1", &q, 0, time.Now().Add(24*time.Hour))
	m := New(db)

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	grants := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			granted, err := m.Reserve(context.Background(), "ws1", 1)
			if err != nil {
				t.Errorf("Reserve failed: %v", err)
				return
			}
			if granted {
				mu.Lock()
				grants++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if grants != 1 {
		t.Errorf("expected exactly 1 grant out of %d concurrent attempts, got %d", attempts, grants)
	}
}

func TestRefund_FloorsAtZero(t *testing.T) {
	db := testDB(t)
	q := 5
	seedSubscription(t, db, "ws1", &q, 2, time.Now().Add(24*time.Hour))
	m := New(db)

	if err := m.Refund(context.Background(), "ws1", 5); err != nil {
		t.Fatalf("Refund failed: %v", err)
	}

	var used int
	if err := db.QueryRow("SELECT queries_this_period FROM subscriptions WHERE workspace_id = ?", "ws1").Scan(&used); err != nil {
		t.Fatalf("read used: %v", err)
	}
	if used != 0 {
		t.Errorf("expected used floored to 0, got %d", used)
	}
}
