package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// Principal returns a principal unique to this test run.
func Principal(prefix string) domain.Principal {
	return domain.Principal(prefix + "-" + uniqueSuffix())
}

// SeedStream inserts an Active stream between two fresh principals
// (rate 10, lock 1000) and returns it.
func SeedStream(t *testing.T, pool *pgxpool.Pool) domain.Stream {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	s := domain.Stream{
		Sender:        Principal("sender"),
		Recipient:     Principal("recipient"),
		Rate:          10,
		TotalLocked:   1000,
		AccrualAnchor: now,
		Status:        domain.StreamStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := pool.QueryRow(ctx,
		`INSERT INTO streams (sender, recipient, rate, total_locked, accrual_anchor, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		string(s.Sender), string(s.Recipient), s.Rate, s.TotalLocked, s.AccrualAnchor, string(s.Status), s.CreatedAt, s.UpdatedAt,
	).Scan(&s.ID)
	if err != nil {
		t.Fatalf("testhelper: SeedStream insert: %v", err)
	}

	return s
}
