package testhelper

import (
	"context"
	"testing"
)

func TestSetupTestDB_Smoke(t *testing.T) {
	pool := SetupTestDB(t)

	s := SeedStream(t, pool)

	var sender string
	err := pool.QueryRow(context.Background(),
		`SELECT sender FROM streams WHERE id = $1`, s.ID,
	).Scan(&sender)
	if err != nil {
		t.Fatalf("expected stream in DB, got error: %v", err)
	}

	if sender != string(s.Sender) {
		t.Fatalf("expected sender %q, got %q", s.Sender, sender)
	}
}
