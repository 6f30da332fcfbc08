package template_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/heartmarshall/satstream-ledger/internal/adapter/postgres/template"
	"github.com/heartmarshall/satstream-ledger/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

func TestRepo_Lifecycle(t *testing.T) {
	t.Parallel()
	repo := template.New(testhelper.SetupTestDB(t))
	ctx := context.Background()

	name := "hourly-" + string(testhelper.Principal("tpl"))
	created, err := repo.Create(ctx, &domain.StreamTemplate{
		Name:      name,
		Duration:  time.Hour,
		Rate:      5,
		Creator:   "system",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	})
	if err != nil {
		t.Fatalf("Create: unexpected error: %v", err)
	}
	if created.ID == 0 || created.Duration != time.Hour {
		t.Errorf("Create: got %+v", created)
	}

	if _, err := repo.Create(ctx, &domain.StreamTemplate{Name: name, Rate: 1, Creator: "system"}); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("Create duplicate: got %v, want ErrAlreadyExists", err)
	}

	bumped, err := repo.IncrementUsage(ctx, created.ID)
	if err != nil {
		t.Fatalf("IncrementUsage: unexpected error: %v", err)
	}
	if bumped.UsageCount != 1 {
		t.Errorf("IncrementUsage: got %d, want 1", bumped.UsageCount)
	}

	if _, err := repo.IncrementUsage(ctx, -1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("IncrementUsage missing: got %v, want ErrNotFound", err)
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: unexpected error: %v", err)
	}
	found := false
	for _, tpl := range all {
		if tpl.ID == created.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("List: template %d missing", created.ID)
	}
}
