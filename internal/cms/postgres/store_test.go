package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v3"

	"github.com/JakeFAU/media-inliner/internal/cms"
)

func newMockTable(t *testing.T, tableName string, columns []string) (*Table, pgxmock.PgxPoolIface) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool() error = %v", err)
	}
	t.Cleanup(pool.Close)
	return NewTable(pool, tableName, columns), pool
}

func TestFindAllScansRows(t *testing.T) {
	t.Parallel()

	tbl, pool := newMockTable(t, "posts", []string{"feature_image"})

	rows := pgxmock.NewRows([]string{"id", "feature_image"}).
		AddRow("1", "https://cdn.example/a.png").
		AddRow("2", "https://cdn.example/b.png")
	pool.ExpectQuery("SELECT id, feature_image FROM posts ORDER BY id").WillReturnRows(rows)

	resources, err := tbl.FindAll(context.Background(), cms.ResourceFilter{Internal: true})
	if err != nil {
		t.Fatalf("FindAll() error = %v", err)
	}
	if len(resources) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(resources))
	}
	v, ok := resources[0].Get("feature_image")
	if !ok || v != "https://cdn.example/a.png" {
		t.Fatalf("expected scanned feature_image, got %q ok=%v", v, ok)
	}

	if err := pool.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEditIssuesUpdateReturningID(t *testing.T) {
	t.Parallel()

	tbl, pool := newMockTable(t, "posts", []string{"feature_image"})

	pool.ExpectQuery("UPDATE posts SET feature_image = \\$1 WHERE id = \\$2 RETURNING id").
		WithArgs("https://stored/a.png", "1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("1"))

	err := tbl.Edit(context.Background(), map[string]string{"feature_image": "https://stored/a.png"}, cms.EditOptions{ID: "1", Internal: true})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}

	if err := pool.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEditNoFieldsIsNoop(t *testing.T) {
	t.Parallel()

	tbl, _ := newMockTable(t, "posts", []string{"feature_image"})
	if err := tbl.Edit(context.Background(), map[string]string{}, cms.EditOptions{ID: "1"}); err != nil {
		t.Fatalf("Edit() with no fields should be a no-op, got error: %v", err)
	}
}
