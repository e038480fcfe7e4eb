package memory

import (
	"context"
	"testing"

	"github.com/JakeFAU/media-inliner/internal/cms"
)

func TestFindAllReturnsSeededRows(t *testing.T) {
	t.Parallel()

	tbl := NewTable(
		Row{ID: "1", Fields: map[string]string{"feature_image": "https://cdn.example/a.png"}},
		Row{ID: "2", Fields: map[string]string{"feature_image": "https://cdn.example/b.png"}},
	)

	resources, err := tbl.FindAll(context.Background(), cms.ResourceFilter{Internal: true})
	if err != nil {
		t.Fatalf("FindAll() error = %v", err)
	}
	if len(resources) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(resources))
	}
	if resources[0].ID() != "1" {
		t.Fatalf("expected deterministic ordering starting at id 1, got %s", resources[0].ID())
	}
}

func TestEditUpdatesFieldsAndIsVisibleToGet(t *testing.T) {
	t.Parallel()

	tbl := NewTable(Row{ID: "1", Fields: map[string]string{"feature_image": "old"}})

	err := tbl.Edit(context.Background(), map[string]string{"feature_image": "new"}, cms.EditOptions{ID: "1", Internal: true})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}

	v, ok := tbl.Get("1", "feature_image")
	if !ok || v != "new" {
		t.Fatalf("expected updated field value new, got %q ok=%v", v, ok)
	}
}

func TestEditUnknownIDErrors(t *testing.T) {
	t.Parallel()

	tbl := NewTable()
	if err := tbl.Edit(context.Background(), map[string]string{}, cms.EditOptions{ID: "missing"}); err == nil {
		t.Fatal("expected error editing an unknown resource id")
	}
}

func TestSnapshotIsolatesFutureMutation(t *testing.T) {
	t.Parallel()

	tbl := NewTable(Row{ID: "1", Fields: map[string]string{"feature_image": "old"}})
	resources, _ := tbl.FindAll(context.Background(), cms.ResourceFilter{})

	_ = tbl.Edit(context.Background(), map[string]string{"feature_image": "new"}, cms.EditOptions{ID: "1"})

	v, _ := resources[0].Get("feature_image")
	if v != "old" {
		t.Fatalf("expected snapshot to be unaffected by later edits, got %q", v)
	}
}
