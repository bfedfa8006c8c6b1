package radar

import (
	"context"
	"testing"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/catalog"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
)

func strPtr(s string) *string { return &s }

func TestFindDuplicateGroups(t *testing.T) {
	t.Parallel()

	ix := catalog.New()
	ix.Rebuild([]models.Product{
		{ID: 1, Name: "He-Man", SubCategory: "Origins", EAN: strPtr("0887961938357")},
		{ID: 2, Name: "Beast Man Savage Eternia", SubCategory: "Masterverse"},
		{ID: 3, Name: "He-Man (reissue)", SubCategory: "Origins", EAN: strPtr("0887961938357")},
		{ID: 4, Name: "Beast-Man - Savage Eternia", SubCategory: "Masterverse"},
		{ID: 5, Name: "Beast Man Savage Eternia", SubCategory: "Origins"},
		{ID: 6, Name: "Trap Jaw", SubCategory: "Masterverse"},
	})

	groups, err := New(ix, 0).FindDuplicateGroups(context.Background())
	if err != nil {
		t.Fatalf("FindDuplicateGroups: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups = %+v, want 2", groups)
	}

	assertGroup(t, groups[0], ReasonSharedIdentifier, 1, 3)
	assertGroup(t, groups[1], ReasonFuzzyNameCollision, 2, 4)
}

func TestFindDuplicateGroupsRespectsThreshold(t *testing.T) {
	t.Parallel()

	ix := catalog.New()
	ix.Rebuild([]models.Product{
		{ID: 1, Name: "Skeletor Battle Armor", SubCategory: "Origins"},
		{ID: 2, Name: "Skeletor Battle Armour", SubCategory: "Origins"},
	})

	strict, _ := New(ix, 95).FindDuplicateGroups(context.Background())
	if len(strict) != 0 {
		t.Fatalf("strict scan grouped near-misses: %+v", strict)
	}
	loose, _ := New(ix, 60).FindDuplicateGroups(context.Background())
	if len(loose) != 1 {
		t.Fatalf("loose scan groups = %+v, want 1", loose)
	}
}

func TestFindDuplicateGroupsEmptyCatalog(t *testing.T) {
	t.Parallel()

	groups, err := New(catalog.New(), 0).FindDuplicateGroups(context.Background())
	if err != nil || len(groups) != 0 {
		t.Fatalf("groups = %+v, err = %v", groups, err)
	}
}

func TestFindDuplicateGroupsHonoursCancellation(t *testing.T) {
	t.Parallel()

	ix := catalog.New()
	ix.Rebuild([]models.Product{{ID: 1, Name: "Orko", SubCategory: "Origins"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(ix, 0).FindDuplicateGroups(ctx); err == nil {
		t.Fatal("expected context error")
	}
}

func assertGroup(t *testing.T, g Group, reason GroupReason, ids ...uint) {
	t.Helper()
	if g.Reason != reason {
		t.Fatalf("reason = %s, want %s", g.Reason, reason)
	}
	if len(g.Products) != len(ids) {
		t.Fatalf("group %s has %d products, want %d", reason, len(g.Products), len(ids))
	}
	for i, id := range ids {
		if g.Products[i].ID != id {
			t.Fatalf("group %s product %d = %d, want %d", reason, i, g.Products[i].ID, id)
		}
	}
}
