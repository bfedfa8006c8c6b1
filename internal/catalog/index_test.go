package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/normalize"
)

func strPtr(s string) *string { return &s }

func sampleCatalog() []models.Product {
	return []models.Product{
		{ID: 1, Name: "He-Man", SubCategory: "Origins", EAN: strPtr("0887961938357"), FigureID: strPtr("ORG-001")},
		{ID: 2, Name: "He-Man Flocked Variant", SubCategory: "Origins", FigureID: strPtr("ORG-017")},
		{ID: 3, Name: "Skeletor", SubCategory: "Origins", FigureID: strPtr("ORG-002")},
		{ID: 4, Name: "Battle Cat", SubCategory: "Masterverse"},
		{ID: 5, Name: "He-Man Battle Armor", SubCategory: "Origins", FigureID: strPtr("ORG-020")},
	}
}

func TestFindCandidatesExactCodeShortCircuits(t *testing.T) {
	t.Parallel()

	ix := New()
	ix.Rebuild(sampleCatalog())

	o := normalize.Normalize("Skeletor 0887961938357", "", "")
	got := ix.FindCandidates(o, 10)
	if len(got) != 1 || got[0].Product.ID != 1 || !got[0].ExactCode {
		t.Fatalf("candidates = %+v, want only product 1 by code", got)
	}
}

func TestFindCandidatesRanksByOverlap(t *testing.T) {
	t.Parallel()

	ix := New()
	ix.Rebuild(sampleCatalog())

	o := normalize.Normalize("He-Man Origins Flocked", "", "")
	got := ix.FindCandidates(o, 3)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Product.ID != 2 {
		t.Fatalf("first = %d, want 2 (shares he, man, origins, flocked)", got[0].Product.ID)
	}
}

func TestFindCandidatesTieBreaksOnFigureNumber(t *testing.T) {
	t.Parallel()

	ix := New()
	ix.Rebuild(sampleCatalog())

	// products 1 and 5 share "he", "man", "origins"; #20 is closest to ORG-020
	o := normalize.Normalize("He-Man Origins #20", "", "")
	got := ix.FindCandidates(o, 5)
	var order []uint
	for _, c := range got {
		if c.Shared == 3 {
			order = append(order, c.Product.ID)
		}
	}
	if len(order) < 2 || order[0] != 5 {
		t.Fatalf("tied order = %v, want product 5 first", order)
	}
}

func TestFindCandidatesNoOverlapIsEmpty(t *testing.T) {
	t.Parallel()

	ix := New()
	ix.Rebuild(sampleCatalog())

	got := ix.FindCandidates(normalize.Normalize("Optimus Prime", "", ""), 5)
	if got == nil || len(got) != 0 {
		t.Fatalf("candidates = %#v, want empty slice", got)
	}
}

func TestUpsertAndRemove(t *testing.T) {
	t.Parallel()

	ix := New()
	ix.Rebuild(sampleCatalog())

	ix.Upsert(models.Product{ID: 4, Name: "Panthor", SubCategory: "Masterverse"})
	for _, c := range ix.FindCandidates(normalize.Normalize("Battle Cat", "", ""), 5) {
		if c.Product.ID == 4 {
			t.Fatalf("stale tokens still point at product 4")
		}
	}

	ix.Remove(1)
	if _, ok := ix.Get(1); ok {
		t.Fatal("product 1 still indexed")
	}
	o := normalize.Normalize("Skeletor 0887961938357", "", "")
	for _, c := range ix.FindCandidates(o, 5) {
		if c.ExactCode {
			t.Fatalf("removed product code still resolves: %+v", c)
		}
	}
	if ix.Len() != 4 {
		t.Fatalf("Len = %d, want 4", ix.Len())
	}
}

type listerFunc func(ctx context.Context) ([]models.Product, error)

func (f listerFunc) ListProducts(ctx context.Context) ([]models.Product, error) { return f(ctx) }

func TestRefresh(t *testing.T) {
	t.Parallel()

	ix := New()
	err := ix.Refresh(context.Background(), listerFunc(func(context.Context) ([]models.Product, error) {
		return sampleCatalog(), nil
	}))
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if ix.Len() != 5 {
		t.Fatalf("Len = %d, want 5", ix.Len())
	}

	boom := errors.New("db down")
	err = ix.Refresh(context.Background(), listerFunc(func(context.Context) ([]models.Product, error) {
		return nil, boom
	}))
	if !errors.Is(err, boom) {
		t.Fatalf("Refresh error = %v, want wrapped %v", err, boom)
	}
	if ix.Len() != 5 {
		t.Fatal("failed refresh must keep the previous catalog")
	}
}

func TestRefreshKeepsWritesMadeWhileLoading(t *testing.T) {
	t.Parallel()

	ix := New()
	ix.Rebuild(sampleCatalog())

	// The snapshot is read before a merge removes product 2 and a new
	// product 6 is created, and is swapped in after both.
	err := ix.Refresh(context.Background(), listerFunc(func(context.Context) ([]models.Product, error) {
		snapshot := sampleCatalog()
		ix.Remove(2)
		ix.Upsert(models.Product{ID: 6, Name: "Teela", SubCategory: "Origins"})
		return snapshot, nil
	}))
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if _, ok := ix.Get(2); ok {
		t.Fatal("merged-away product 2 came back after refresh")
	}
	if _, ok := ix.Get(6); !ok {
		t.Fatal("product 6 created during refresh is missing")
	}
	for _, c := range ix.FindCandidates(normalize.Normalize("He-Man Flocked", "", ""), 10) {
		if c.Product.ID == 2 {
			t.Fatalf("stale postings still point at product 2")
		}
	}

	// Later rebuilds start clean.
	ix.Rebuild(sampleCatalog())
	if _, ok := ix.Get(2); !ok {
		t.Fatal("tracked writes leaked past the refresh")
	}
}
