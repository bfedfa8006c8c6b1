package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/store"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/testutil"
)

func TestCreatePendingIgnoresDuplicateURL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.New(testutil.OpenDB(t))

	first := &models.PendingOffer{ScrapedName: "Orko", URL: "https://a.example/orko", Status: models.StatusPending, FoundAt: time.Now()}
	created, err := st.CreatePending(ctx, first)
	if err != nil || !created {
		t.Fatalf("first insert: created=%v err=%v", created, err)
	}

	dup := &models.PendingOffer{ScrapedName: "Orko again", URL: "https://a.example/orko", Status: models.StatusPending, FoundAt: time.Now()}
	created, err = st.CreatePending(ctx, dup)
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if created {
		t.Fatal("duplicate URL created a second row")
	}
}

func TestTransitionPendingOnlyFromExpectedStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	conn := testutil.OpenDB(t)
	st := store.New(conn)
	p := testutil.SeedPending(t, conn, models.PendingOffer{ScrapedName: "Skeletor"})

	ok, err := st.TransitionPending(ctx, p.ID, models.StatusPending, models.StatusMatched)
	if err != nil || !ok {
		t.Fatalf("first transition ok=%v err=%v", ok, err)
	}
	ok, err = st.TransitionPending(ctx, p.ID, models.StatusPending, models.StatusDiscarded)
	if err != nil {
		t.Fatalf("second transition: %v", err)
	}
	if ok {
		t.Fatal("transition from stale status succeeded")
	}

	got, err := st.GetPending(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if got.Status != models.StatusMatched || got.ResolvedAt == nil {
		t.Fatalf("status=%s resolved_at=%v", got.Status, got.ResolvedAt)
	}
}

func TestGetMissingRowsReturnNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.New(testutil.OpenDB(t))

	if _, err := st.GetProduct(ctx, 404); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetProduct err = %v", err)
	}
	if _, err := st.GetPending(ctx, 404); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetPending err = %v", err)
	}
	if _, err := st.GetHistory(ctx, 404); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetHistory err = %v", err)
	}
}

func TestRefreshOfferPriceTracksHistoryAndBand(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	conn := testutil.OpenDB(t)
	st := store.New(conn)
	product := testutil.SeedProduct(t, conn, models.Product{Name: "Battle Cat"})

	offer := models.Offer{ProductID: product.ID, ShopName: "A", Price: 40, MinPrice: 40, MaxPrice: 40, URL: "https://a.example/bc", IsAvailable: true}
	if err := st.CreateOffer(ctx, &offer); err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}

	changed, err := st.RefreshOfferPrice(ctx, offer, 35, true, time.Now())
	if err != nil || !changed {
		t.Fatalf("refresh changed=%v err=%v", changed, err)
	}
	changed, err = st.RefreshOfferPrice(ctx, offer, 40.001, true, time.Now())
	if err != nil || changed {
		t.Fatalf("sub-cent refresh changed=%v err=%v", changed, err)
	}

	got, _ := st.GetOffer(ctx, offer.ID)
	if got.Price != 35 || got.MinPrice != 35 || got.MaxPrice != 40 {
		t.Fatalf("offer price=%v min=%v max=%v", got.Price, got.MinPrice, got.MaxPrice)
	}
	hist, _ := st.PriceHistory(ctx, offer.ID)
	if len(hist) != 1 || hist[0].Price != 35 {
		t.Fatalf("price history = %+v", hist)
	}
}

func TestRecomputeBestPicksCheapestAvailable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	conn := testutil.OpenDB(t)
	st := store.New(conn)
	product := testutil.SeedProduct(t, conn, models.Product{Name: "Teela"})

	cheapGone := models.Offer{ProductID: product.ID, Price: 10, URL: "u1", IsAvailable: false}
	mid := models.Offer{ProductID: product.ID, Price: 20, URL: "u2", IsAvailable: true}
	dear := models.Offer{ProductID: product.ID, Price: 30, URL: "u3", IsAvailable: true}
	for _, o := range []*models.Offer{&cheapGone, &mid, &dear} {
		if err := st.CreateOffer(ctx, o); err != nil {
			t.Fatalf("CreateOffer: %v", err)
		}
	}

	if err := st.RecomputeBest(ctx, product.ID); err != nil {
		t.Fatalf("RecomputeBest: %v", err)
	}
	offers, _ := st.OffersByProduct(ctx, product.ID)
	for _, o := range offers {
		if want := o.ID == mid.ID; o.IsBest != want {
			t.Fatalf("offer %d is_best=%v, want %v", o.ID, o.IsBest, want)
		}
	}
}

func TestTransactionRollsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.New(testutil.OpenDB(t))

	boom := errors.New("boom")
	err := st.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.CreateProduct(ctx, &models.Product{Name: "Ram Man"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transaction err = %v", err)
	}
	products, _ := st.ListProducts(ctx)
	if len(products) != 0 {
		t.Fatalf("rolled back insert persisted: %+v", products)
	}
}
