package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/catalog"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/ingest"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/matcher"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/radar"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/store"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/testutil"
)

type testServer struct {
	e     *echo.Echo
	store *store.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	conn := testutil.OpenDB(t)
	st := store.New(conn)
	ix := catalog.New()
	engine := matcher.New(st, ix, matcher.Config{})
	e := NewServer(Deps{
		Engine:   engine,
		Radar:    radar.New(ix, 0),
		Ingestor: ingest.New(engine),
	})
	return &testServer{e: e, store: st}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	body := decode[errorBody](t, rec)
	if body.Code != code || body.Error == "" {
		t.Fatalf("error body = %+v, want code %q", body, code)
	}
}

func (s *testServer) createProduct(t *testing.T, body string) models.Product {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/products", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product: status %d body %s", rec.Code, rec.Body.String())
	}
	return decode[models.Product](t, rec)
}

func (s *testServer) importListing(t *testing.T, name, url string) uint {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/purgatory/import",
		fmt.Sprintf(`[{"product_name": %q, "price": "24,99 €", "url": %q, "shop_name": "Fantasia"}]`, name, url))
	if rec.Code != http.StatusOK {
		t.Fatalf("import: status %d body %s", rec.Code, rec.Body.String())
	}
	ids, err := s.store.PendingIDsByURL(context.Background(), []string{url})
	if err != nil || ids[url] == 0 {
		t.Fatalf("pending id for %s: %v", url, err)
	}
	return ids[url]
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProductRoutes(t *testing.T) {
	s := newTestServer(t)

	p := s.createProduct(t, `{"name": "He-Man", "sub_category": "Origins", "ean": "0887961938357"}`)
	if p.ID == 0 || p.EAN == nil || *p.EAN != "0887961938357" {
		t.Fatalf("product = %+v", p)
	}

	rec := s.do(t, http.MethodGet, fmt.Sprintf("/products/%d", p.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get product: status %d", rec.Code)
	}
	view := decode[matcher.ProductView](t, rec)
	if view.Name != "He-Man" || len(view.Offers) != 0 {
		t.Fatalf("view = %+v", view)
	}

	expectError(t, s.do(t, http.MethodGet, "/products/999", ""), http.StatusNotFound, "not_found")
	expectError(t, s.do(t, http.MethodGet, "/products/abc", ""), http.StatusBadRequest, "invalid_request")
	expectError(t, s.do(t, http.MethodPost, "/products", `{"ean": "123"}`), http.StatusBadRequest, "invalid_request")
}

func TestMatchFlow(t *testing.T) {
	s := newTestServer(t)
	p := s.createProduct(t, `{"name": "Skeletor", "sub_category": "Origins"}`)
	pendingID := s.importListing(t, "MOTU Origins Skeletor figure", "https://shop.example/skeletor")

	rec := s.do(t, http.MethodGet, fmt.Sprintf("/purgatory/%d/suggestions", pendingID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("suggestions: status %d", rec.Code)
	}
	suggestions := decode[[]matcher.Suggestion](t, rec)
	if len(suggestions) == 0 || suggestions[0].ProductID != p.ID || suggestions[0].Reason == "" {
		t.Fatalf("suggestions = %+v", suggestions)
	}

	views := decode[[]matcher.PendingView](t, s.do(t, http.MethodGet, "/purgatory", ""))
	if len(views) != 1 || views[0].ID != pendingID {
		t.Fatalf("queue = %+v", views)
	}

	body := fmt.Sprintf(`{"pending_id": %d, "product_id": %d}`, pendingID, p.ID)
	rec = s.do(t, http.MethodPost, "/purgatory/match", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("match: status %d body %s", rec.Code, rec.Body.String())
	}
	offer := decode[models.Offer](t, rec)
	if offer.ProductID != p.ID || offer.Price != 24.99 {
		t.Fatalf("offer = %+v", offer)
	}

	expectError(t, s.do(t, http.MethodPost, "/purgatory/match", body), http.StatusConflict, "already_resolved")
	expectError(t, s.do(t, http.MethodPost, "/purgatory/match", `{"pending_id": 1}`), http.StatusBadRequest, "invalid_request")
	expectError(t, s.do(t, http.MethodPost, "/purgatory/match", `{"pending_id": 999, "product_id": 1}`), http.StatusNotFound, "not_found")

	history := decode[[]models.MatchHistoryEntry](t, s.do(t, http.MethodGet, "/dashboard/history", ""))
	if len(history) != 1 || history[0].ActionType != models.ActionLinkedManual {
		t.Fatalf("history = %+v", history)
	}

	revert := fmt.Sprintf(`{"history_id": %d}`, history[0].ID)
	rec = s.do(t, http.MethodPost, "/dashboard/revert", revert)
	if rec.Code != http.StatusOK {
		t.Fatalf("revert: status %d body %s", rec.Code, rec.Body.String())
	}
	if got := decode[models.MatchHistoryEntry](t, rec); got.ActionType != models.ActionUnlinked {
		t.Fatalf("revert entry = %+v", got)
	}
	expectError(t, s.do(t, http.MethodPost, "/dashboard/revert", revert), http.StatusConflict, "already_reverted")
	expectError(t, s.do(t, http.MethodPost, "/dashboard/revert", `{"history_id": 999}`), http.StatusNotFound, "history_not_found")
}

func TestOfferRoutes(t *testing.T) {
	s := newTestServer(t)
	// Imported before the catalog exists so the listing stays queued.
	pendingID := s.importListing(t, "Battle Cat", "https://shop.example/battle-cat")
	first := s.createProduct(t, `{"name": "Battle Cat", "sub_category": "Origins"}`)
	second := s.createProduct(t, `{"name": "Battle Cat Deluxe", "sub_category": "Origins"}`)

	offer := decode[models.Offer](t, s.do(t, http.MethodPost, "/purgatory/match",
		fmt.Sprintf(`{"pending_id": %d, "product_id": %d}`, pendingID, first.ID)))

	rec := s.do(t, http.MethodPost, fmt.Sprintf("/products/offers/%d/relink", offer.ID), fmt.Sprintf(`{"product_id": %d}`, second.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("relink: status %d body %s", rec.Code, rec.Body.String())
	}
	if moved := decode[models.Offer](t, rec); moved.ProductID != second.ID {
		t.Fatalf("relinked offer = %+v", moved)
	}

	trail := decode[[]models.MatchHistoryEntry](t, s.do(t, http.MethodGet, fmt.Sprintf("/products/offers/%d/history", offer.ID), ""))
	if len(trail) != 3 || trail[0].ActionType != models.ActionLinkedManual || trail[1].ActionType != models.ActionUnlinked {
		t.Fatalf("offer history = %+v, want link, unlink, link", trail)
	}

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/products/offers/%d/unlink", offer.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unlink: status %d body %s", rec.Code, rec.Body.String())
	}
	expectError(t, s.do(t, http.MethodPost, fmt.Sprintf("/products/offers/%d/unlink", offer.ID), ""), http.StatusNotFound, "not_found")
}

func TestMergeRoute(t *testing.T) {
	s := newTestServer(t)
	source := s.createProduct(t, `{"name": "Orko", "sub_category": "Origins", "ean": "0887961938371"}`)
	target := s.createProduct(t, `{"name": "Orko", "sub_category": "Origins"}`)

	groups := decode[[]radar.Group](t, s.do(t, http.MethodGet, "/admin/duplicates", ""))
	if len(groups) != 1 {
		t.Fatalf("duplicate groups = %+v, want 1", groups)
	}

	expectError(t, s.do(t, http.MethodPost, "/products/merge",
		fmt.Sprintf(`{"source_id": %d, "target_id": %d}`, source.ID, source.ID)), http.StatusUnprocessableEntity, "self_merge_rejected")

	rec := s.do(t, http.MethodPost, "/products/merge", fmt.Sprintf(`{"source_id": %d, "target_id": %d}`, source.ID, target.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("merge: status %d body %s", rec.Code, rec.Body.String())
	}
	res := decode[matcher.MergeResult](t, rec)
	if res.Target.EAN == nil || *res.Target.EAN != "0887961938371" {
		t.Fatalf("merge result = %+v, want inherited ean", res)
	}
	expectError(t, s.do(t, http.MethodGet, fmt.Sprintf("/products/%d", source.ID), ""), http.StatusNotFound, "not_found")

	history := decode[[]models.MatchHistoryEntry](t, s.do(t, http.MethodGet, "/dashboard/history?limit=1", ""))
	expectError(t, s.do(t, http.MethodPost, "/dashboard/revert", fmt.Sprintf(`{"history_id": %d}`, history[0].ID)),
		http.StatusUnprocessableEntity, "not_revertible")
}

func TestDiscardRoutes(t *testing.T) {
	s := newTestServer(t)
	a := s.importListing(t, "Random Lot", "https://shop.example/lot-a")
	b := s.importListing(t, "Another Lot", "https://shop.example/lot-b")

	rec := s.do(t, http.MethodPost, "/purgatory/discard", fmt.Sprintf(`{"pending_id": %d, "reason": "not a figure"}`, a))
	if rec.Code != http.StatusOK {
		t.Fatalf("discard: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, "/purgatory/discard-bulk", fmt.Sprintf(`{"pending_ids": [%d, 0, 999]}`, b))
	if rec.Code != http.StatusOK {
		t.Fatalf("discard bulk: status %d body %s", rec.Code, rec.Body.String())
	}
	res := decode[matcher.BulkResult](t, rec)
	if len(res.Succeeded) != 1 || res.Succeeded[0] != b || res.Failed[0] == "" || res.Failed[999] == "" {
		t.Fatalf("bulk result = %+v, want id 0 and 999 reported as failed", res)
	}

	expectError(t, s.do(t, http.MethodPost, "/purgatory/discard-bulk", `{"pending_ids": []}`), http.StatusBadRequest, "invalid_request")

	stats := decode[matcher.Stats](t, s.do(t, http.MethodGet, "/dashboard/stats", ""))
	if stats.Queue[models.StatusDiscarded] != 2 || stats.Queue[models.StatusPending] != 0 {
		t.Fatalf("stats = %+v, want 2 discarded", stats)
	}

	rec = s.do(t, http.MethodPost, "/admin/blacklist/lift", `{"url": "https://shop.example/lot-a"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("lift blacklist: status %d body %s", rec.Code, rec.Body.String())
	}
	expectError(t, s.do(t, http.MethodPost, "/admin/blacklist/lift", `{"url": "not a url"}`), http.StatusBadRequest, "invalid_request")

	if again := s.importListing(t, "Random Lot", "https://shop.example/lot-a"); again != a {
		t.Fatalf("re-imported listing id = %d, want %d", again, a)
	}
	trail := decode[[]models.MatchHistoryEntry](t, s.do(t, http.MethodGet, "/dashboard/history", ""))
	if len(trail) == 0 || trail[0].ActionType != models.ActionRestored {
		t.Fatalf("history = %+v, want the re-import recorded as RESTORED", trail)
	}
}

func TestSmartMatchRoutes(t *testing.T) {
	s := newTestServer(t)
	s.createProduct(t, `{"name": "Man-At-Arms", "sub_category": "Origins", "ean": "0887961938388"}`)

	rec := s.do(t, http.MethodPost, "/purgatory/import",
		`{"product_name": "Man-At-Arms", "price": 21.5, "url": "https://shop.example/maa", "shop_name": "Fantasia", "ean": "0887961938388"}`)
	if got := decode[ingest.Result](t, rec); got.AutoLinked != 1 {
		t.Fatalf("import result = %+v, want auto link", got)
	}

	rec = s.do(t, http.MethodPost, "/admin/smart-match/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: status %d", rec.Code)
	}
	if got := decode[map[string]int](t, rec); got["reverted"] != 1 {
		t.Fatalf("reset = %v, want 1 reverted", got)
	}

	rec = s.do(t, http.MethodPost, "/admin/smart-match/run", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("run: status %d", rec.Code)
	}
	if got := decode[matcher.SweepResult](t, rec); got.Linked != 1 {
		t.Fatalf("sweep = %+v, want 1 linked", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/health", "")

	rec := s.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "reconciler_http_requests_total") {
		t.Fatal("request counter missing from /metrics")
	}
}
