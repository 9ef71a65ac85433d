package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"

	"dealerwatch/internal/repository"
	"dealerwatch/internal/service"
)

// captureListingsRepo records the params the handler hands to the repository.
type captureListingsRepo struct {
	repository.Repository
	params repository.ListListingsParams
}

func (r *captureListingsRepo) ListListings(ctx context.Context, params repository.ListListingsParams) ([]repository.ListingRow, error) {
	r.params = params
	return nil, nil
}

func (r *captureListingsRepo) CountListings(ctx context.Context, params repository.ListListingsParams) (int64, error) {
	return 0, nil
}

func performListings(t *testing.T, rawQuery string) (repository.ListListingsParams, int) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := &captureListingsRepo{}
	h := &SearchHandler{Repo: repo, Query: &service.InventoryQueryService{Store: repo}}
	engine := gin.New()
	h.Register(engine)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/listings?"+rawQuery, nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return repo.params, rec.Code
}

func TestListingsOrderByNeverPassesRawInput(t *testing.T) {
	injected := url.QueryEscape("(CASE WHEN (SELECT 1)=1 THEN 1 END)")
	params, code := performListings(t, "order_by="+injected)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if params.OrderBy != "" {
		t.Fatalf("order by %q reached the repository", params.OrderBy)
	}

	params, _ = performListings(t, "order_by=last_seen_at;drop+table+listings")
	if params.OrderBy != "" {
		t.Fatalf("order by %q reached the repository", params.OrderBy)
	}
}

func TestListingsOrderByMapsKnownKeys(t *testing.T) {
	params, _ := performListings(t, "order_by=advertised_price&ascending=true")
	if params.OrderBy != "l.advertised_price" {
		t.Errorf("order by = %q, want l.advertised_price", params.OrderBy)
	}
	if params.Asc == nil || !*params.Asc {
		t.Errorf("asc = %v, want true", params.Asc)
	}
}

func TestParseOrderTable(t *testing.T) {
	allow := map[string]string{"last_seen_at": "l.last_seen_at"}
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"last_seen_at", "l.last_seen_at"},
		{" Last_Seen_At ", "l.last_seen_at"},
		{"l.last_seen_at", ""},
		{"last_seen_at desc", ""},
		{"1;--", ""},
	}
	for _, tc := range cases {
		if got := parseOrder(tc.in, allow); got != tc.want {
			t.Errorf("parseOrder(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
