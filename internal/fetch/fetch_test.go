package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestConcurrencyGateCapacity(t *testing.T) {
	g := NewConcurrencyGate(2)
	if !g.TryAcquire() {
		t.Fatal("first acquire should succeed")
	}
	if !g.TryAcquire() {
		t.Fatal("second acquire should succeed")
	}
	if g.TryAcquire() {
		t.Fatal("third acquire should fail at capacity 2")
	}
	g.Release()
	if !g.TryAcquire() {
		t.Fatal("acquire after release should succeed")
	}
}

func TestRateGateBurstThenDeny(t *testing.T) {
	g := NewRateGate(3)
	for i := 0; i < 3; i++ {
		if !g.Allow() {
			t.Fatalf("token %d should be available from the initial burst", i)
		}
	}
	if g.Allow() {
		t.Fatal("bucket should be empty after burst")
	}
}

func TestGatesEnterRelease(t *testing.T) {
	g := NewGates(1, 10)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	release, err := g.Enter(ctx)
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if g.Concurrency.TryAcquire() {
		t.Fatal("slot should be held")
	}
	release()
	if !g.Concurrency.TryAcquire() {
		t.Fatal("slot should be free after release")
	}
}

func TestGatesEnterCancelled(t *testing.T) {
	g := NewGates(1, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Enter(ctx); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}

func TestScrapeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/scrape" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Write([]byte(`{"success":true,"data":{"markdown":"# Inventory","html":"<p>x</p>","metadata":{"statusCode":200}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "test-key")
	res, err := c.Scrape(context.Background(), "https://dealer.example.com/inventory")
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if res.Markdown != "# Inventory" {
		t.Errorf("markdown = %q", res.Markdown)
	}
	if res.BestContent() != "# Inventory" {
		t.Errorf("BestContent should prefer markdown, got %q", res.BestContent())
	}
	if res.Empty() {
		t.Error("result should not be empty")
	}
}

func TestScrapeAPIErrorRetryable(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusInternalServerError, true},
		{http.StatusForbidden, false},
		{http.StatusNotFound, false},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		c := NewClient(srv.Client(), srv.URL, "")
		_, err := c.Scrape(context.Background(), "https://dealer.example.com")
		srv.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		apiErr, ok := err.(*APIError)
		if !ok {
			t.Fatalf("status %d: expected *APIError, got %T", tc.status, err)
		}
		if apiErr.Status != tc.status {
			t.Errorf("status = %d, want %d", apiErr.Status, tc.status)
		}
		if IsRetryable(err) != tc.retryable {
			t.Errorf("status %d: IsRetryable = %v, want %v", tc.status, IsRetryable(err), tc.retryable)
		}
	}
}

func TestBestContentFallback(t *testing.T) {
	r := &Result{HTML: "<p>html</p>", RawHTML: "<html>raw</html>"}
	if got := r.BestContent(); got != "<p>html</p>" {
		t.Errorf("BestContent = %q, want html", got)
	}
	r = &Result{RawHTML: "<html>raw</html>"}
	if got := r.BestContent(); got != "<html>raw</html>" {
		t.Errorf("BestContent = %q, want raw html", got)
	}
	r = &Result{}
	if !r.Empty() {
		t.Error("result with no content should be empty")
	}
}
