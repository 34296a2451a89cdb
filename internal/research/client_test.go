package research

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPClientQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "schema design" {
			t.Errorf("unexpected query topic: %q", got)
		}
		w.Write([]byte("lookup result"))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second)
	got, err := client.Query(context.Background(), "schema design")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "lookup result" {
		t.Errorf("unexpected response: %q", got)
	}
}

func TestHTTPClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, 20*time.Millisecond)
	start := time.Now()
	_, err := client.Query(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("timeout not enforced, query took %v", elapsed)
	}
}

func TestHTTPClientNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second)
	if _, err := client.Query(context.Background(), "anything"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}
