package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collector/price/BTCUSDT" {
			t.Errorf("path = %q, want /collector/price/BTCUSDT", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("timestamp") != "1700000000" {
			t.Errorf("timestamp = %q, want 1700000000", q.Get("timestamp"))
		}
		if q.Get("tolerance") != "300" {
			t.Errorf("tolerance = %q, want 300", q.Get("tolerance"))
		}
		fmt.Fprint(w, `{"symbol":"BTCUSDT","price":"50000.12","timestamp":1699999990,
			"requested_timestamp":1700000000,"seq":777,"source":"memory",
			"time_info":{"utc":"2023-11-14 22:13:10 UTC","et":"2023-11-14 17:13:10 EST"}}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	point, err := client.GetPrice(context.Background(), "BTCUSDT", 1700000000, 300)
	if err != nil {
		t.Fatalf("GetPrice() error = %v", err)
	}
	if got := point.Price.String(); got != "50000.12" {
		t.Errorf("Price = %s, want 50000.12", got)
	}
	if point.Source != "memory" {
		t.Errorf("Source = %q, want memory", point.Source)
	}
	if point.Timestamp != 1699999990 {
		t.Errorf("Timestamp = %d, want 1699999990", point.Timestamp)
	}
}

func TestGetPrice_ZeroToleranceOmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("tolerance") {
			t.Error("tolerance sent for zero value, want server default")
		}
		fmt.Fprint(w, `{"symbol":"BTCUSDT","price":"1","timestamp":1,"seq":0,"source":"durable"}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	if _, err := client.GetPrice(context.Background(), "BTCUSDT", 1, 0); err != nil {
		t.Fatalf("GetPrice() error = %v", err)
	}
}

func TestGetPrice_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"no price found for BTCUSDT at timestamp 5 (±60s)"}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	_, err := client.GetPrice(context.Background(), "BTCUSDT", 5, 0)
	if err == nil {
		t.Fatal("GetPrice() error = nil, want not-found")
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false, want true", err)
	}
}

func TestGetLatest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collector/latest" {
			t.Errorf("path = %q, want /collector/latest", r.URL.Path)
		}
		fmt.Fprint(w, `{"prices":[
			{"symbol":"BTCUSDT","price":"50000","timestamp":100,"seq":1},
			{"symbol":"ETHUSDT","price":"3000","timestamp":101,"seq":2}]}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	prices, err := client.GetLatest(context.Background())
	if err != nil {
		t.Fatalf("GetLatest() error = %v", err)
	}
	if len(prices) != 2 {
		t.Fatalf("len(prices) = %d, want 2", len(prices))
	}
	if prices[1].Symbol != "ETHUSDT" {
		t.Errorf("prices[1].Symbol = %q, want ETHUSDT", prices[1].Symbol)
	}
}

func TestGetHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ok","timestamp":1700000000,"instance":"c1",
			"source_mode":"rtds","symbols":["BTCUSDT"],
			"last_seen":{"BTCUSDT":1699999999},"stream_connected":true}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	health, err := client.GetHealth(context.Background())
	if err != nil {
		t.Fatalf("GetHealth() error = %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("Status = %q, want ok", health.Status)
	}
	if health.StreamConnected == nil || !*health.StreamConnected {
		t.Error("StreamConnected should be true")
	}
	if health.LastSeen["BTCUSDT"] != 1699999999 {
		t.Errorf("LastSeen[BTCUSDT] = %d, want 1699999999", health.LastSeen["BTCUSDT"])
	}
}

func TestRetry_ServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"prices":[]}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithRetries(2, time.Millisecond))

	if _, err := client.GetLatest(context.Background()); err != nil {
		t.Fatalf("GetLatest() error = %v, want success after retry", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestRetry_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"timestamp parameter required"}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithRetries(3, time.Millisecond))

	_, err := client.GetPrice(context.Background(), "BTCUSDT", 1, 0)
	if err == nil {
		t.Fatal("GetPrice() error = nil, want bad request")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (4xx is not retryable)", calls.Load())
	}
}
