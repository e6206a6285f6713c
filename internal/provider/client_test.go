package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBalance_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.Form.Get("action") != "balance" {
			t.Fatalf("action = %q, want balance", r.Form.Get("action"))
		}
		if r.Form.Get("key") != "api-key" {
			t.Fatalf("key = %q, want api-key", r.Form.Get("key"))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"balance":"125.40","currency":"USD"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "api-key", time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	info, err := client.Balance(ctx)
	if err != nil {
		t.Fatalf("Balance error: %v", err)
	}
	if info.Balance != "125.40" || info.Currency != "USD" {
		t.Fatalf("unexpected balance info: %+v", info)
	}
}

func TestBalance_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "api-key", time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := client.Balance(ctx)
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestServices_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"service":"101","name":"Instagram Followers","category":"Instagram","rate":"0.90","min":100,"max":10000},
			{"service":102,"name":"YouTube Views","category":"YouTube","rate":1.20,"min":500,"max":100000}
		]`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "api-key", time.Second)

	services, err := client.Services(context.Background())
	if err != nil {
		t.Fatalf("Services error: %v", err)
	}
	if len(services) != 2 {
		t.Fatalf("len(services) = %d, want 2", len(services))
	}
	if services[0].Service.String() != "101" {
		t.Fatalf("service id = %q, want 101", services[0].Service.String())
	}
	if services[1].Service.String() != "102" {
		t.Fatalf("numeric service id = %q, want 102", services[1].Service.String())
	}
	if services[1].Rate.String() != "1.20" {
		t.Fatalf("numeric rate = %q, want 1.20", services[1].Rate.String())
	}
}

func TestServices_NonArray(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "api-key", time.Second)

	_, err := client.Services(context.Background())
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestAddOrder_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.Form.Get("action") != "add" {
			t.Fatalf("action = %q, want add", r.Form.Get("action"))
		}
		if r.Form.Get("service") != "101" {
			t.Fatalf("service = %q, want 101", r.Form.Get("service"))
		}
		if r.Form.Get("quantity") != "5000" {
			t.Fatalf("quantity = %q, want 5000", r.Form.Get("quantity"))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"order":987654}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "api-key", time.Second)

	id, err := client.AddOrder(context.Background(), "101", "https://instagram.com/someuser", 5000)
	if err != nil {
		t.Fatalf("AddOrder error: %v", err)
	}
	if id != "987654" {
		t.Fatalf("remote order id = %q, want 987654", id)
	}
}

func TestAddOrder_ProviderError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":"not enough funds"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "api-key", time.Second)

	_, err := client.AddOrder(context.Background(), "101", "https://instagram.com/someuser", 5000)
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestAddOrder_NotRetried(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "api-key", time.Second)

	_, err := client.AddOrder(context.Background(), "101", "https://instagram.com/someuser", 100)
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("add order called %d times, must never be retried", calls)
	}
}

func TestOrderStatus_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.Form.Get("order") != "987654" {
			t.Fatalf("order = %q, want 987654", r.Form.Get("order"))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"In progress","start_count":"150","remains":"2350","charge":"4.50"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "api-key", time.Second)

	state, err := client.OrderStatus(context.Background(), "987654")
	if err != nil {
		t.Fatalf("OrderStatus error: %v", err)
	}
	if state.Status != "In progress" {
		t.Fatalf("status = %q, want In progress", state.Status)
	}
	if state.Remains.String() != "2350" {
		t.Fatalf("remains = %q, want 2350", state.Remains.String())
	}
}
