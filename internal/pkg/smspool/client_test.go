package smspool

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"})
	return client, server
}

func TestQuoteParsesDollarPrice(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("key") != "test-key" {
			t.Errorf("missing api key, got %q", r.Form.Get("key"))
		}
		w.Write([]byte(`{"price":"0.17"}`))
	})
	defer server.Close()

	cents, err := client.Quote(context.Background(), "ring4", "US")
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if cents != 17 {
		t.Fatalf("expected 17 cents, got %d", cents)
	}
}

func TestQuoteUnavailableOnZeroPrice(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price":"0"}`))
	})
	defer server.Close()

	_, err := client.Quote(context.Background(), "ring4", "US")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestPurchaseDeclined(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":0,"message":"Out of stock"}`))
	})
	defer server.Close()

	_, err := client.Purchase(context.Background(), "ring4", "US")
	if !errors.Is(err, ErrDeclined) {
		t.Fatalf("expected ErrDeclined, got %v", err)
	}
}

func TestPurchaseSuccess(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":1,"order_id":"ABC123","number":"14155550100","price":"0.15"}`))
	})
	defer server.Close()

	result, err := client.Purchase(context.Background(), "ring4", "US")
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	if result.OrderRef != "ABC123" || result.Number != "14155550100" || result.CostCents != 15 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestPollKeepsRawStatusCode(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":3,"sms":""}`))
	})
	defer server.Close()

	result, err := client.Poll(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if result.StatusCode != "3" {
		t.Fatalf("expected raw code \"3\", got %q", result.StatusCode)
	}
}

func TestTransportErrorOnBadJSON(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway error</html>`))
	})
	defer server.Close()

	_, err := client.Poll(context.Background(), "ABC123")
	if !IsTransport(err) {
		t.Fatalf("expected transport error for malformed body, got %v", err)
	}
}

func TestTransportErrorOnHTTPFailure(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})
	defer server.Close()

	_, err := client.Poll(context.Background(), "ABC123")
	if !IsTransport(err) {
		t.Fatalf("expected transport error for 502, got %v", err)
	}
}
