package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSerperClient_Search(t *testing.T) {
	var got WebRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-API-KEY") != "secret" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.Write([]byte(`{"organic":[{"title":"A","link":"https://a.com","position":1}],"relatedSearches":[{"query":"b"}]}`))
	}))
	defer server.Close()

	client := NewSerperClient(server.Client(), "secret", server.URL)
	resp, err := client.Search(context.Background(), &WebRequest{Query: "plumbers", Country: "us", Num: 10, Page: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Query != "plumbers" || got.Page != 2 || got.Num != 10 {
		t.Errorf("unexpected request body: %+v", got)
	}
	if len(resp.Organic) != 1 || resp.Organic[0].Link != "https://a.com" {
		t.Errorf("unexpected organic results: %+v", resp.Organic)
	}
	if len(resp.RelatedSearches) != 1 {
		t.Errorf("expected related searches, got %+v", resp.RelatedSearches)
	}
}

func TestSerperClient_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("quota exceeded"))
		default:
			w.Write([]byte("not json"))
		}
	}))
	defer server.Close()

	client := NewSerperClient(server.Client(), "k", server.URL)

	_, err := client.Search(context.Background(), &WebRequest{Query: "x"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected status error, got %v", err)
	}
	if !CountsAsCall(err) {
		t.Errorf("expected a status error to count as a call")
	}

	_, err = client.Maps(context.Background(), &MapsRequest{Query: "x"})
	if !errors.Is(err, ErrDecodeResponse) {
		t.Errorf("expected decode error, got %v", err)
	}

	_, err = client.Search(context.Background(), &WebRequest{Query: "  "})
	if !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("expected empty query error, got %v", err)
	}
	if CountsAsCall(err) {
		t.Errorf("expected an empty query not to count as a call")
	}
}

func TestSerperClient_Autocomplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"suggestions":[{"value":"plumber berlin"},"plumber bonn",{"value":""}]}`))
	}))
	defer server.Close()

	client := NewSerperClient(server.Client(), "k", server.URL)
	got, err := client.Autocomplete(context.Background(), &AutocompleteRequest{Query: "plumber b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "plumber berlin" || got[1] != "plumber bonn" {
		t.Errorf("unexpected suggestions: %v", got)
	}
}
