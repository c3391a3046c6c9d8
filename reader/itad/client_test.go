package itad

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"dealflow/config"
	"dealflow/reader"
)

func testConfig(baseURL string) config.ITADConfig {
	return config.ITADConfig{
		BaseURL:           baseURL,
		APIKey:            "test-key",
		TimeoutSeconds:    2,
		RequestsPerSecond: 100,
		BurstSize:         5,
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	cfg := testConfig("https://example.com")
	cfg.APIKey = ""
	if _, err := NewClient(cfg); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestGameHistory(t *testing.T) {
	payload := `[{"timestamp":"2023-06-29T13:05:09Z","shop":{"id":61,"name":"Steam"},"deal":{"cut":80}}]`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/games/history/v2" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("key") != "test-key" {
			t.Errorf("unexpected key: %s", q.Get("key"))
		}
		if q.Get("id") != "game-1" {
			t.Errorf("unexpected id: %s", q.Get("id"))
		}
		if q.Get("since") != "2005-01-01T00:00:00Z" {
			t.Errorf("unexpected since: %s", q.Get("since"))
		}
		if q.Get("shops") != "61,35" {
			t.Errorf("unexpected shops: %s", q.Get("shops"))
		}
		if q.Get("country") != "US" {
			t.Errorf("unexpected country: %s", q.Get("country"))
		}
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	body, err := client.GameHistory(context.Background(), HistoryRequest{
		GameID:  "game-1",
		Country: "US",
		Since:   "2005-01-01T00:00:00Z",
		ShopIDs: []int{61, 35},
	})
	if err != nil {
		t.Fatalf("GameHistory: %v", err)
	}
	if string(body) != payload {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestGameHistoryUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.GameHistory(context.Background(), HistoryRequest{GameID: "game-1"})
	var upstream *reader.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.StatusCode != http.StatusInternalServerError {
		t.Errorf("unexpected status: %d", upstream.StatusCode)
	}
	if upstream.Source != "itad" {
		t.Errorf("unexpected source: %s", upstream.Source)
	}
}

func TestSearchGames(t *testing.T) {
	payload := `[{"id":"game-1","slug":"half-life","title":"Half-Life","type":"game","mature":false}]`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/games/search/v1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("title") != "Half-Life" {
			t.Errorf("unexpected title: %s", q.Get("title"))
		}
		if q.Get("results") != "5" {
			t.Errorf("unexpected results: %s", q.Get("results"))
		}
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	results, err := client.SearchGames(context.Background(), "Half-Life", 5)
	if err != nil {
		t.Fatalf("SearchGames: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].ID != "game-1" || results[0].Title != "Half-Life" {
		t.Errorf("unexpected result: %+v", results[0])
	}
	if results[0].Slug != "half-life" {
		t.Errorf("unexpected slug: %s", results[0].Slug)
	}
}
