package spotify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"songswipe/internal/auth"
	"songswipe/internal/core"
)

const searchBody = `{"tracks":{"items":[
	{"id":"t1","name":"Digital Love","artists":[{"name":"Daft Punk"}],
	 "album":{"name":"Discovery","images":[{"url":"cover.jpg"}]},
	 "preview_url":"https://p.scdn.co/1","external_urls":{"spotify":"https://open.spotify.com/track/t1"}},
	{"id":"t2","name":"Aerodynamic","artists":[{"name":"Daft Punk"}],"album":{"name":"Discovery"}}
]}}`

type tokenSequence struct {
	mu     sync.Mutex
	tokens []string
	calls  int
}

func (s *tokenSequence) fetcher() auth.Fetcher {
	return auth.FetcherFunc(func(context.Context, core.Credential) (core.Credential, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		token := s.tokens[min(s.calls, len(s.tokens)-1)]
		s.calls++
		return core.Credential{AccessToken: token, TokenType: "Bearer", ExpiresIn: time.Hour}, nil
	})
}

func newTestClient(t *testing.T, handler http.HandlerFunc, tokens ...string) (*Client, *tokenSequence) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	seq := &tokenSequence{tokens: tokens}
	creds := auth.NewProvider(seq.fetcher(), zap.NewNop())
	config := &core.SpotifyConfig{Market: "US"}
	client := NewClient(config, creds, 2*time.Second, zap.NewNop(), WithBaseURL(server.URL+"/"))
	return client, seq
}

func TestClient_SearchByQuery(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if !strings.HasSuffix(r.URL.Path, "/search") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("type") != "track" {
			t.Errorf("type = %q, want track", r.URL.Query().Get("type"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchBody))
	}, "tok")

	tracks, err := client.SearchByQuery(context.Background(), "daft punk", 0, 20)
	if err != nil {
		t.Fatalf("SearchByQuery() error = %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer tok")
	}
	if len(tracks) != 2 {
		t.Fatalf("SearchByQuery() returned %d tracks, want 2", len(tracks))
	}
	if tracks[0].ArtistName != "Daft Punk" || tracks[0].Cover() != "cover.jpg" || !tracks[0].Playable() {
		t.Errorf("first track = %+v", tracks[0])
	}
	if tracks[1].Playable() {
		t.Error("track without preview_url must not be playable")
	}
}

func TestClient_RefreshesOnceOnUnauthorized(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	client, seq := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") == "Bearer expired" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"status":401,"message":"The access token expired"}}`))
			return
		}
		_, _ = w.Write([]byte(searchBody))
	}, "expired", "fresh")

	tracks, err := client.SearchByQuery(context.Background(), "daft punk", 0, 20)
	if err != nil {
		t.Fatalf("SearchByQuery() error = %v", err)
	}
	if len(tracks) != 2 {
		t.Errorf("SearchByQuery() returned %d tracks, want 2", len(tracks))
	}
	if seq.calls != 2 {
		t.Errorf("credential fetched %d times, want 2", seq.calls)
	}
	if len(seen) != 2 || seen[1] != "Bearer fresh" {
		t.Errorf("requests carried %v", seen)
	}
}

func TestClient_SecondUnauthorizedIsProviderUnavailable(t *testing.T) {
	var requests atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"status":401,"message":"Invalid access token"}}`))
	}, "bad1", "bad2", "bad3")

	_, err := client.RelatedArtists(context.Background(), "4tZwfgrHOc3mvqYlEYSvVi")
	if !errors.Is(err, core.ErrProviderUnavailable) {
		t.Errorf("error = %v, want ErrProviderUnavailable", err)
	}
	if !errors.Is(err, core.ErrCredentialExpiredOrInvalid) {
		t.Errorf("error = %v, want it to wrap ErrCredentialExpiredOrInvalid", err)
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("server saw %d requests, want exactly one retry", got)
	}
}

func TestClient_RecommendationsDefaultToGenreSeeds(t *testing.T) {
	var seedGenres, limit string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seedGenres = r.URL.Query().Get("seed_genres")
		limit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tracks":[{"id":"r1","name":"Rec","artists":[{"name":"A"},{"name":"B"}],"preview_url":"p"}]}`))
	}, "tok")

	tracks, err := client.RecommendationsFromSeeds(context.Background(), core.Seeds{}, 50)
	if err != nil {
		t.Fatalf("RecommendationsFromSeeds() error = %v", err)
	}
	if seedGenres != "pop,rock,hip-hop" {
		t.Errorf("seed_genres = %q", seedGenres)
	}
	if limit != "50" {
		t.Errorf("limit = %q, want 50", limit)
	}
	if len(tracks) != 1 || tracks[0].ArtistName != "A, B" {
		t.Errorf("tracks = %+v", tracks)
	}
}

func TestCapSeeds(t *testing.T) {
	seeds := core.Seeds{
		ArtistIDs: []string{"a1", "a2", "a3", "a4"},
		TrackIDs:  []string{"t1", "t2"},
		Genres:    []string{"pop"},
	}

	capped := capSeeds(seeds, core.MaxSeeds)
	if capped.Count() != core.MaxSeeds {
		t.Fatalf("Count() = %d, want %d", capped.Count(), core.MaxSeeds)
	}
	if len(capped.ArtistIDs) != 4 || len(capped.TrackIDs) != 1 || len(capped.Genres) != 0 {
		t.Errorf("capSeeds() = %+v, artists should be kept first", capped)
	}
}
