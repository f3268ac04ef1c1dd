package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"songswipe/internal/core"
)

func newTestDeezer(t *testing.T, handler http.HandlerFunc) *DeezerClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewDeezerClient(&core.DeezerConfig{BaseURL: server.URL}, 2*time.Second, zap.NewNop())
}

func TestDeezerClient_SearchByQuery(t *testing.T) {
	var gotQuery, gotIndex, gotLimit string
	client := newTestDeezer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.Query().Get("q")
		gotIndex = r.URL.Query().Get("index")
		gotLimit = r.URL.Query().Get("limit")
		_, _ = w.Write([]byte(`{"data":[
			{"id":1,"title":"One","preview":"https://p/1.mp3","artist":{"id":10,"name":"A"},"album":{"title":"X","cover_big":"big.jpg"}},
			{"id":2,"title":"Two","preview":"","artist":{"id":11,"name":"B"}},
			{"id":0,"title":"Broken"}
		],"total":3}`))
	})

	tracks, err := client.SearchByQuery(context.Background(), "love", 17, 50)
	if err != nil {
		t.Fatalf("SearchByQuery() error = %v", err)
	}
	if gotQuery != "love" || gotIndex != "17" || gotLimit != "50" {
		t.Errorf("query params q=%q index=%q limit=%q", gotQuery, gotIndex, gotLimit)
	}
	if len(tracks) != 2 {
		t.Fatalf("SearchByQuery() returned %d tracks, want 2", len(tracks))
	}
	if !tracks[0].Playable() || tracks[1].Playable() {
		t.Errorf("preview presence not preserved: %v %v", tracks[0].Playable(), tracks[1].Playable())
	}
	if tracks[0].Cover() != "big.jpg" {
		t.Errorf("Cover() = %q, want big.jpg", tracks[0].Cover())
	}
}

func TestDeezerClient_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "malformed payload",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"data":[`))
			},
		},
		{
			name: "in-band quota error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"error":{"type":"Exception","message":"Quota limit exceeded","code":4}}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestDeezer(t, tt.handler)
			_, err := client.SearchByQuery(context.Background(), "rock", 0, 10)
			if !errors.Is(err, core.ErrProviderUnavailable) {
				t.Errorf("SearchByQuery() error = %v, want ErrProviderUnavailable", err)
			}
		})
	}
}

func TestDeezerClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	client := NewDeezerClient(&core.DeezerConfig{BaseURL: server.URL}, 50*time.Millisecond, zap.NewNop())
	_, err := client.Chart(context.Background(), 10)
	if !errors.Is(err, core.ErrProviderUnavailable) {
		t.Errorf("Chart() error = %v, want ErrProviderUnavailable", err)
	}
}

func TestDeezerClient_ArtistExpansion(t *testing.T) {
	client := newTestDeezer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/artist/27/related":
			_, _ = w.Write([]byte(`{"data":[{"id":1,"name":"Justice"},{"id":2,"name":"Air"},{"id":0,"name":"ghost"}]}`))
		case "/artist/1/top":
			if r.URL.Query().Get("limit") != "5" {
				t.Errorf("limit = %q, want 5", r.URL.Query().Get("limit"))
			}
			_, _ = w.Write([]byte(`{"data":[{"id":100,"title":"D.A.N.C.E.","preview":"p"}]}`))
		case "/search/artist":
			_, _ = w.Write([]byte(`{"data":[{"id":27,"name":"Daft Punk","picture_xl":"xl.jpg"}]}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	related, err := client.RelatedArtists(ctx, "27")
	if err != nil {
		t.Fatalf("RelatedArtists() error = %v", err)
	}
	if len(related) != 2 || related[0].DisplayName != "Justice" {
		t.Errorf("RelatedArtists() = %+v", related)
	}

	top, err := client.TopTracksForArtist(ctx, "1", 5)
	if err != nil {
		t.Fatalf("TopTracksForArtist() error = %v", err)
	}
	if len(top) != 1 || top[0].ID != "100" {
		t.Errorf("TopTracksForArtist() = %+v", top)
	}

	artists, err := client.SearchArtists(ctx, "daft", 5)
	if err != nil {
		t.Fatalf("SearchArtists() error = %v", err)
	}
	if len(artists) != 1 || artists[0].ImageURL != "xl.jpg" {
		t.Errorf("SearchArtists() = %+v", artists)
	}

	if _, err := client.TrackRadio(ctx, "100"); !errors.Is(err, core.ErrProviderUnavailable) {
		t.Errorf("TrackRadio() on 404 error = %v, want ErrProviderUnavailable", err)
	}
}

func TestDeezerClient_SearchExact(t *testing.T) {
	var gotQuery string
	client := newTestDeezer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(`{"data":[
			{"id":1,"title":"Something Else","preview":"p1","artist":{"name":"Other"}},
			{"id":2,"title":"One More Time","preview":"","artist":{"name":"Daft Punk"}},
			{"id":3,"title":"One More Time (Radio Edit)","preview":"p3","artist":{"name":"Daft Punk"}}
		]}`))
	})

	track, err := client.SearchExact(context.Background(), "One More Time", "Daft Punk")
	if err != nil {
		t.Fatalf("SearchExact() error = %v", err)
	}
	if gotQuery != `artist:"Daft Punk" track:"One More Time"` {
		t.Errorf("query = %q", gotQuery)
	}
	if track == nil || track.ID != "3" {
		t.Errorf("SearchExact() = %+v, want playable match id 3", track)
	}
}

type recordingObserver struct {
	calls []string
	errs  int
}

func (o *recordingObserver) ObserveProviderCall(provider, op string, err error, _ time.Duration) {
	o.calls = append(o.calls, provider+"/"+op)
	if err != nil {
		o.errs++
	}
}

func TestDeezerClient_Observer(t *testing.T) {
	client := newTestDeezer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	observer := &recordingObserver{}
	client.SetObserver(observer)

	if _, err := client.Chart(context.Background(), 10); err != nil {
		t.Fatalf("Chart() error = %v", err)
	}
	if len(observer.calls) != 1 || observer.calls[0] != "deezer/chart" || observer.errs != 0 {
		t.Errorf("observer saw %v (%d errors)", observer.calls, observer.errs)
	}
}
