package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"songswipe/internal/core"
	"songswipe/internal/flood"
	"songswipe/internal/i18n"
	"songswipe/internal/queue"
	"songswipe/internal/session"
)

type stubBuilder struct {
	mu      sync.Mutex
	version uint64
	fail    bool
	seeds   []core.Artist
}

func (b *stubBuilder) Build(_ context.Context, req queue.Request) (*core.WorkingSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seeds = req.Artists
	if b.fail {
		return nil, core.ErrEmptyRecommendationSet
	}
	b.version++
	preview := "https://cdn.example/p.mp3"
	set := &core.WorkingSet{Version: b.version}
	for i := range 3 {
		set.Tracks = append(set.Tracks, core.Track{
			ID:         fmt.Sprintf("t%d-%d", b.version, i),
			Title:      "Song",
			ArtistName: "Artist",
			PreviewURL: &preview,
			Provider:   core.ProviderDeezer,
		})
	}
	return set, nil
}

func (b *stubBuilder) setFail(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail = fail
}

type stubArtists struct{}

func (stubArtists) SearchArtists(_ context.Context, name string, limit int) ([]core.Artist, error) {
	if name == "nobody" {
		return nil, nil
	}
	out := []core.Artist{{ID: "id-" + name, DisplayName: name}}
	for i := 1; i < limit && i < 3; i++ {
		out = append(out, core.Artist{ID: fmt.Sprintf("id-%s-%d", name, i), DisplayName: name})
	}
	return out, nil
}

type stubLogin struct {
	mu        sync.Mutex
	exchanged string
}

func (l *stubLogin) AuthURL(state string) string {
	return "https://accounts.example/authorize?state=" + state
}

func (l *stubLogin) Exchange(_ context.Context, code string) (core.Credential, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exchanged = code
	return core.Credential{AccessToken: "user-" + code}, nil
}

type apiFixture struct {
	server  *httptest.Server
	client  *http.Client
	builder *stubBuilder
	login   *stubLogin

	mu    sync.Mutex
	creds []core.Credential
}

func newAPIFixture(t *testing.T, limiter *flood.Limiter) *apiFixture {
	t.Helper()
	f := &apiFixture{builder: &stubBuilder{}, login: &stubLogin{}}
	localizer := i18n.NewLocalizer("en")

	sessions := session.NewManager(16, func(string) *session.Controller {
		return session.NewController(f.builder, localizer, zap.NewNop(),
			session.WithCredentialSink(func(_ context.Context, cred core.Credential) error {
				f.mu.Lock()
				defer f.mu.Unlock()
				f.creds = append(f.creds, cred)
				return nil
			}))
	}, zap.NewNop())

	opts := []APIOption{
		WithArtistSearch(stubArtists{}),
		WithLogin(f.login),
		WithMetrics(NewMetrics(prometheus.NewRegistry())),
	}
	if limiter != nil {
		opts = append(opts, WithLimiter(limiter))
	}
	api := NewAPI(sessions, localizer, zap.NewNop(), opts...)

	mux := http.NewServeMux()
	api.Register(mux)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)

	jar, _ := cookiejar.New(nil)
	f.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, body string, out any) int {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, f.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestAPI_TrackAndDecision(t *testing.T) {
	f := newAPIFixture(t, nil)

	var track trackJSON
	if code := f.do(t, http.MethodGet, "/api/track", "", &track); code != http.StatusOK {
		t.Fatalf("GET /api/track = %d", code)
	}
	if track.ID != "t1-0" || track.PreviewURL == "" {
		t.Errorf("track = %+v", track)
	}

	if track.Version != 1 || track.Index != 0 {
		t.Errorf("card position = %d/%d, want 1/0", track.Version, track.Index)
	}

	for i := range 3 {
		var state stateJSON
		body := decisionBody("like", track.Version, track.Index)
		if code := f.do(t, http.MethodPost, "/api/decision", body, &state); code != http.StatusOK {
			t.Fatalf("decision %d = %d", i, code)
		}
		if i == 2 && (state.Version != 2 || state.Track == nil || state.Track.ID != "t2-0") {
			t.Errorf("after exhaustion state = %+v", state)
		}
		track = *state.Track
	}

	var errBody errorJSON
	if code := f.do(t, http.MethodPost, "/api/decision", `{"decision":"maybe","version":2,"index":0}`, &errBody); code != http.StatusBadRequest {
		t.Errorf("invalid decision = %d", code)
	}
	if code := f.do(t, http.MethodPost, "/api/decision", `{"decision":"like"}`, &errBody); code != http.StatusBadRequest {
		t.Errorf("decision without card position = %d, want 400", code)
	}
}

func decisionBody(decision string, version uint64, index int) string {
	return fmt.Sprintf(`{"decision":%q,"version":%d,"index":%d}`, decision, version, index)
}

func TestAPI_DoubleSubmitDecidesOnce(t *testing.T) {
	f := newAPIFixture(t, nil)

	var track trackJSON
	if code := f.do(t, http.MethodGet, "/api/track", "", &track); code != http.StatusOK {
		t.Fatalf("GET /api/track = %d", code)
	}

	body := decisionBody("like", track.Version, track.Index)
	codes := make([]int, 2)
	var wg sync.WaitGroup
	for i := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
				f.server.URL+"/api/decision", strings.NewReader(body))
			if err != nil {
				return
			}
			resp, err := f.client.Do(req)
			if err != nil {
				return
			}
			resp.Body.Close()
			codes[i] = resp.StatusCode
		}()
	}
	wg.Wait()

	ok, conflict := 0, 0
	for _, code := range codes {
		switch code {
		case http.StatusOK:
			ok++
		case http.StatusConflict:
			conflict++
		}
	}
	if ok != 1 || conflict != 1 {
		t.Fatalf("codes = %v, want one 200 and one 409", codes)
	}

	var state stateJSON
	f.do(t, http.MethodGet, "/api/state", "", &state)
	if state.Version != 1 || state.Index != 1 {
		t.Errorf("now at %d/%d, want 1/1", state.Version, state.Index)
	}

	// a late retry of the same request is refused as well
	var errBody errorJSON
	if code := f.do(t, http.MethodPost, "/api/decision", body, &errBody); code != http.StatusConflict {
		t.Errorf("repeated decision = %d, want 409", code)
	}
	if errBody.Error != "This card is no longer current." {
		t.Errorf("error = %q", errBody.Error)
	}
}

func TestAPI_ErrorAndRetry(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.builder.setFail(true)

	var errBody errorJSON
	if code := f.do(t, http.MethodGet, "/api/track", "", &errBody); code != http.StatusBadGateway {
		t.Fatalf("GET /api/track = %d, want 502", code)
	}
	if errBody.Error != "Error loading song. Please try again." || !errBody.Retry {
		t.Errorf("error body = %+v", errBody)
	}

	f.builder.setFail(false)
	var state stateJSON
	if code := f.do(t, http.MethodPost, "/api/retry", "", &state); code != http.StatusOK {
		t.Fatalf("POST /api/retry = %d", code)
	}
	if state.Track == nil || state.Error != "" {
		t.Errorf("state after retry = %+v", state)
	}
}

func TestAPI_Seeds(t *testing.T) {
	f := newAPIFixture(t, nil)

	var state stateJSON
	code := f.do(t, http.MethodPut, "/api/seeds",
		`{"artists":[{"id":"bwu","name":"BoyWithUke"}],"names":["Daft Punk"]}`, &state)
	if code != http.StatusOK {
		t.Fatalf("PUT /api/seeds = %d", code)
	}
	if len(state.Seeds) != 2 || state.Seeds[1].ID != "id-Daft Punk" {
		t.Errorf("seeds = %+v", state.Seeds)
	}
	f.builder.mu.Lock()
	seen := len(f.builder.seeds)
	f.builder.mu.Unlock()
	if seen != 2 {
		t.Errorf("builder saw %d seeds", seen)
	}

	var errBody errorJSON
	if code := f.do(t, http.MethodPut, "/api/seeds", `{"names":["nobody"]}`, &errBody); code != http.StatusUnprocessableEntity {
		t.Errorf("unknown artist = %d", code)
	}
	if errBody.Error != "Couldn't find an artist called nobody" {
		t.Errorf("error = %q", errBody.Error)
	}
}

func TestAPI_ArtistSearch(t *testing.T) {
	f := newAPIFixture(t, nil)

	var artists []artistJSON
	if code := f.do(t, http.MethodGet, "/api/artists?q="+url.QueryEscape("Air"), "", &artists); code != http.StatusOK {
		t.Fatalf("GET /api/artists = %d", code)
	}
	if len(artists) != 3 || artists[0].Name != "Air" {
		t.Errorf("artists = %+v", artists)
	}

	if code := f.do(t, http.MethodGet, "/api/artists", "", nil); code != http.StatusBadRequest {
		t.Errorf("missing q = %d", code)
	}
}

func TestAPI_Gesture(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.do(t, http.MethodGet, "/api/track", "", nil)

	var view map[string]any
	f.do(t, http.MethodPost, "/api/gesture", `{"type":"down","x":100,"y":100}`, &view)
	f.do(t, http.MethodPost, "/api/gesture", `{"type":"move","x":250,"y":100}`, &view)
	if view["phase"] != "dragging" || view["indicator"] != "like" {
		t.Errorf("drag view = %v", view)
	}

	f.do(t, http.MethodPost, "/api/gesture", `{"type":"up"}`, &view)
	if view["phase"] != "committing" {
		t.Errorf("release view = %v", view)
	}

	var errBody errorJSON
	if code := f.do(t, http.MethodPost, "/api/decision", decisionBody("dislike", 1, 0), &errBody); code != http.StatusConflict {
		t.Errorf("decision during animation = %d, want 409", code)
	}

	if code := f.do(t, http.MethodPost, "/api/gesture", `{"type":"spin"}`, nil); code != http.StatusBadRequest {
		t.Errorf("unknown gesture = %d", code)
	}
}

func TestAPI_Login(t *testing.T) {
	f := newAPIFixture(t, nil)

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, f.server.URL+"/auth/login", http.NoBody)
	resp, err := f.client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("GET /auth/login = %d", resp.StatusCode)
	}
	location, _ := url.Parse(resp.Header.Get("Location"))
	state := location.Query().Get("state")
	if state == "" {
		t.Fatal("no state in authorize URL")
	}

	if code := f.do(t, http.MethodGet, "/auth/callback?code=abc&state=forged", "", nil); code != http.StatusBadRequest {
		t.Errorf("forged state = %d, want 400", code)
	}

	if code := f.do(t, http.MethodGet, "/auth/callback?code=abc&state="+state, "", nil); code != http.StatusSeeOther {
		t.Fatalf("callback = %d, want 303", code)
	}
	f.login.mu.Lock()
	exchanged := f.login.exchanged
	f.login.mu.Unlock()
	f.mu.Lock()
	creds := f.creds
	f.mu.Unlock()
	if exchanged != "abc" || len(creds) != 1 || creds[0].AccessToken != "user-abc" {
		t.Errorf("exchanged %q creds %+v", exchanged, creds)
	}
}

func TestAPI_FloodLimit(t *testing.T) {
	f := newAPIFixture(t, flood.New(2))

	f.do(t, http.MethodGet, "/api/state", "", nil)
	f.do(t, http.MethodGet, "/api/state", "", nil)

	var errBody errorJSON
	if code := f.do(t, http.MethodGet, "/api/state", "", &errBody); code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", code)
	}
	if errBody.Error == "" {
		t.Error("throttled response has no message")
	}
}

func TestAPI_Stats(t *testing.T) {
	f := newAPIFixture(t, flood.New(5))

	f.do(t, http.MethodGet, "/api/state", "", nil)

	var stats statsJSON
	if code := f.do(t, http.MethodGet, "/debug/stats", "", &stats); code != http.StatusOK {
		t.Fatalf("GET /debug/stats = %d", code)
	}
	if stats.Sessions != 1 {
		t.Errorf("sessions = %d, want 1", stats.Sessions)
	}
	if stats.Flood == nil || stats.Flood.Clients != 1 || stats.Flood.PerMinute != 5 {
		t.Errorf("flood stats = %+v", stats.Flood)
	}
}
