package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"songswipe/internal/chat"
	"songswipe/internal/core"
	"songswipe/internal/flood"
	"songswipe/internal/gesture"
	"songswipe/internal/i18n"
	"songswipe/internal/session"
)

const (
	// SessionCookie carries the listener's session id
	SessionCookie = "songswipe_session"
	// StateCookie carries the OAuth state between login and callback
	StateCookie = "songswipe_oauth_state"

	maxBodyBytes      = 64 << 10
	artistSearchLimit = 10
	stateCookieMaxAge = 10 * time.Minute
)

// LoginFlow is an authorization-code login with an external account.
type LoginFlow interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (core.Credential, error)
}

// API is the JSON boundary used by card renderers.
type API struct {
	sessions  *session.Manager
	artists   core.ArtistSearcher
	login     LoginFlow
	limiter   *flood.Limiter
	metrics   *Metrics
	localizer *i18n.Localizer
	logger    *zap.Logger
}

type APIOption func(*API)

func WithArtistSearch(s core.ArtistSearcher) APIOption {
	return func(a *API) { a.artists = s }
}

func WithLogin(l LoginFlow) APIOption {
	return func(a *API) { a.login = l }
}

func WithLimiter(l *flood.Limiter) APIOption {
	return func(a *API) { a.limiter = l }
}

func WithMetrics(m *Metrics) APIOption {
	return func(a *API) { a.metrics = m }
}

func NewAPI(sessions *session.Manager, localizer *i18n.Localizer, logger *zap.Logger, opts ...APIOption) *API {
	a := &API{
		sessions:  sessions,
		localizer: localizer,
		logger:    logger.Named("api"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register adds the API routes to mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.Handle("GET /api/track", a.route("track", a.handleTrack))
	mux.Handle("GET /api/state", a.route("state", a.handleState))
	mux.Handle("POST /api/decision", a.route("decision", a.handleDecision))
	mux.Handle("POST /api/gesture", a.route("gesture", a.handleGesture))
	mux.Handle("PUT /api/seeds", a.route("seeds", a.handleSeeds))
	mux.Handle("GET /api/artists", a.route("artists", a.handleArtists))
	mux.Handle("POST /api/retry", a.route("retry", a.handleRetry))
	mux.Handle("GET /auth/login", a.route("login", a.handleLogin))
	mux.Handle("GET /auth/callback", a.route("callback", a.handleCallback))
	mux.HandleFunc("GET /debug/stats", a.handleStats)
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, s *session.Session) int

// route applies flood limiting, resolves the session cookie and counts the response.
func (a *API) route(name string, h sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.limiter != nil && !a.limiter.Allow("http:"+clientIP(r)) {
			if a.metrics != nil {
				a.metrics.RecordThrottled("http")
			}
			a.writeError(w, http.StatusTooManyRequests, a.localizer.T("error.rate_limited"))
			a.count(name, http.StatusTooManyRequests)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		code := h(w, r, a.session(w, r))
		a.count(name, code)
	})
}

func (a *API) count(route string, code int) {
	if a.metrics == nil {
		return
	}
	class := "2xx"
	switch {
	case code >= 500:
		class = "5xx"
	case code >= 400:
		class = "4xx"
	case code >= 300:
		class = "3xx"
	}
	a.metrics.RequestsTotal.WithLabelValues(route, class).Inc()
}

func (a *API) session(w http.ResponseWriter, r *http.Request) *session.Session {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return a.sessions.Get(c.Value)
	}

	id := session.NewID()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return a.sessions.Get(id)
}

type trackJSON struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	CoverURL    string `json:"coverUrl,omitempty"`
	PreviewURL  string `json:"previewUrl,omitempty"`
	ExternalURL string `json:"externalUrl"`
	Provider    string `json:"provider"`
	// Version and Index name the card; decisions echo them back
	Version uint64 `json:"version"`
	Index   int    `json:"index"`
}

type artistJSON struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl,omitempty"`
}

type stateJSON struct {
	Loading bool         `json:"loading"`
	Error   string       `json:"error,omitempty"`
	Track   *trackJSON   `json:"track"`
	Version   uint64       `json:"version"`
	Index     int          `json:"index"`
	Remaining int          `json:"remaining"`
	Seeds     []artistJSON `json:"seeds"`
	Gesture   gesture.View `json:"gesture"`
}

type statsJSON struct {
	Sessions int          `json:"sessions"`
	Flood    *flood.Stats `json:"flood,omitempty"`
}

type errorJSON struct {
	Error string `json:"error"`
	Retry bool   `json:"retry,omitempty"`
}

func toTrackJSON(t core.Track, version uint64, index int) *trackJSON {
	return &trackJSON{
		ID:          t.ID,
		Title:       t.Title,
		Artist:      t.ArtistName,
		Album:       t.AlbumName,
		CoverURL:    t.Cover(),
		PreviewURL:  t.Preview(),
		ExternalURL: t.ExternalURL,
		Provider:    string(t.Provider),
		Version:     version,
		Index:       index,
	}
}

func toArtistsJSON(artists []core.Artist) []artistJSON {
	out := make([]artistJSON, 0, len(artists))
	for _, artist := range artists {
		out = append(out, artistJSON{ID: artist.ID, Name: artist.DisplayName, ImageURL: artist.ImageURL})
	}
	return out
}

func (a *API) stateOf(s *session.Session) stateJSON {
	st := s.Controller.State()
	out := stateJSON{
		Loading:   st.Loading,
		Error:     st.Error,
		Version:   st.Version,
		Index:     st.Index,
		Remaining: st.Remaining,
		Seeds:     toArtistsJSON(st.Seeds),
		Gesture:   s.Gesture.View(),
	}
	if st.Track != nil {
		out.Track = toTrackJSON(*st.Track, st.Version, st.Index)
	}
	return out
}

// writeState answers with the session state, or a retryable error when the session failed.
func (a *API) writeState(w http.ResponseWriter, s *session.Session, err error) int {
	state := a.stateOf(s)
	code := http.StatusOK
	if err != nil {
		code = http.StatusBadGateway
		if state.Error == "" {
			state.Error = a.localizer.T("error.load_track")
		}
	}
	a.writeJSON(w, code, state)
	return code
}

func (a *API) handleTrack(w http.ResponseWriter, r *http.Request, s *session.Session) int {
	if err := s.Controller.Start(r.Context()); err != nil {
		a.logger.Debug("Initial build failed", zap.String("session", s.ID), zap.Error(err))
	}

	st := s.Controller.State()
	switch {
	case st.Track != nil:
		a.writeJSON(w, http.StatusOK, toTrackJSON(*st.Track, st.Version, st.Index))
		return http.StatusOK
	case st.Error != "":
		a.writeJSON(w, http.StatusBadGateway, errorJSON{Error: st.Error, Retry: true})
		return http.StatusBadGateway
	default:
		a.writeError(w, http.StatusNotFound, a.localizer.T("status.no_track"))
		return http.StatusNotFound
	}
}

func (a *API) handleState(w http.ResponseWriter, _ *http.Request, s *session.Session) int {
	return a.writeState(w, s, nil)
}

func (a *API) handleDecision(w http.ResponseWriter, r *http.Request, s *session.Session) int {
	var body struct {
		Decision string  `json:"decision"`
		Version  *uint64 `json:"version"`
		Index    *int    `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return a.writeError(w, http.StatusBadRequest, "invalid JSON body")
	}
	d, ok := core.ParseDecision(body.Decision)
	if !ok {
		return a.writeError(w, http.StatusBadRequest, `decision must be "like" or "dislike"`)
	}
	if body.Version == nil || body.Index == nil {
		return a.writeError(w, http.StatusBadRequest, "version and index of the displayed card are required")
	}

	// a card mid-animation already has its decision
	if s.Gesture.Phase() != gesture.PhaseIdle {
		return a.writeError(w, http.StatusConflict, a.localizer.T("callback.busy"))
	}

	err := s.Controller.CommitAt(r.Context(), d, *body.Version, *body.Index)
	switch {
	case errors.Is(err, session.ErrNoCurrentTrack):
		return a.writeError(w, http.StatusConflict, a.localizer.T("status.no_track"))
	case errors.Is(err, session.ErrStaleCard):
		return a.writeError(w, http.StatusConflict, a.localizer.T("callback.expired"))
	}
	return a.writeState(w, s, err)
}

type gestureEvent struct {
	Type     string  `json:"type"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Decision string  `json:"decision,omitempty"`
}

func (a *API) handleGesture(w http.ResponseWriter, r *http.Request, s *session.Session) int {
	var ev gestureEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		return a.writeError(w, http.StatusBadRequest, "invalid JSON body")
	}

	at := gesture.Point{X: ev.X, Y: ev.Y}
	switch ev.Type {
	case "down":
		if _, ok := s.Controller.GetCurrentTrack(); ok {
			s.Gesture.PointerDown(at)
		}
	case "move":
		s.Gesture.PointerMove(at)
	case "up":
		s.Gesture.PointerUp()
	case "leave":
		s.Gesture.PointerLeave()
	case "press":
		d, ok := core.ParseDecision(ev.Decision)
		if !ok {
			return a.writeError(w, http.StatusBadRequest, `decision must be "like" or "dislike"`)
		}
		if _, ok := s.Controller.GetCurrentTrack(); ok {
			s.Gesture.Press(d)
		}
	default:
		return a.writeError(w, http.StatusBadRequest, "unknown gesture type "+ev.Type)
	}

	a.writeJSON(w, http.StatusOK, s.Gesture.View())
	return http.StatusOK
}

func (a *API) handleSeeds(w http.ResponseWriter, r *http.Request, s *session.Session) int {
	var body struct {
		Artists []artistJSON `json:"artists"`
		Names   []string     `json:"names"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return a.writeError(w, http.StatusBadRequest, "invalid JSON body")
	}

	artists := make([]core.Artist, 0, len(body.Artists)+len(body.Names))
	for _, artist := range body.Artists {
		if artist.ID == "" {
			continue
		}
		artists = append(artists, core.Artist{ID: artist.ID, DisplayName: artist.Name, ImageURL: artist.ImageURL})
	}

	resolved, err := chat.ResolveArtists(r.Context(), a.artists, body.Names)
	var unknown *chat.UnknownArtistError
	switch {
	case errors.As(err, &unknown):
		return a.writeError(w, http.StatusUnprocessableEntity, a.localizer.T("error.seeds.unknown", unknown.Name))
	case err != nil:
		a.logger.Warn("Artist lookup failed", zap.Error(err))
		return a.writeError(w, http.StatusBadGateway, a.localizer.T("error.provider"))
	}
	artists = append(artists, resolved...)

	s.Gesture.Stop()
	err = s.Controller.SetSeedArtists(r.Context(), artists)
	return a.writeState(w, s, err)
}

func (a *API) handleArtists(w http.ResponseWriter, r *http.Request, _ *session.Session) int {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		return a.writeError(w, http.StatusBadRequest, "query parameter q is required")
	}
	if a.artists == nil {
		return a.writeError(w, http.StatusNotImplemented, "artist search is not available")
	}

	artists, err := a.artists.SearchArtists(r.Context(), q, artistSearchLimit)
	if err != nil {
		a.logger.Warn("Artist search failed", zap.String("q", q), zap.Error(err))
		return a.writeError(w, http.StatusBadGateway, a.localizer.T("error.provider"))
	}
	a.writeJSON(w, http.StatusOK, toArtistsJSON(artists))
	return http.StatusOK
}

func (a *API) handleRetry(w http.ResponseWriter, r *http.Request, s *session.Session) int {
	s.Gesture.Stop()
	err := s.Controller.Retry(r.Context())
	return a.writeState(w, s, err)
}

// handleStats reports process-wide counters without creating a session.
func (a *API) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats := statsJSON{Sessions: a.sessions.Len()}
	if a.limiter != nil {
		fs := a.limiter.Stats()
		stats.Flood = &fs
	}
	a.writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request, _ *session.Session) int {
	if a.login == nil {
		http.NotFound(w, r)
		return http.StatusNotFound
	}

	state := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(stateCookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, a.login.AuthURL(state), http.StatusFound)
	return http.StatusFound
}

func (a *API) handleCallback(w http.ResponseWriter, r *http.Request, s *session.Session) int {
	if a.login == nil {
		http.NotFound(w, r)
		return http.StatusNotFound
	}

	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		a.logger.Info("Login denied", zap.String("reason", reason))
		return a.writeError(w, http.StatusBadRequest, a.localizer.T("error.auth.state"))
	}

	c, err := r.Cookie(StateCookie)
	if err != nil || c.Value == "" || c.Value != q.Get("state") {
		return a.writeError(w, http.StatusBadRequest, a.localizer.T("error.auth.state"))
	}
	http.SetCookie(w, &http.Cookie{Name: StateCookie, Value: "", Path: "/auth", MaxAge: -1})

	cred, err := a.login.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		a.logger.Warn("Code exchange failed", zap.Error(err))
		return a.writeError(w, http.StatusBadGateway, a.localizer.T("error.credential"))
	}

	if err := s.Controller.OnCredentialObtained(r.Context(), cred); err != nil {
		a.logger.Warn("Rebuild after login failed", zap.String("session", s.ID), zap.Error(err))
	}
	a.logger.Info("User logged in", zap.String("session", s.ID))

	http.Redirect(w, r, "/", http.StatusSeeOther)
	return http.StatusSeeOther
}

func (a *API) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Debug("Failed to write response", zap.Error(err))
	}
}

func (a *API) writeError(w http.ResponseWriter, code int, msg string) int {
	a.writeJSON(w, code, errorJSON{Error: msg, Retry: code == http.StatusBadGateway})
	return code
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
