package spotify

import (
	"context"
	"fmt"
	"time"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"songswipe/internal/auth"
	"songswipe/internal/core"
)

// defaultTokenLifetime is assumed when the token endpoint omits expires_in.
const defaultTokenLifetime = time.Hour

// UserScopes are requested by the authorization-code flow.
var UserScopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopeUserTopRead,
	spotifyauth.ScopeUserReadRecentlyPlayed,
}

// NewClientCredentialsFetcher returns an app-only credential source.
func NewClientCredentialsFetcher(config *core.SpotifyConfig) auth.Fetcher {
	cc := &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return auth.FetcherFunc(func(ctx context.Context, _ core.Credential) (core.Credential, error) {
		token, err := cc.Token(ctx)
		if err != nil {
			return core.Credential{}, fmt.Errorf("client credentials: %w", err)
		}
		return credentialFromToken(token, time.Now()), nil
	})
}

// UserAuth drives the authorization-code flow for a logged-in user.
type UserAuth struct {
	auth   *spotifyauth.Authenticator
	oauth  *oauth2.Config
	config *core.SpotifyConfig
}

func NewUserAuth(config *core.SpotifyConfig) *UserAuth {
	return &UserAuth{
		auth: spotifyauth.New(
			spotifyauth.WithRedirectURL(config.RedirectURL),
			spotifyauth.WithScopes(UserScopes...),
			spotifyauth.WithClientID(config.ClientID),
			spotifyauth.WithClientSecret(config.ClientSecret),
		),
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       UserScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyauth.AuthURL,
				TokenURL: spotifyauth.TokenURL,
			},
		},
		config: config,
	}
}

// AuthURL is the consent page the user is redirected to. state must be echoed back on callback.
func (u *UserAuth) AuthURL(state string) string {
	return u.auth.AuthURL(state)
}

// Exchange trades an authorization code for a user credential.
func (u *UserAuth) Exchange(ctx context.Context, code string) (core.Credential, error) {
	token, err := u.auth.Exchange(ctx, code)
	if err != nil {
		return core.Credential{}, fmt.Errorf("exchange authorization code: %w", err)
	}
	return credentialFromToken(token, time.Now()), nil
}

// RefreshFetcher renews a user credential from its refresh token.
func (u *UserAuth) RefreshFetcher() auth.Fetcher {
	return auth.FetcherFunc(func(ctx context.Context, current core.Credential) (core.Credential, error) {
		if current.RefreshToken == "" {
			return core.Credential{}, fmt.Errorf("no refresh token")
		}
		expired := &oauth2.Token{RefreshToken: current.RefreshToken, Expiry: time.Unix(1, 0)}
		token, err := u.oauth.TokenSource(ctx, expired).Token()
		if err != nil {
			return core.Credential{}, fmt.Errorf("refresh user token: %w", err)
		}
		cred := credentialFromToken(token, time.Now())
		if cred.RefreshToken == "" {
			cred.RefreshToken = current.RefreshToken
		}
		return cred, nil
	})
}

func credentialFromToken(token *oauth2.Token, now time.Time) core.Credential {
	expiresIn := defaultTokenLifetime
	if !token.Expiry.IsZero() {
		expiresIn = token.Expiry.Sub(now)
	}
	return core.Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.Type(),
		ObtainedAt:   now,
		ExpiresIn:    expiresIn,
	}
}
