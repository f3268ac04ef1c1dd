package spotify

import (
	"context"
	"net/http"

	"songswipe/internal/core"
)

type credentialKey struct{}

func withCredential(ctx context.Context, cred core.Credential) context.Context {
	return context.WithValue(ctx, credentialKey{}, cred)
}

// bearerTransport attaches the credential carried by the request context.
type bearerTransport struct {
	base http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	cred, ok := req.Context().Value(credentialKey{}).(core.Credential)
	if !ok || cred.AccessToken == "" {
		return base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	tokenType := cred.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	clone.Header.Set("Authorization", tokenType+" "+cred.AccessToken)
	return base.RoundTrip(clone)
}
