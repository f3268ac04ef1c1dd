package core

import "errors"

var (
	// ErrProviderUnavailable is a transport, status or payload failure of a single provider call
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrNoPlayableTrackFound means the search strategy ran out of attempts
	ErrNoPlayableTrackFound = errors.New("no playable track found")
	// ErrEmptyRecommendationSet means a full builder pass produced no tracks
	ErrEmptyRecommendationSet = errors.New("empty recommendation set")
	// ErrCredentialExpiredOrInvalid means an authenticated provider rejected the credential
	ErrCredentialExpiredOrInvalid = errors.New("credential expired or invalid")
	// ErrUnsupportedOperation is returned when a provider lacks a capability
	ErrUnsupportedOperation = errors.New("operation not supported by provider")
)
