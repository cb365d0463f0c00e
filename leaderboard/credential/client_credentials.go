// leaderboard/credential/client_credentials.go
package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentialsSource exchanges the application's client id and secret for
// an access token using HTTP Basic authentication.
type ClientCredentialsSource struct {
	cfg        *clientcredentials.Config
	httpClient *http.Client
}

func NewClientCredentialsSource(clientID, clientSecret, tokenURL string, httpClient *http.Client) *ClientCredentialsSource {
	return &ClientCredentialsSource{
		cfg: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		httpClient: httpClient,
	}
}

func (s *ClientCredentialsSource) FetchToken(ctx context.Context) (TokenResponse, error) {
	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}

	tok, err := s.cfg.Token(ctx)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("client credentials exchange failed: %w", err)
	}

	seconds, err := numericExtra(tok.Extra("expires_in"))
	if err != nil {
		return TokenResponse{}, fmt.Errorf("token response has no usable expires_in: %w", err)
	}

	sub, _ := tok.Extra("sub").(string)
	return TokenResponse{
		AccessToken: tok.AccessToken,
		ExpiresIn:   time.Duration(seconds) * time.Second,
		Subject:     sub,
	}, nil
}

func numericExtra(v interface{}) (int64, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	case nil:
		return 0, fmt.Errorf("field missing")
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
