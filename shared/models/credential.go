package models

import "time"

// Credential is a client-credentials access token. It is never mutated;
// a refresh produces a new Credential that supersedes the old one.
type Credential struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Subject     string    `json:"sub,omitempty"`
}

// Valid reports whether the credential may be handed out at now.
func (c Credential) Valid(now time.Time) bool {
	return c.AccessToken != "" && c.ExpiresAt.After(now)
}
