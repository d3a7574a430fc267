// Package tokenstore persists OAuth credentials, one record per identifier,
// behind a single Store contract with interchangeable backends: process
// memory, a shared cache, a relational table or a document collection.
package tokenstore

import (
	"context"
	"strings"

	"github.com/gatherhq/gather-go/apierror"
	"github.com/gatherhq/gather-go/oauth"
)

// Store is the persistence contract the request executor depends on.
// Identifiers are opaque; multi-tenant callers use one identifier per
// account.
type Store interface {
	// Store validates and saves a complete token record, replacing any
	// previous record for the identifier.
	Store(ctx context.Context, identifier string, token *oauth.Token) error

	// Retrieve loads the record for an identifier. A missing record is
	// (nil, nil), never an error.
	Retrieve(ctx context.Context, identifier string) (*oauth.Token, error)

	// Refresh merges a freshly issued token over the stored record and
	// persists the result. Fields the provider omitted keep their stored
	// values, so a refresh response without a refresh token never loses the
	// one already held.
	Refresh(ctx context.Context, identifier string, token *oauth.Token) error

	// Delete removes the record. Deleting an unknown identifier succeeds.
	Delete(ctx context.Context, identifier string) error

	// Available reports whether the backing service is reachable.
	Available(ctx context.Context) bool
}

// validate rejects incomplete records before they reach a backend. A record
// missing any of these fields cannot sustain the refresh cycle.
func validate(token *oauth.Token) error {
	if token == nil {
		return apierror.New(apierror.KindConfiguration, "token record is nil")
	}
	var missing []string
	if token.AccessToken == "" {
		missing = append(missing, "access token")
	}
	if token.RefreshToken == "" {
		missing = append(missing, "refresh token")
	}
	if token.ExpiresAt.IsZero() {
		missing = append(missing, "expiry")
	}
	if token.Scopes == nil {
		missing = append(missing, "scopes")
	}
	if len(missing) > 0 {
		return apierror.Newf(apierror.KindConfiguration, "token record is missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// merge lays an incoming token over the stored one. Zero-valued incoming
// fields keep the stored values.
func merge(existing, incoming *oauth.Token) *oauth.Token {
	if existing == nil {
		return incoming
	}
	merged := *incoming
	if merged.AccessToken == "" {
		merged.AccessToken = existing.AccessToken
	}
	if merged.RefreshToken == "" {
		merged.RefreshToken = existing.RefreshToken
	}
	if merged.TokenType == "" {
		merged.TokenType = existing.TokenType
	}
	if len(merged.Scopes) == 0 {
		merged.Scopes = existing.Scopes
	}
	if merged.ExpiresAt.IsZero() {
		merged.ExpiresAt = existing.ExpiresAt
	}
	return &merged
}

// cloneToken copies a record so callers and the store never share slices.
func cloneToken(t *oauth.Token) *oauth.Token {
	c := *t
	c.Scopes = make([]string, len(t.Scopes))
	copy(c.Scopes, t.Scopes)
	return &c
}
