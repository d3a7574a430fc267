package oauth

import (
	"time"

	"golang.org/x/oauth2"
)

// Token is one credential set for the Gather API. ExpiresAt is always an
// absolute instant, never a remaining duration. Scopes is non-nil even when
// the provider granted none.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scopes       []string  `json:"scopes"`
	TokenType    string    `json:"token_type"`
}

// OAuth2 converts the token for consumers of golang.org/x/oauth2 interfaces.
// Scopes do not survive the conversion; the oauth2 type has no field for
// them.
func (t *Token) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
		TokenType:    t.TokenType,
	}
}

// FromOAuth2 builds a Token from an x/oauth2 token plus the scopes the
// credential was granted.
func FromOAuth2(t *oauth2.Token, scopes []string) *Token {
	if scopes == nil {
		scopes = []string{}
	}
	return &Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.Expiry,
		Scopes:       scopes,
		TokenType:    t.TokenType,
	}
}
