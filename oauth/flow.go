// Package oauth implements the authorization code + PKCE flow for the Gather
// API: authorization URL construction, code exchange, token refresh and
// expiry checks. The flow is stateless; persisting the resulting tokens is
// the tokenstore package's job.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gatherhq/gather-go/apierror"
)

// DefaultExpiryBuffer is how long before its actual expiry a token is
// already treated as expired, so a refresh lands before the API starts
// rejecting the credential.
const DefaultExpiryBuffer = 60 * time.Second

const defaultTimeout = 30 * time.Second

// Config identifies the OAuth client application. BaseURL is the OAuth
// server origin (for example https://auth.gather.example); the authorize and
// token endpoints hang off it at fixed paths.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	BaseURL      string
}

// Flow drives the authorization code + PKCE flow. Construct it with NewFlow;
// the zero value is not usable.
type Flow struct {
	cfg          Config
	httpClient   *http.Client
	now          func() time.Time
	expiryBuffer time.Duration
	logger       zerolog.Logger
}

// Option customizes a Flow.
type Option func(*Flow)

// WithHTTPClient replaces the default HTTP client. The client's timeout
// bounds every token endpoint call.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Flow) {
		if c != nil {
			f.httpClient = c
		}
	}
}

// WithClock replaces time.Now for expiry computation. Tests use it to pin
// the clock.
func WithClock(now func() time.Time) Option {
	return func(f *Flow) {
		if now != nil {
			f.now = now
		}
	}
}

// WithExpiryBuffer overrides DefaultExpiryBuffer.
func WithExpiryBuffer(d time.Duration) Option {
	return func(f *Flow) {
		f.expiryBuffer = d
	}
}

// WithLogger attaches a logger. Without it the flow is silent.
func WithLogger(l zerolog.Logger) Option {
	return func(f *Flow) {
		f.logger = l
	}
}

// NewFlow validates the client configuration and returns a ready Flow.
func NewFlow(cfg Config, opts ...Option) (*Flow, error) {
	if cfg.ClientID == "" {
		return nil, apierror.New(apierror.KindConfiguration, "oauth client id is required")
	}
	if cfg.BaseURL == "" {
		return nil, apierror.New(apierror.KindConfiguration, "oauth base url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, apierror.Newf(apierror.KindConfiguration, "oauth base url %q is not an absolute url", cfg.BaseURL)
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	f := &Flow{
		cfg:          cfg,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		now:          time.Now,
		expiryBuffer: DefaultExpiryBuffer,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// AuthorizationParams controls a single authorization redirect. Everything
// is optional: missing Verifier and State are generated, missing RedirectURI
// and BaseURL fall back to the configured values.
type AuthorizationParams struct {
	Scopes      []string
	State       string
	Verifier    string
	RedirectURI string
	BaseURL     string
}

// Authorization is what the caller must hold on to between redirecting the
// user and exchanging the code: the URL to send them to, the verifier for
// the exchange, and the state to compare on the callback.
type Authorization struct {
	URL      string
	Verifier string
	State    string
}

// AuthorizationURL builds the authorization redirect. The code challenge is
// always derived from the verifier, supplied or generated, so the URL and
// the returned verifier can never disagree. No network traffic happens here.
func (f *Flow) AuthorizationURL(params AuthorizationParams) (*Authorization, error) {
	verifier := params.Verifier
	if verifier == "" {
		v, err := GenerateVerifier()
		if err != nil {
			return nil, fmt.Errorf("building authorization url: %w", err)
		}
		verifier = v
	}
	state := params.State
	if state == "" {
		s, err := GenerateState()
		if err != nil {
			return nil, fmt.Errorf("building authorization url: %w", err)
		}
		state = s
	}
	redirectURI := params.RedirectURI
	if redirectURI == "" {
		redirectURI = f.cfg.RedirectURI
	}
	base := f.cfg.BaseURL
	if params.BaseURL != "" {
		base = strings.TrimSuffix(params.BaseURL, "/")
	}

	q := url.Values{}
	q.Set("client_id", f.cfg.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("code_challenge", ChallengeS256(verifier))
	q.Set("code_challenge_method", ChallengeMethodS256)
	q.Set("state", state)
	if len(params.Scopes) > 0 {
		q.Set("scope", strings.Join(params.Scopes, " "))
	}

	return &Authorization{
		URL:      base + "/oauth/authorize?" + q.Encode(),
		Verifier: verifier,
		State:    state,
	}, nil
}

// ExchangeParams carry the values from the authorization callback.
type ExchangeParams struct {
	Code        string
	Verifier    string
	RedirectURI string
	BaseURL     string
}

// Exchange trades an authorization code for a token set. The verifier must
// be the one returned alongside the authorization URL the code came from.
func (f *Flow) Exchange(ctx context.Context, params ExchangeParams) (*Token, error) {
	redirectURI := params.RedirectURI
	if redirectURI == "" {
		redirectURI = f.cfg.RedirectURI
	}
	base := f.cfg.BaseURL
	if params.BaseURL != "" {
		base = strings.TrimSuffix(params.BaseURL, "/")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", params.Code)
	form.Set("redirect_uri", redirectURI)
	form.Set("client_id", f.cfg.ClientID)
	if f.cfg.ClientSecret != "" {
		form.Set("client_secret", f.cfg.ClientSecret)
	}
	form.Set("code_verifier", params.Verifier)

	return f.tokenRequest(ctx, base, form)
}

// RefreshParams carry a refresh request. BaseURL must name the server the
// token was issued by when that is not the configured one; a refresh token is
// only honored by its issuer.
type RefreshParams struct {
	RefreshToken string
	BaseURL      string
}

// Refresh trades a refresh token for a new token set. Some providers rotate
// the refresh token on every call, some omit it; callers persisting the
// result should merge rather than overwrite (tokenstore does this).
func (f *Flow) Refresh(ctx context.Context, params RefreshParams) (*Token, error) {
	base := f.cfg.BaseURL
	if params.BaseURL != "" {
		base = strings.TrimSuffix(params.BaseURL, "/")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", params.RefreshToken)
	form.Set("client_id", f.cfg.ClientID)
	if f.cfg.ClientSecret != "" {
		form.Set("client_secret", f.cfg.ClientSecret)
	}

	return f.tokenRequest(ctx, base, form)
}

// IsExpired reports whether a token expiring at the given instant should be
// refreshed before use. The configured buffer is applied, and a zero instant
// always counts as expired.
func (f *Flow) IsExpired(expiresAt time.Time) bool {
	if expiresAt.IsZero() {
		return true
	}
	return !expiresAt.After(f.now().Add(f.expiryBuffer))
}

func (f *Flow) tokenRequest(ctx context.Context, base string, form url.Values) (*Token, error) {
	endpoint := base + "/oauth/token"
	grantType := form.Get("grant_type")
	f.logger.Debug().Str("grant_type", grantType).Str("endpoint", endpoint).Msg("requesting token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apierror.Wrap(apierror.KindConfiguration, "building token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindNetwork, fmt.Sprintf("POST %s failed", endpoint), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindNetwork, "reading token response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logger.Debug().Str("grant_type", grantType).Int("status", resp.StatusCode).Msg("token request rejected")
		return nil, providerError(grantType, resp.StatusCode, body)
	}

	return f.parseToken(body)
}

// providerError turns a failed token endpoint response into an
// authentication error, lifting error_description or error out of a
// standard OAuth error body when one was sent.
func providerError(grantType string, status int, body []byte) *apierror.Error {
	msg := fmt.Sprintf("%s grant was rejected", grantType)
	var payload struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.ErrorDescription != "":
			msg = payload.ErrorDescription
		case payload.Error != "":
			msg = payload.Error
		}
	}
	return &apierror.Error{
		Kind:       apierror.KindAuthentication,
		Message:    msg,
		StatusCode: status,
		Body:       string(body),
	}
}

// parseToken normalizes a successful token endpoint body: expires_in becomes
// an absolute instant, the space-delimited scope string becomes a slice, and
// a missing token_type defaults to Bearer.
func (f *Flow) parseToken(body []byte) (*Token, error) {
	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
		Scope        string `json:"scope"`
		TokenType    string `json:"token_type"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &apierror.Error{
			Kind:    apierror.KindAuthentication,
			Message: "token endpoint returned a malformed body",
			Body:    string(body),
			Err:     err,
		}
	}

	tok := &Token{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		Scopes:       []string{},
		TokenType:    payload.TokenType,
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	if payload.ExpiresIn > 0 {
		tok.ExpiresAt = f.now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	if payload.Scope != "" {
		tok.Scopes = strings.Fields(payload.Scope)
	}
	return tok, nil
}
