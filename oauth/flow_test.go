package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherhq/gather-go/apierror"
)

func testFlow(t *testing.T, cfg Config, opts ...Option) *Flow {
	t.Helper()
	f, err := NewFlow(cfg, opts...)
	require.NoError(t, err)
	return f
}

func TestNewFlowValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing client id", Config{BaseURL: "https://auth.gather.example"}},
		{"missing base url", Config{ClientID: "c1"}},
		{"relative base url", Config{ClientID: "c1", BaseURL: "auth.gather.example"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFlow(tt.cfg)
			require.Error(t, err)
			assert.Equal(t, apierror.KindConfiguration, apierror.KindOf(err))
		})
	}
}

func TestAuthorizationURL(t *testing.T) {
	f := testFlow(t, Config{
		ClientID:    "c1",
		RedirectURI: "https://app.example/callback",
		BaseURL:     "https://auth.gather.example",
	})

	auth, err := f.AuthorizationURL(AuthorizationParams{Scopes: []string{"people:read"}})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(auth.URL, "https://auth.gather.example/oauth/authorize?"))
	assert.Contains(t, auth.URL, "client_id=c1")
	assert.Contains(t, auth.URL, "code_challenge=")
	assert.Contains(t, auth.URL, "code_challenge_method=S256")
	assert.Contains(t, auth.URL, "scope=people%3Aread")

	u, err := url.Parse(auth.URL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "https://app.example/callback", q.Get("redirect_uri"))
	assert.Equal(t, ChallengeS256(auth.Verifier), q.Get("code_challenge"))
	assert.Equal(t, auth.State, q.Get("state"))
	assert.Len(t, auth.Verifier, 64)
	assert.Len(t, auth.State, 43)
}

func TestAuthorizationURLSuppliedVerifierAndState(t *testing.T) {
	f := testFlow(t, Config{ClientID: "c1", BaseURL: "https://auth.gather.example"})

	auth, err := f.AuthorizationURL(AuthorizationParams{
		Verifier: "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk",
		State:    "fixed-state",
	})
	require.NoError(t, err)

	u, err := url.Parse(auth.URL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", q.Get("code_challenge"))
	assert.Equal(t, "fixed-state", q.Get("state"))
	assert.Equal(t, "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk", auth.Verifier)
}

func TestAuthorizationURLOmitsEmptyScope(t *testing.T) {
	f := testFlow(t, Config{ClientID: "c1", BaseURL: "https://auth.gather.example"})

	auth, err := f.AuthorizationURL(AuthorizationParams{})
	require.NoError(t, err)

	u, err := url.Parse(auth.URL)
	require.NoError(t, err)
	assert.False(t, u.Query().Has("scope"))
}

func TestAuthorizationURLBaseOverride(t *testing.T) {
	f := testFlow(t, Config{ClientID: "c1", BaseURL: "https://auth.gather.example"})

	auth, err := f.AuthorizationURL(AuthorizationParams{BaseURL: "https://sandbox.gather.example/"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(auth.URL, "https://sandbox.gather.example/oauth/authorize?"))
}

func TestExchange(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var gotForm url.Values

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/oauth/token", r.URL.Path)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at1",
			"refresh_token": "rt1",
			"expires_in":    3600,
			"scope":         "people:read events:write",
			"token_type":    "bearer",
		})
	}))
	defer srv.Close()

	f := testFlow(t, Config{
		ClientID:     "c1",
		ClientSecret: "s1",
		RedirectURI:  "https://app.example/callback",
		BaseURL:      srv.URL,
	}, WithClock(func() time.Time { return now }))

	tok, err := f.Exchange(context.Background(), ExchangeParams{Code: "code1", Verifier: "verifier1"})
	require.NoError(t, err)

	assert.Equal(t, "authorization_code", gotForm.Get("grant_type"))
	assert.Equal(t, "code1", gotForm.Get("code"))
	assert.Equal(t, "verifier1", gotForm.Get("code_verifier"))
	assert.Equal(t, "c1", gotForm.Get("client_id"))
	assert.Equal(t, "s1", gotForm.Get("client_secret"))
	assert.Equal(t, "https://app.example/callback", gotForm.Get("redirect_uri"))

	assert.Equal(t, "at1", tok.AccessToken)
	assert.Equal(t, "rt1", tok.RefreshToken)
	assert.Equal(t, []string{"people:read", "events:write"}, tok.Scopes)
	assert.Equal(t, "bearer", tok.TokenType)
	assert.True(t, tok.ExpiresAt.Equal(now.Add(time.Hour)))
}

func TestExchangeDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at1","refresh_token":"rt1","expires_in":3600}`))
	}))
	defer srv.Close()

	f := testFlow(t, Config{ClientID: "c1", BaseURL: srv.URL})
	tok, err := f.Exchange(context.Background(), ExchangeParams{Code: "code1", Verifier: "v"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer", tok.TokenType)
	require.NotNil(t, tok.Scopes)
	assert.Empty(t, tok.Scopes)
}

func TestExchangeProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"authorization code expired"}`))
	}))
	defer srv.Close()

	f := testFlow(t, Config{ClientID: "c1", BaseURL: srv.URL})
	_, err := f.Exchange(context.Background(), ExchangeParams{Code: "stale", Verifier: "v"})
	require.Error(t, err)

	var apiErr *apierror.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, apierror.KindAuthentication, apiErr.Kind)
	assert.Equal(t, "authorization code expired", apiErr.Message)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "invalid_grant")
}

func TestExchangeMalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	f := testFlow(t, Config{ClientID: "c1", BaseURL: srv.URL})
	_, err := f.Exchange(context.Background(), ExchangeParams{Code: "c", Verifier: "v"})
	require.Error(t, err)
	assert.Equal(t, apierror.KindAuthentication, apierror.KindOf(err))
}

func TestRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt1", r.PostForm.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at2","refresh_token":"rt2","expires_in":3600,"scope":"people:read"}`))
	}))
	defer srv.Close()

	f := testFlow(t, Config{ClientID: "c1", BaseURL: srv.URL})
	tok, err := f.Refresh(context.Background(), RefreshParams{RefreshToken: "rt1"})
	require.NoError(t, err)

	assert.Equal(t, "at2", tok.AccessToken)
	assert.Equal(t, "rt2", tok.RefreshToken)
	assert.Equal(t, []string{"people:read"}, tok.Scopes)
}

func TestRefreshBaseOverride(t *testing.T) {
	var defaultHits int
	defaultSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defaultHits++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"default-at","expires_in":3600}`))
	}))
	defer defaultSrv.Close()

	var tenantForms []url.Values
	tenantSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		tenantForms = append(tenantForms, r.PostForm)
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("grant_type") == "authorization_code" {
			w.Write([]byte(`{"access_token":"tenant-at1","refresh_token":"tenant-rt1","expires_in":3600}`))
			return
		}
		w.Write([]byte(`{"access_token":"tenant-at2","refresh_token":"tenant-rt2","expires_in":3600}`))
	}))
	defer tenantSrv.Close()

	f := testFlow(t, Config{ClientID: "c1", BaseURL: defaultSrv.URL})

	// A token exchanged against a tenant server must refresh against that
	// same server, not the configured default.
	tok, err := f.Exchange(context.Background(), ExchangeParams{Code: "code1", Verifier: "v", BaseURL: tenantSrv.URL})
	require.NoError(t, err)

	refreshed, err := f.Refresh(context.Background(), RefreshParams{RefreshToken: tok.RefreshToken, BaseURL: tenantSrv.URL + "/"})
	require.NoError(t, err)

	assert.Equal(t, "tenant-at2", refreshed.AccessToken)
	require.Len(t, tenantForms, 2)
	assert.Equal(t, "refresh_token", tenantForms[1].Get("grant_type"))
	assert.Equal(t, "tenant-rt1", tenantForms[1].Get("refresh_token"))
	assert.Zero(t, defaultHits)
}

func TestRefreshAgainstUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	f := testFlow(t, Config{ClientID: "c1", BaseURL: srv.URL})
	_, err := f.Refresh(context.Background(), RefreshParams{RefreshToken: "rt1"})
	require.Error(t, err)
	assert.Equal(t, apierror.KindNetwork, apierror.KindOf(err))
	assert.True(t, apierror.IsRetryable(err))
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f := testFlow(t,
		Config{ClientID: "c1", BaseURL: "https://auth.gather.example"},
		WithClock(func() time.Time { return now }),
	)

	tests := []struct {
		name      string
		expiresAt time.Time
		expired   bool
	}{
		{"zero time", time.Time{}, true},
		{"already past", now.Add(-10 * time.Second), true},
		{"inside buffer", now.Add(30 * time.Second), true},
		{"exactly at buffer", now.Add(60 * time.Second), true},
		{"just outside buffer", now.Add(61 * time.Second), false},
		{"comfortably fresh", now.Add(time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expired, f.IsExpired(tt.expiresAt))
		})
	}
}
