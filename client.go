package gather

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/gatherhq/gather-go/apierror"
	"github.com/gatherhq/gather-go/oauth"
	"github.com/gatherhq/gather-go/tokenstore"
)

// Client executes calls against the Gather API. Before each call it loads
// the identifier's stored token, refreshes it when stale, attaches the
// bearer header and maps the response onto the shared error taxonomy.
type Client struct {
	cfg          Config
	flow         *oauth.Flow
	store        tokenstore.Store
	httpClient   *http.Client
	timeout      time.Duration
	logger       zerolog.Logger
	now          func() time.Time
	expiryBuffer time.Duration
	userAgent    string

	refreshes singleflight.Group
}

// NewClient wires a Client from explicit parts. The caller chooses the
// token store; nothing is sniffed from the environment.
func NewClient(cfg Config, store tokenstore.Store, opts ...Option) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, apierror.New(apierror.KindConfiguration, "a token store is required")
	}

	c := &Client{
		cfg:          cfg,
		store:        store,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		logger:       zerolog.Nop(),
		now:          time.Now,
		expiryBuffer: oauth.DefaultExpiryBuffer,
		userAgent:    "gather-go/" + Version,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		// Copy before setting the timeout; an injected client belongs to
		// the caller.
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}

	flow, err := oauth.NewFlow(oauth.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		BaseURL:      cfg.OAuthBaseURL,
	},
		oauth.WithHTTPClient(c.httpClient),
		oauth.WithClock(c.now),
		oauth.WithExpiryBuffer(c.expiryBuffer),
		oauth.WithLogger(c.logger),
	)
	if err != nil {
		return nil, err
	}
	c.flow = flow

	return c, nil
}

// Flow exposes the OAuth flow engine for the authorization dance.
func (c *Client) Flow() *oauth.Flow {
	return c.flow
}

// Store exposes the token store the client was built with.
func (c *Client) Store() tokenstore.Store {
	return c.store
}

// AuthorizationURL builds the authorization redirect for connecting a new
// account. See oauth.Flow.AuthorizationURL.
func (c *Client) AuthorizationURL(params oauth.AuthorizationParams) (*oauth.Authorization, error) {
	return c.flow.AuthorizationURL(params)
}

// Authenticate exchanges an authorization code and persists the resulting
// token under the identifier, making it available to subsequent calls.
func (c *Client) Authenticate(ctx context.Context, identifier string, params oauth.ExchangeParams) (*oauth.Token, error) {
	tok, err := c.flow.Exchange(ctx, params)
	if err != nil {
		return nil, err
	}
	if err := c.store.Store(ctx, identifier, tok); err != nil {
		return nil, err
	}
	c.logger.Debug().Str("identifier", identifier).Msg("account connected")
	return tok, nil
}

// Disconnect removes the identifier's stored token. Unknown identifiers
// disconnect successfully.
func (c *Client) Disconnect(ctx context.Context, identifier string) error {
	return c.store.Delete(ctx, identifier)
}

// Do runs one API call for the identifier. Calls without a stored token go
// out unauthenticated; the API decides whether that is acceptable for the
// path.
func (c *Client) Do(ctx context.Context, identifier string, req Request) (*Response, error) {
	tok, err := c.freshToken(ctx, identifier)
	if err != nil {
		return nil, err
	}

	httpReq, err := c.buildRequest(ctx, tok, req)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	c.logger.Debug().
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("path", req.Path).
		Bool("authenticated", tok != nil).
		Msg("api request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindNetwork, fmt.Sprintf("%s %s failed", req.Method, req.Path), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindNetwork, fmt.Sprintf("reading response for %s %s", req.Method, req.Path), err)
	}

	c.logger.Debug().
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Msg("api response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apierror.FromResponse(req.Method, req.Path, resp.StatusCode, resp.Header, body, c.now())
	}

	return newResponse(resp.StatusCode, resp.Header, body), nil
}

// TokenSource adapts the stored credential for libraries that consume
// x/oauth2 token sources. Each Token call runs the same retrieve-and-refresh
// path as an API request.
func (c *Client) TokenSource(ctx context.Context, identifier string) oauth2.TokenSource {
	return &tokenSource{c: c, ctx: ctx, identifier: identifier}
}

type tokenSource struct {
	c          *Client
	ctx        context.Context
	identifier string
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	tok, err := ts.c.freshToken(ts.ctx, ts.identifier)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, apierror.Newf(apierror.KindAuthentication, "no token stored for %q", ts.identifier)
	}
	return tok.OAuth2(), nil
}

// freshToken returns a usable token record for the identifier, refreshing a
// stale one first. A nil record means no account is connected and the call
// proceeds unauthenticated.
func (c *Client) freshToken(ctx context.Context, identifier string) (*oauth.Token, error) {
	tok, err := c.store.Retrieve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, nil
	}
	if !c.flow.IsExpired(tok.ExpiresAt) {
		return tok, nil
	}
	return c.refresh(ctx, identifier)
}

// refresh funnels concurrent callers through one flight per identifier:
// exactly one performs the network refresh, the rest wait for its result.
// Providers rotate refresh tokens, so a duplicate refresh would invalidate
// the token the first one obtained. Callers holding a fresh token never
// reach this point.
func (c *Client) refresh(ctx context.Context, identifier string) (*oauth.Token, error) {
	v, err, _ := c.refreshes.Do(identifier, func() (any, error) {
		// An earlier flight may have refreshed while this caller queued.
		tok, err := c.store.Retrieve(ctx, identifier)
		if err != nil {
			return nil, err
		}
		if tok == nil {
			return (*oauth.Token)(nil), nil
		}
		if !c.flow.IsExpired(tok.ExpiresAt) {
			return tok, nil
		}

		c.logger.Debug().Str("identifier", identifier).Msg("refreshing expired token")
		fresh, err := c.flow.Refresh(ctx, oauth.RefreshParams{RefreshToken: tok.RefreshToken})
		if err != nil {
			if apierror.KindOf(err) == apierror.KindAuthentication {
				// The provider rejected the refresh token; the stored record
				// is dead weight and must not be retried.
				if delErr := c.store.Delete(ctx, identifier); delErr != nil {
					c.logger.Warn().Err(delErr).Str("identifier", identifier).Msg("could not delete rejected token")
				}
			}
			return nil, err
		}
		if err := c.store.Refresh(ctx, identifier, fresh); err != nil {
			return nil, err
		}
		// The store merged the response over the prior record; re-read so
		// callers observe exactly what was persisted, not the raw response
		// with its omitted fields.
		return c.store.Retrieve(ctx, identifier)
	})
	if err != nil {
		return nil, err
	}
	return v.(*oauth.Token), nil
}

func (c *Client) buildRequest(ctx context.Context, tok *oauth.Token, req Request) (*http.Request, error) {
	if req.Method == "" || req.Path == "" {
		return nil, apierror.New(apierror.KindConfiguration, "request method and path are required")
	}

	endpoint := strings.TrimSuffix(c.cfg.APIBaseURL, "/") + "/" + strings.TrimPrefix(req.Path, "/")
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var reqBody io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, apierror.Wrap(apierror.KindConfiguration, "encoding request body", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, reqBody)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindConfiguration, "building request", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if tok != nil {
		httpReq.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	return httpReq, nil
}
