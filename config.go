package gather

import (
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/gatherhq/gather-go/apierror"
)

const defaultTimeout = 30 * time.Second

// Config identifies the client application and where the Gather API lives.
// OAuthBaseURL is configured on its own, never derived from APIBaseURL, so
// API hosts with unconventional path layouts cannot break token requests.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	APIBaseURL   string // e.g. https://api.gather.example/v2
	OAuthBaseURL string // e.g. https://auth.gather.example
}

func (c Config) validate() error {
	if c.ClientID == "" {
		return apierror.New(apierror.KindConfiguration, "client id is required")
	}
	if err := checkURL("api base url", c.APIBaseURL); err != nil {
		return err
	}
	return checkURL("oauth base url", c.OAuthBaseURL)
}

func checkURL(name, raw string) error {
	if raw == "" {
		return apierror.Newf(apierror.KindConfiguration, "%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return apierror.Newf(apierror.KindConfiguration, "%s %q is not an absolute url", name, raw)
	}
	return nil
}

// Option customizes a Client beyond the required Config.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. Its timeout bounds every
// network call the client makes, token endpoint traffic included.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every network call the client makes. It is applied
// after all options have run, so its order relative to WithHTTPClient does
// not matter, and an injected client is never mutated.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger attaches a logger. Without it the client is silent.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithClock replaces time.Now for expiry decisions and retry-after
// computation.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithExpiryBuffer overrides how long before actual expiry a token is
// refreshed.
func WithExpiryBuffer(d time.Duration) Option {
	return func(c *Client) {
		c.expiryBuffer = d
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}
