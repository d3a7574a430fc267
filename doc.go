// Package gather is a Go client for the Gather community-organizing API.
//
// The client covers the OAuth 2.0 authorization code flow with PKCE,
// pluggable token persistence (memory, Redis, relational, MongoDB) and an
// HTTP layer that attaches and refreshes credentials automatically. When
// concurrent requests find the same account's token expired, exactly one
// refresh hits the provider and every caller reuses its result.
//
// Connecting an account:
//
//	client, err := gather.NewClient(gather.Config{
//		ClientID:     clientID,
//		ClientSecret: clientSecret,
//		RedirectURI:  "https://app.example/callback",
//		APIBaseURL:   "https://api.gather.example/v2",
//		OAuthBaseURL: "https://auth.gather.example",
//	}, tokenstore.NewMemoryStore())
//	if err != nil {
//		// ...
//	}
//
//	auth, err := client.AuthorizationURL(oauth.AuthorizationParams{
//		Scopes: []string{"people:read"},
//	})
//	// redirect the user to auth.URL, then on the callback:
//	_, err = client.Authenticate(ctx, "default", oauth.ExchangeParams{
//		Code:     code,
//		Verifier: auth.Verifier,
//	})
//
// Calling the API:
//
//	people, err := client.ListPeople(ctx, "default", nil)
//
// Failures carry a kind from the apierror package; transient kinds report
// Retryable() true, and rate limits expose the instant to retry at.
package gather

// Version is the client library version, reported in the User-Agent header.
const Version = "0.1.0"
