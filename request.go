package gather

import (
	"context"
	"net/http"
	"net/url"
)

// Request describes one API call. Path is joined to the configured API base
// URL; Body, when non-nil, is marshaled as JSON.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
}

// Get runs a GET request.
func (c *Client) Get(ctx context.Context, identifier, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, identifier, Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post runs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, identifier, path string, body any) (*Response, error) {
	return c.Do(ctx, identifier, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Patch runs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, identifier, path string, body any) (*Response, error) {
	return c.Do(ctx, identifier, Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete runs a DELETE request.
func (c *Client) Delete(ctx context.Context, identifier, path string) (*Response, error) {
	return c.Do(ctx, identifier, Request{Method: http.MethodDelete, Path: path})
}

// fetchResource runs a request and decodes the response's primary resource.
func (c *Client) fetchResource(ctx context.Context, identifier string, req Request) (*Resource, error) {
	resp, err := c.Do(ctx, identifier, req)
	if err != nil {
		return nil, err
	}
	doc, err := resp.Document()
	if err != nil {
		return nil, err
	}
	return doc.Resource()
}

// fetchCollection runs a request and decodes the response's resource list.
func (c *Client) fetchCollection(ctx context.Context, identifier string, req Request) ([]Resource, error) {
	resp, err := c.Do(ctx, identifier, req)
	if err != nil {
		return nil, err
	}
	doc, err := resp.Document()
	if err != nil {
		return nil, err
	}
	return doc.Resources()
}
