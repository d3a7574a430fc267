package gather

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// Response is a success response, normalized once at the transport boundary.
type Response struct {
	StatusCode int
	Header     http.Header
	Raw        []byte

	value any
}

func newResponse(status int, header http.Header, body []byte) *Response {
	return &Response{
		StatusCode: status,
		Header:     header,
		Raw:        body,
		value:      normalizeBody(body),
	}
}

// normalizeBody interprets a success body: empty becomes nil, JSON decodes
// to a generic value, and anything else stays the raw string. Some endpoints
// legitimately return plain text, so a parse failure is not an error.
func normalizeBody(body []byte) any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return string(body)
	}
	return v
}

// Value returns the normalized body. A nil Response has a nil value, so
// callers can use it without checking for the empty-body case first.
func (r *Response) Value() any {
	if r == nil {
		return nil
	}
	return r.value
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Raw, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

// Dig returns the value at a dotted path in the body, for the fields the
// typed views do not name. The result's Exists method distinguishes a null
// value from an absent one.
func (r *Response) Dig(path string) gjson.Result {
	return gjson.GetBytes(r.Raw, path)
}

// Document parses the body as a JSON:API document.
func (r *Response) Document() (*Document, error) {
	return ParseDocument(r.Raw)
}
