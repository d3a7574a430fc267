package gather

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Resource is one JSON:API resource object: an id, a type and a bag of
// attributes.
type Resource struct {
	ID            string                  `json:"id"`
	Type          string                  `json:"type"`
	Attributes    map[string]any          `json:"attributes"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
}

// Relationship references related resources without embedding them.
type Relationship struct {
	Data json.RawMessage `json:"data"`
}

// Attr returns a named attribute, nil when absent.
func (r *Resource) Attr(name string) any {
	if r.Attributes == nil {
		return nil
	}
	return r.Attributes[name]
}

// StringAttr returns a string attribute, "" when absent or not a string.
func (r *Resource) StringAttr(name string) string {
	s, _ := r.Attr(name).(string)
	return s
}

// Document is a typed view over a JSON:API response body. Known fields get
// named accessors; everything else is reachable through Dig.
type Document struct {
	Data     json.RawMessage `json:"data"`
	Included []Resource      `json:"included"`
	Meta     map[string]any  `json:"meta"`

	raw []byte
}

// ParseDocument reads a JSON:API document from a response body.
func ParseDocument(body []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	doc.raw = body
	return &doc, nil
}

// Resource returns the document's primary data as a single resource. An
// absent data member and a literal null both count as no data.
func (d *Document) Resource() (*Resource, error) {
	if len(d.Data) == 0 || string(d.Data) == "null" {
		return nil, fmt.Errorf("document has no data")
	}
	var res Resource
	if err := json.Unmarshal(d.Data, &res); err != nil {
		return nil, fmt.Errorf("document data is not a single resource: %w", err)
	}
	return &res, nil
}

// Resources returns the document's primary data as a collection.
func (d *Document) Resources() ([]Resource, error) {
	if len(d.Data) == 0 || string(d.Data) == "null" {
		return nil, nil
	}
	var list []Resource
	if err := json.Unmarshal(d.Data, &list); err != nil {
		return nil, fmt.Errorf("document data is not a collection: %w", err)
	}
	return list, nil
}

// Dig returns the value at a dotted path anywhere in the document.
func (d *Document) Dig(path string) gjson.Result {
	return gjson.GetBytes(d.raw, path)
}

// resourceBody wraps attributes in a JSON:API request envelope.
func resourceBody(resourceType string, attributes any) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"type":       resourceType,
			"attributes": attributes,
		},
	}
}

// decodeAttributes fills a typed struct from a resource's attribute bag.
func decodeAttributes(res *Resource, out any) error {
	payload, err := json.Marshal(res.Attributes)
	if err != nil {
		return fmt.Errorf("encoding attributes: %w", err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decoding attributes: %w", err)
	}
	return nil
}
