package gather

import (
	"context"
	"net/http"
	"net/url"
)

// TagAttributes are the writable fields of a tag.
type TagAttributes struct {
	Name string `json:"name,omitempty"`
}

// Tag labels people for organizing work.
type Tag struct {
	ID string
	TagAttributes
}

func tagFromResource(res *Resource) (*Tag, error) {
	t := &Tag{ID: res.ID}
	if err := decodeAttributes(res, &t.TagAttributes); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTags fetches the account's tags.
func (c *Client) ListTags(ctx context.Context, identifier string, query url.Values) ([]Tag, error) {
	resources, err := c.fetchCollection(ctx, identifier, Request{Method: http.MethodGet, Path: "/tags", Query: query})
	if err != nil {
		return nil, err
	}

	tags := make([]Tag, 0, len(resources))
	for i := range resources {
		t, err := tagFromResource(&resources[i])
		if err != nil {
			return nil, err
		}
		tags = append(tags, *t)
	}
	return tags, nil
}

// CreateTag adds a tag.
func (c *Client) CreateTag(ctx context.Context, identifier, name string) (*Tag, error) {
	res, err := c.fetchResource(ctx, identifier, Request{
		Method: http.MethodPost,
		Path:   "/tags",
		Body:   resourceBody("Tag", TagAttributes{Name: name}),
	})
	if err != nil {
		return nil, err
	}
	return tagFromResource(res)
}

// DeleteTag removes a tag from the account.
func (c *Client) DeleteTag(ctx context.Context, identifier, id string) error {
	_, err := c.Do(ctx, identifier, Request{Method: http.MethodDelete, Path: "/tags/" + id})
	return err
}

// TagPerson applies an existing tag to a person.
func (c *Client) TagPerson(ctx context.Context, identifier, personID, tagID string) error {
	body := map[string]any{
		"data": map[string]any{"type": "Tag", "id": tagID},
	}
	_, err := c.Do(ctx, identifier, Request{
		Method: http.MethodPost,
		Path:   "/people/" + personID + "/tags",
		Body:   body,
	})
	return err
}

// UntagPerson removes a tag from a person.
func (c *Client) UntagPerson(ctx context.Context, identifier, personID, tagID string) error {
	_, err := c.Do(ctx, identifier, Request{Method: http.MethodDelete, Path: "/people/" + personID + "/tags/" + tagID})
	return err
}
