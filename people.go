package gather

import (
	"context"
	"net/http"
	"net/url"
)

// PersonAttributes are the writable fields of a person record.
type PersonAttributes struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Person is a person record in Gather.
type Person struct {
	ID string
	PersonAttributes
}

func personFromResource(res *Resource) (*Person, error) {
	p := &Person{ID: res.ID}
	if err := decodeAttributes(res, &p.PersonAttributes); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPeople fetches the people visible to the connected account. Query
// parameters (filters, ordering) pass through untouched.
func (c *Client) ListPeople(ctx context.Context, identifier string, query url.Values) ([]Person, error) {
	resources, err := c.fetchCollection(ctx, identifier, Request{Method: http.MethodGet, Path: "/people", Query: query})
	if err != nil {
		return nil, err
	}

	people := make([]Person, 0, len(resources))
	for i := range resources {
		p, err := personFromResource(&resources[i])
		if err != nil {
			return nil, err
		}
		people = append(people, *p)
	}
	return people, nil
}

// GetPerson fetches one person by id.
func (c *Client) GetPerson(ctx context.Context, identifier, id string) (*Person, error) {
	res, err := c.fetchResource(ctx, identifier, Request{Method: http.MethodGet, Path: "/people/" + id})
	if err != nil {
		return nil, err
	}
	return personFromResource(res)
}

// CreatePerson adds a person record.
func (c *Client) CreatePerson(ctx context.Context, identifier string, attrs PersonAttributes) (*Person, error) {
	res, err := c.fetchResource(ctx, identifier, Request{
		Method: http.MethodPost,
		Path:   "/people",
		Body:   resourceBody("Person", attrs),
	})
	if err != nil {
		return nil, err
	}
	return personFromResource(res)
}

// UpdatePerson changes the given fields of a person record.
func (c *Client) UpdatePerson(ctx context.Context, identifier, id string, attrs PersonAttributes) (*Person, error) {
	res, err := c.fetchResource(ctx, identifier, Request{
		Method: http.MethodPatch,
		Path:   "/people/" + id,
		Body:   resourceBody("Person", attrs),
	})
	if err != nil {
		return nil, err
	}
	return personFromResource(res)
}

// DeletePerson removes a person record.
func (c *Client) DeletePerson(ctx context.Context, identifier, id string) error {
	_, err := c.Do(ctx, identifier, Request{Method: http.MethodDelete, Path: "/people/" + id})
	return err
}
