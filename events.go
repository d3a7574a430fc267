package gather

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// EventAttributes are the writable fields of an event record.
type EventAttributes struct {
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
}

// Event is an organizing event in Gather.
type Event struct {
	ID string
	EventAttributes
}

func eventFromResource(res *Resource) (*Event, error) {
	e := &Event{ID: res.ID}
	if err := decodeAttributes(res, &e.EventAttributes); err != nil {
		return nil, err
	}
	return e, nil
}

// ListEvents fetches events visible to the connected account.
func (c *Client) ListEvents(ctx context.Context, identifier string, query url.Values) ([]Event, error) {
	resources, err := c.fetchCollection(ctx, identifier, Request{Method: http.MethodGet, Path: "/events", Query: query})
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(resources))
	for i := range resources {
		e, err := eventFromResource(&resources[i])
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, nil
}

// GetEvent fetches one event by id.
func (c *Client) GetEvent(ctx context.Context, identifier, id string) (*Event, error) {
	res, err := c.fetchResource(ctx, identifier, Request{Method: http.MethodGet, Path: "/events/" + id})
	if err != nil {
		return nil, err
	}
	return eventFromResource(res)
}

// CreateEvent adds an event.
func (c *Client) CreateEvent(ctx context.Context, identifier string, attrs EventAttributes) (*Event, error) {
	res, err := c.fetchResource(ctx, identifier, Request{
		Method: http.MethodPost,
		Path:   "/events",
		Body:   resourceBody("Event", attrs),
	})
	if err != nil {
		return nil, err
	}
	return eventFromResource(res)
}

// UpdateEvent changes the given fields of an event.
func (c *Client) UpdateEvent(ctx context.Context, identifier, id string, attrs EventAttributes) (*Event, error) {
	res, err := c.fetchResource(ctx, identifier, Request{
		Method: http.MethodPatch,
		Path:   "/events/" + id,
		Body:   resourceBody("Event", attrs),
	})
	if err != nil {
		return nil, err
	}
	return eventFromResource(res)
}

// DeleteEvent removes an event.
func (c *Client) DeleteEvent(ctx context.Context, identifier, id string) error {
	_, err := c.Do(ctx, identifier, Request{Method: http.MethodDelete, Path: "/events/" + id})
	return err
}
