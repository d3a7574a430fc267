package gather

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// DonationAttributes are the writable fields of a donation record. Amounts
// are integer cents; fractional currency never crosses the wire.
type DonationAttributes struct {
	AmountCents int        `json:"amount_cents,omitempty"`
	Currency    string     `json:"currency,omitempty"`
	Fund        string     `json:"fund,omitempty"`
	ReceivedAt  *time.Time `json:"received_at,omitempty"`
}

// Donation is a donation record in Gather.
type Donation struct {
	ID string
	DonationAttributes
}

func donationFromResource(res *Resource) (*Donation, error) {
	d := &Donation{ID: res.ID}
	if err := decodeAttributes(res, &d.DonationAttributes); err != nil {
		return nil, err
	}
	return d, nil
}

// ListDonations fetches donations visible to the connected account.
func (c *Client) ListDonations(ctx context.Context, identifier string, query url.Values) ([]Donation, error) {
	resources, err := c.fetchCollection(ctx, identifier, Request{Method: http.MethodGet, Path: "/donations", Query: query})
	if err != nil {
		return nil, err
	}

	donations := make([]Donation, 0, len(resources))
	for i := range resources {
		d, err := donationFromResource(&resources[i])
		if err != nil {
			return nil, err
		}
		donations = append(donations, *d)
	}
	return donations, nil
}

// GetDonation fetches one donation by id.
func (c *Client) GetDonation(ctx context.Context, identifier, id string) (*Donation, error) {
	res, err := c.fetchResource(ctx, identifier, Request{Method: http.MethodGet, Path: "/donations/" + id})
	if err != nil {
		return nil, err
	}
	return donationFromResource(res)
}

// CreateDonation records a donation.
func (c *Client) CreateDonation(ctx context.Context, identifier string, attrs DonationAttributes) (*Donation, error) {
	res, err := c.fetchResource(ctx, identifier, Request{
		Method: http.MethodPost,
		Path:   "/donations",
		Body:   resourceBody("Donation", attrs),
	})
	if err != nil {
		return nil, err
	}
	return donationFromResource(res)
}
