// Package market holds the domain-facing API of the SDK: thin services over
// the transport client for authentication, item listings, offer negotiation,
// and location lookups.
package market

import "github.com/troca-app/troca-go/httpx"

type Client struct {
	Auth      *AuthService
	Items     *ItemsService
	Offers    *OffersService
	Locations *LocationsService
}

func New(h *httpx.Client) *Client {
	return &Client{
		Auth:      &AuthService{http: h},
		Items:     &ItemsService{http: h},
		Offers:    &OffersService{http: h},
		Locations: &LocationsService{http: h},
	}
}
