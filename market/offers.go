package market

import (
	"context"
	"fmt"
	"net/http"

	"github.com/troca-app/troca-go/httpx"
)

type OffersService struct {
	http *httpx.Client
}

func (s *OffersService) Create(ctx context.Context, itemID int, price float64, message string) (*Offer, error) {
	body := map[string]any{
		"item_id": itemID,
		"price":   price,
	}
	if message != "" {
		body["message"] = message
	}

	var offer Offer
	_, err := s.http.Request(ctx, "/offers/", true,
		httpx.WithMethod(http.MethodPost),
		httpx.WithBody(body),
		httpx.WithResult(&offer))
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (s *OffersService) Get(ctx context.Context, id int) (*Offer, error) {
	var offer Offer
	_, err := s.http.Get(ctx, fmt.Sprintf("/offers/%d", id), nil, true, httpx.WithResult(&offer))
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

// ForItem lists every offer made on one item. The server only answers this
// for the item's owner.
func (s *OffersService) ForItem(ctx context.Context, itemID int) ([]Offer, error) {
	var offers []Offer
	_, err := s.http.Get(ctx, fmt.Sprintf("/offers/item/%d", itemID), nil, true, httpx.WithResult(&offers))
	if err != nil {
		return nil, err
	}
	return offers, nil
}

// Mine lists the logged-in user's offers, each paired with its item.
func (s *OffersService) Mine(ctx context.Context) ([]MyOffer, error) {
	var offers []MyOffer
	_, err := s.http.Get(ctx, "/offers/my", nil, true, httpx.WithResult(&offers))
	if err != nil {
		return nil, err
	}
	return offers, nil
}

// Update changes the price or message of an active offer. Nil fields are
// left untouched; at least one must be set or the server rejects the call.
func (s *OffersService) Update(ctx context.Context, id int, price *float64, message *string) (*Offer, error) {
	body := map[string]any{}
	if price != nil {
		body["price"] = *price
	}
	if message != nil {
		body["message"] = *message
	}

	var offer Offer
	_, err := s.http.Request(ctx, fmt.Sprintf("/offers/%d", id), true,
		httpx.WithMethod(http.MethodPut),
		httpx.WithBody(body),
		httpx.WithResult(&offer))
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

// Cancel withdraws an active offer. Only the bidder may do this.
func (s *OffersService) Cancel(ctx context.Context, id int) error {
	_, err := s.http.Request(ctx, fmt.Sprintf("/offers/%d/cancel", id), true,
		httpx.WithMethod(http.MethodPatch))
	return err
}

// NegotiationResult carries the server's outcome message for a confirm or
// decline. The backend reports no status field; callers that need the
// resulting state re-fetch the offer.
type NegotiationResult struct {
	Message string `json:"message"`
}

// Confirm records one party's agreement to a pending negotiation. Once both
// parties have confirmed the offer and its item become negotiated.
func (s *OffersService) Confirm(ctx context.Context, id int) (*NegotiationResult, error) {
	var result NegotiationResult
	_, err := s.http.Request(ctx, fmt.Sprintf("/offers/%d/confirm", id), true,
		httpx.WithMethod(http.MethodPatch),
		httpx.WithBody(map[string]string{"action": string(ActionConfirm)}),
		httpx.WithResult(&result))
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Decline rejects a pending negotiation for either party, cancelling the
// offer and the item with it.
func (s *OffersService) Decline(ctx context.Context, id int) (*NegotiationResult, error) {
	var result NegotiationResult
	_, err := s.http.Request(ctx, fmt.Sprintf("/offers/%d/decline", id), true,
		httpx.WithMethod(http.MethodPatch),
		httpx.WithResult(&result))
	if err != nil {
		return nil, err
	}
	return &result, nil
}
