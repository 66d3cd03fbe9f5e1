package fakeserver

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/labstack/echo/v4"
)

func offerJSON(o *offer, bidder *user) map[string]any {
	name := ""
	if bidder != nil {
		name = bidder.Username
	}
	return map[string]any{
		"id":               o.ID,
		"user_id":          o.UserID,
		"user_name":        name,
		"item_id":          o.ItemID,
		"price":            o.Price,
		"message":          o.Message,
		"status":           o.Status,
		"created_at":       o.CreatedAt,
		"owner_confirmed":  o.OwnerConfirmed,
		"bidder_confirmed": o.BidderConfirmed,
	}
}

func (s *Server) createOffer(c echo.Context) error {
	var req struct {
		ItemID  int     `json:"item_id"`
		Price   float64 `json:"price"`
		Message string  `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Missing required fields")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.currentUser(c)
	if u == nil {
		return fail(c, http.StatusUnauthorized, "Not authenticated")
	}
	it, ok := s.items[req.ItemID]
	if !ok {
		return fail(c, http.StatusNotFound, "item not found")
	}
	if it.OwnerID == u.ID {
		return fail(c, http.StatusForbidden, "You cannot make offers on your own item")
	}
	if it.Status == "cancelado" || it.Status == "negociado" || it.Status == "expired" {
		return fail(c, http.StatusBadRequest, fmt.Sprintf("Item is not available for offers (%s)", it.Status))
	}
	for _, o := range s.offers {
		if o.ItemID == it.ID && o.UserID == u.ID && o.Status == "ativo" {
			return fail(c, http.StatusBadRequest, "You have already made an offer on this item")
		}
	}

	o := &offer{
		ID:        s.allocID(),
		UserID:    u.ID,
		ItemID:    it.ID,
		Price:     req.Price,
		Message:   req.Message,
		Status:    "ativo",
		CreatedAt: now(),
	}
	s.offers[o.ID] = o

	return c.JSON(http.StatusCreated, offerJSON(o, u))
}

func (s *Server) getOffer(c echo.Context) error {
	id, _ := strconv.Atoi(c.Param("id"))

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.offers[id]
	if !ok {
		return fail(c, http.StatusNotFound, "Offer not found")
	}
	return c.JSON(http.StatusOK, offerJSON(o, s.users[o.UserID]))
}

func (s *Server) offersForItem(c echo.Context) error {
	itemID, _ := strconv.Atoi(c.Param("id"))

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.currentUser(c)
	if u == nil {
		return fail(c, http.StatusUnauthorized, "Not authenticated")
	}
	it, ok := s.items[itemID]
	if !ok {
		return fail(c, http.StatusNotFound, "item not found")
	}
	if it.OwnerID != u.ID {
		return fail(c, http.StatusForbidden, "Not authorized")
	}

	var out []map[string]any
	for _, o := range sortedOffers(s.offers) {
		if o.ItemID == itemID {
			out = append(out, offerJSON(o, s.users[o.UserID]))
		}
	}
	if out == nil {
		out = []map[string]any{}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) myOffers(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.currentUser(c)
	if u == nil {
		return fail(c, http.StatusUnauthorized, "Not authenticated")
	}

	out := []map[string]any{}
	for _, o := range sortedOffers(s.offers) {
		if o.UserID != u.ID {
			continue
		}
		entry := map[string]any{"offer": offerJSON(o, u)}
		if it, ok := s.items[o.ItemID]; ok {
			entry["item"] = itemJSON(it, s.users[it.OwnerID])
		}
		out = append(out, entry)
	}
	return c.JSON(http.StatusOK, out)
}

func sortedOffers(offers map[int]*offer) []*offer {
	out := make([]*offer, 0, len(offers))
	for _, o := range offers {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) updateOffer(c echo.Context) error {
	id, _ := strconv.Atoi(c.Param("id"))

	var req struct {
		Price   *float64 `json:"price"`
		Message *string  `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "No valid fields to update")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.currentUser(c)
	if u == nil {
		return fail(c, http.StatusUnauthorized, "Not authenticated")
	}
	o, ok := s.offers[id]
	if !ok {
		return fail(c, http.StatusNotFound, "Offer not found")
	}
	if o.UserID != u.ID {
		return fail(c, http.StatusForbidden, "You are not allowed to edit this offer")
	}
	if o.Status != "ativo" {
		return fail(c, http.StatusConflict, fmt.Sprintf("Offer cannot be edited (status: %s)", o.Status))
	}
	if it, ok := s.items[o.ItemID]; ok {
		if it.Status == "cancelado" || it.Status == "negociado" || it.Status == "expired" {
			return fail(c, http.StatusConflict, fmt.Sprintf("Item no longer accepts negotiation (%s)", it.Status))
		}
	}
	if req.Price == nil && req.Message == nil {
		return fail(c, http.StatusBadRequest, "No valid fields to update")
	}

	if req.Price != nil {
		o.Price = *req.Price
	}
	if req.Message != nil {
		o.Message = *req.Message
	}
	return c.JSON(http.StatusOK, offerJSON(o, u))
}

func (s *Server) cancelOffer(c echo.Context) error {
	id, _ := strconv.Atoi(c.Param("id"))

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.currentUser(c)
	if u == nil {
		return fail(c, http.StatusUnauthorized, "Not authenticated")
	}
	o, ok := s.offers[id]
	if !ok {
		return fail(c, http.StatusNotFound, "Offer not found")
	}
	if o.UserID != u.ID {
		return fail(c, http.StatusForbidden, "You can only cancel your own offers")
	}
	if o.Status != "ativo" {
		return fail(c, http.StatusBadRequest, "Offer is not active and thus cant be cancelled")
	}

	o.Status = "cancelado"
	return c.JSON(http.StatusOK, map[string]any{
		"message":  "Offer cancelled successfully",
		"offer_id": o.ID,
	})
}

// pendingOffer resolves the offer and the caller's side of a negotiation
// action. Callers hold s.mu. A non-nil echo error means the request was
// already answered.
func (s *Server) pendingOffer(c echo.Context, id int) (*offer, *item, bool, error) {
	u := s.currentUser(c)
	if u == nil {
		return nil, nil, false, fail(c, http.StatusUnauthorized, "Not authenticated")
	}
	o, ok := s.offers[id]
	if !ok {
		return nil, nil, false, fail(c, http.StatusNotFound, "Offer not found")
	}
	if o.Status != "pendendo_confirmacao" {
		return nil, nil, false, fail(c, http.StatusBadRequest, "Offer is not pending confirmation")
	}
	it := s.items[o.ItemID]

	isOwner := it != nil && it.OwnerID == u.ID
	isBidder := o.UserID == u.ID
	if !isOwner && !isBidder {
		return nil, nil, false, fail(c, http.StatusForbidden, "You are not part of this negotiation")
	}
	return o, it, isOwner, nil
}

func (s *Server) confirmOffer(c echo.Context) error {
	id, _ := strconv.Atoi(c.Param("id"))

	s.mu.Lock()
	defer s.mu.Unlock()

	o, it, isOwner, err := s.pendingOffer(c, id)
	if err != nil {
		return err
	}

	if isOwner {
		o.OwnerConfirmed = true
	} else {
		o.BidderConfirmed = true
	}

	if o.OwnerConfirmed && o.BidderConfirmed {
		o.Status = "negociado"
		if it != nil {
			it.Status = "negociado"
		}
		return c.JSON(http.StatusOK, map[string]string{
			"message": "Negotiation finalized successfully.",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Your confirmation was recorded. Waiting for the other party.",
	})
}

func (s *Server) declineOffer(c echo.Context) error {
	id, _ := strconv.Atoi(c.Param("id"))

	s.mu.Lock()
	defer s.mu.Unlock()

	o, it, _, err := s.pendingOffer(c, id)
	if err != nil {
		return err
	}

	o.Status = "cancelado"
	if it != nil {
		it.Status = "cancelado"
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Negotiation cancelled successfully.",
	})
}
