package market

// The negotiation lifecycle, made explicit. Wire values are the backend's
// Portuguese status strings.
//
// An offer starts ativo. When the listing window closes the winning offer
// moves to pendendo_confirmacao; both parties must then confirm, after which
// offer and item become negociado. Either party declining, or the bidder
// cancelling an active offer, ends in cancelado.

type OfferStatus string

const (
	OfferActive              OfferStatus = "ativo"
	OfferPendingConfirmation OfferStatus = "pendendo_confirmacao"
	OfferNegotiated          OfferStatus = "negociado"
	OfferCancelled           OfferStatus = "cancelado"
)

type ItemStatus string

const (
	ItemActive              ItemStatus = "ativo"
	ItemPendingConfirmation ItemStatus = "pendendo_confirmacao"
	ItemNegotiated          ItemStatus = "negociado"
	ItemCancelled           ItemStatus = "cancelado"
	ItemExpired             ItemStatus = "expired"
)

// AcceptsOffers reports whether new offers may target an item in this state.
func (s ItemStatus) AcceptsOffers() bool {
	switch s {
	case ItemCancelled, ItemNegotiated, ItemExpired:
		return false
	}
	return true
}

// Role distinguishes the two parties of a negotiation.
type Role int

const (
	RoleOwner Role = iota
	RoleBidder
)

// OfferAction is something a party can do to an offer.
type OfferAction string

const (
	ActionEdit    OfferAction = "edit"
	ActionCancel  OfferAction = "cancel"
	ActionConfirm OfferAction = "confirm"
	ActionDecline OfferAction = "decline"
)

// Allows reports whether a party in the given role may perform action on an
// offer in status s. It mirrors the server's checks so the UI can render
// actions from state instead of probing for errors.
func (s OfferStatus) Allows(action OfferAction, role Role) bool {
	switch action {
	case ActionEdit, ActionCancel:
		return s == OfferActive && role == RoleBidder
	case ActionConfirm, ActionDecline:
		return s == OfferPendingConfirmation
	}
	return false
}

// AllowedActions lists every action the role may take, in a stable order.
func AllowedActions(s OfferStatus, role Role) []OfferAction {
	var actions []OfferAction
	for _, a := range []OfferAction{ActionEdit, ActionCancel, ActionConfirm, ActionDecline} {
		if s.Allows(a, role) {
			actions = append(actions, a)
		}
	}
	return actions
}

// Next returns the status an offer lands in after action. Confirmation is
// special: it only completes once both parties have confirmed, so the caller
// passes the flags as they will be after this confirmation.
func (s OfferStatus) Next(action OfferAction, ownerConfirmed, bidderConfirmed bool) (OfferStatus, bool) {
	switch action {
	case ActionCancel:
		if s == OfferActive {
			return OfferCancelled, true
		}
	case ActionDecline:
		if s == OfferPendingConfirmation {
			return OfferCancelled, true
		}
	case ActionConfirm:
		if s == OfferPendingConfirmation {
			if ownerConfirmed && bidderConfirmed {
				return OfferNegotiated, true
			}
			return OfferPendingConfirmation, true
		}
	case ActionEdit:
		if s == OfferActive {
			return OfferActive, true
		}
	}
	return s, false
}

// RoleOf derives the caller's role in an offer's negotiation, given the
// owning item. The second return is false when the user is not a party.
func RoleOf(userID int, item *Item, offer *Offer) (Role, bool) {
	switch {
	case item != nil && userID == item.OwnerID:
		return RoleOwner, true
	case offer != nil && userID == offer.UserID:
		return RoleBidder, true
	}
	return 0, false
}
