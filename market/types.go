package market

// Timestamps stay strings: the backend emits naive ISO-8601 without a zone,
// which time.Time refuses to parse.

type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	CreatedAt string `json:"created_at"`
}

// ItemImage is one gallery entry of an item; Position drives display order.
type ItemImage struct {
	ID       int    `json:"id"`
	URL      string `json:"url"`
	Position int    `json:"position"`
}

type Item struct {
	ID            int         `json:"id"`
	OwnerID       int         `json:"owner_id"`
	OwnerUsername string      `json:"owner_username"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Category      string      `json:"category"`
	ImageURL      string      `json:"image_url"`
	Images        []ItemImage `json:"images"`
	OfferType     string      `json:"offer_type"`
	Volume        float64     `json:"volume"`
	Location      string      `json:"location"`
	DurationDays  int         `json:"duration_days"`
	CreatedAt     string      `json:"created_at"`
	Status        ItemStatus  `json:"status"`
	ExpiresAt     string      `json:"expires_at"`
}

// Offer is a negotiation proposal against a listed item. Price is signed:
// positive means the bidder pays, negative means the bidder is paid, zero is
// a free handover.
type Offer struct {
	ID              int         `json:"id"`
	UserID          int         `json:"user_id"`
	UserName        string      `json:"user_name"`
	ItemID          int         `json:"item_id"`
	Price           float64     `json:"price"`
	Message         string      `json:"message"`
	Status          OfferStatus `json:"status"`
	CreatedAt       string      `json:"created_at"`
	OwnerConfirmed  bool        `json:"owner_confirmed"`
	BidderConfirmed bool        `json:"bidder_confirmed"`
}

// MyOffer pairs an offer with its item for dashboard rendering.
type MyOffer struct {
	Offer Offer `json:"offer"`
	Item  *Item `json:"item"`
}

type ItemPage struct {
	Items      []Item `json:"items"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalItems int    `json:"total_items"`
	TotalPages int    `json:"total_pages"`
}
