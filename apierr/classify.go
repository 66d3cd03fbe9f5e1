package apierr

import (
	"errors"
	"net"
	"net/url"
	"strings"
)

// Notice is what gets shown to the user: a title, a message, and an optional
// recovery action (text + target).
type Notice struct {
	Title      string
	Message    string
	ActionText string
	ActionHref string
}

// Presenter displays a Notice. It is fire and forget: the client never reads
// anything back from it and always propagates the original failure.
type Presenter func(Notice)

// LoginPath is where the "not authenticated" recovery action points.
const LoginPath = "/login.html"

var notLoggedIn = Notice{
	Title:      "Not Logged In",
	Message:    "You need to log in to continue.",
	ActionText: "Go to Login",
	ActionHref: LoginPath,
}

// rule matches a known server message within one status bucket. Rules are
// checked in declaration order; the first substring hit wins, so specific
// messages must come before broader ones.
type rule struct {
	status   int
	contains string
	notice   Notice
}

var rules = []rule{
	{400, "Offer is not pending confirmation", Notice{Title: "Offer is not pending confirmation", Message: "Offer is not pending confirmation"}},
	{400, "Offer is not active and thus cant be cancelled", Notice{Title: "Cannot Cancel Offer", Message: "Only active offers can be cancelled."}},
	{400, "Item is not available for offers", Notice{Title: "Item Unavailable", Message: "This item is not currently open for new offers."}},
	{400, "already made an offer", Notice{Title: "Duplicate Offer", Message: "You have already made an active offer for this item."}},
	{400, "Invalid duration", Notice{Title: "Invalid Duration", Message: "Duration must be one of: 1, 7, 15, or 30 days."}},
	{400, "Missing required fields", Notice{Title: "Invalid Input", Message: "Please fill out all required fields before continuing."}},

	{401, "Invalid credentials", Notice{Title: "Invalid Login", Message: "The username or password you entered is incorrect."}},

	{403, "You are not part of this negotiation", Notice{Title: "Not Allowed", Message: "You are not part of this negotiation"}},
	{403, "You cannot make offers on your own item", Notice{Title: "Not Allowed", Message: "You cannot place an offer on your own item."}},
	{403, "You can only cancel your own offers", Notice{Title: "Not Allowed", Message: "You cannot cancel offers made by other users."}},

	{404, "Offer not found", Notice{Title: "Offer Not Found", Message: "The offer you are trying to access does not exist or may have been removed."}},
	{404, "item not found", Notice{Title: "Item Not Found", Message: "The item you are trying to access does not exist or may have been removed."}},

	{409, "Offer cannot be edited", Notice{Title: "Offer cannot be edited", Message: "The offer you are trying to access cannot be edited"}},
	{409, "Item no longer accepts negotiation", Notice{Title: "Item no longer accepts negotiation", Message: "The Item you are trying to access no longer accepts negotiation"}},
	{409, "Username or email already taken", Notice{Title: "Account Conflict", Message: "This username or email is already in use. Try another."}},
}

// fallbacks per status bucket, used when no substring rule matches.
var fallbacks = map[int]Notice{
	400: {Title: "Invalid Input", Message: "Some information you entered is not valid."},
	401: notLoggedIn,
	403: {Title: "Unauthorized", Message: "You don't have permission to perform this action."},
	404: {Title: "Not Found", Message: "The requested resource does not exist."},
	409: {Title: "Account Conflict", Message: "A conflict occurred with the data you entered."},
	415: {Title: "Invalid Image", Message: "The selected file is not a supported image type."},
	500: {Title: "Server Error", Message: "The server encountered a problem. Try again later."},
}

// codeRules map machine-readable error codes to notices. When the backend
// sends a code it takes priority over substring sniffing.
var codeRules = map[string]Notice{
	"invalid_credentials": {Title: "Invalid Login", Message: "The username or password you entered is incorrect."},
	"not_authenticated":   notLoggedIn,
	"duplicate_offer":     {Title: "Duplicate Offer", Message: "You have already made an active offer for this item."},
	"item_unavailable":    {Title: "Item Unavailable", Message: "This item is not currently open for new offers."},
	"account_conflict":    {Title: "Account Conflict", Message: "This username or email is already in use. Try another."},
	"unsupported_media":   {Title: "Invalid Image", Message: "The selected file is not a supported image type."},
	"offer_not_editable":  {Title: "Offer cannot be edited", Message: "The offer you are trying to access cannot be edited"},
	"not_in_negotiation":  {Title: "Not Allowed", Message: "You are not part of this negotiation"},
}

var networkNotice = Notice{Title: "Network Error", Message: "Connection failed. Check your internet or server status."}

// Classify derives the user-facing notice for a failure. It never panics;
// anything unrecognized degrades to a generic notice carrying the raw
// message.
func Classify(err error) Notice {
	if err == nil {
		return Notice{Title: "Error", Message: "Unknown error"}
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return classifyAPI(apiErr)
	}

	// Transport-level failures never obtained an HTTP status.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return networkNotice
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return networkNotice
	}

	return Notice{Title: "Error", Message: err.Error()}
}

func classifyAPI(apiErr *Error) Notice {
	if apiErr.Code != "" {
		if n, ok := codeRules[apiErr.Code]; ok {
			return n
		}
	}
	for _, r := range rules {
		if r.status == apiErr.Status && strings.Contains(apiErr.Message, r.contains) {
			return r.notice
		}
	}
	if n, ok := fallbacks[apiErr.Status]; ok {
		return n
	}
	return Notice{Title: "Error", Message: apiErr.Error()}
}
