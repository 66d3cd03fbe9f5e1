package market

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/troca-app/troca-go/httpx"
)

type ItemsService struct {
	http *httpx.Client
}

// ImageFile is one upload: a file name (the extension drives server-side
// type checks) and its content.
type ImageFile struct {
	Name   string
	Reader io.Reader
}

// ImageRef identifies one image within a submitted display order: either an
// already-stored image by ID or a new upload by its 1-based position.
// Exactly one of the two must be set.
type ImageRef struct {
	ID     int
	Upload int
}

func (r ImageRef) valid() bool {
	return (r.ID > 0) != (r.Upload > 0)
}

func (r ImageRef) encode() string {
	if r.ID > 0 {
		return strconv.Itoa(r.ID)
	}
	return "new:" + strconv.Itoa(r.Upload)
}

// ItemFilter narrows a listing query. Zero values mean "no filter"; Status
// defaults to active and pagination to page 1 with 20 per page.
type ItemFilter struct {
	Categories []string
	States     []string
	Cities     []string
	OwnerID    int
	OfferType  string
	Search     string
	Status     ItemStatus
	Page       int
	PageSize   int
}

func (f ItemFilter) values() url.Values {
	page := f.Page
	if page < 1 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	status := f.Status
	if status == "" {
		status = ItemActive
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("page_size", strconv.Itoa(pageSize))
	params.Set("status", string(status))

	if search := strings.TrimSpace(f.Search); search != "" {
		params.Set("search", search)
	}
	if f.OwnerID > 0 {
		params.Set("owner_id", strconv.Itoa(f.OwnerID))
	}
	if f.OfferType != "" {
		params.Set("offer_type", f.OfferType)
	}
	if list := joinNonEmpty(f.Categories); list != "" {
		params.Set("categories", list)
	}
	if list := joinNonEmpty(f.States); list != "" {
		params.Set("states", list)
	}
	if list := joinNonEmpty(f.Cities); list != "" {
		params.Set("cities", list)
	}
	return params
}

func joinNonEmpty(values []string) string {
	var kept []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, ",")
}

func (s *ItemsService) List(ctx context.Context, filter ItemFilter) (*ItemPage, error) {
	var page ItemPage
	_, err := s.http.Get(ctx, "/items/", filter.values(), true, httpx.WithResult(&page))
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *ItemsService) Get(ctx context.Context, id int) (*Item, error) {
	var item Item
	_, err := s.http.Get(ctx, fmt.Sprintf("/items/%d", id), nil, true, httpx.WithResult(&item))
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// NewItem carries the listing form. Title, Category and DurationDays are
// required by the server; DurationDays must be 1, 7, 15 or 30.
type NewItem struct {
	Title        string
	Category     string
	DurationDays int
	Description  string
	OfferType    string
	Volume       *float64
	State        string
	City         string
	Address      string
	MainImage    *ImageFile
	ExtraImages  []ImageFile
}

func (s *ItemsService) Create(ctx context.Context, item NewItem) (int, error) {
	form := httpx.NewForm().
		AddField("title", item.Title).
		AddField("category", item.Category).
		AddField("duration_days", strconv.Itoa(item.DurationDays))

	if item.Description != "" {
		form.AddField("description", item.Description)
	}
	if item.OfferType != "" {
		form.AddField("offer_type", item.OfferType)
	}
	if item.Volume != nil {
		form.AddField("volume", strconv.FormatFloat(*item.Volume, 'f', -1, 64))
	}
	if item.State != "" {
		form.AddField("state", item.State)
	}
	if item.City != "" {
		form.AddField("city", item.City)
	}
	if item.Address != "" {
		form.AddField("address", item.Address)
	}
	if item.MainImage != nil {
		form.AddFile("image", item.MainImage.Name, item.MainImage.Reader)
	}
	for _, img := range item.ExtraImages {
		form.AddFile("images", img.Name, img.Reader)
	}

	var out struct {
		ItemID int `json:"item_id"`
	}
	_, err := s.http.FormRequest(ctx, "/items/", http.MethodPost, form, true, httpx.WithResult(&out))
	if err != nil {
		return 0, err
	}
	return out.ItemID, nil
}

// ItemUpdate patches a listing. Zero-value fields are left untouched. When
// images change hands (uploads, deletions, reordering) the update goes out
// as multipart; otherwise it's a plain JSON PUT.
type ItemUpdate struct {
	Title          string
	Description    string
	Category       string
	OfferType      string
	Volume         *float64
	State          string
	City           string
	Address        string
	DurationDays   int
	MainImage      *ImageFile
	ExtraImages    []ImageFile
	DeleteImageIDs []int
	ImageOrder     []ImageRef
}

func (u ItemUpdate) needsForm() bool {
	return u.MainImage != nil || len(u.ExtraImages) > 0 || len(u.DeleteImageIDs) > 0 || len(u.ImageOrder) > 0
}

var errBadImageOrder = errors.New("market: image order contains an unset reference")

func (s *ItemsService) Update(ctx context.Context, id int, update ItemUpdate) error {
	endpoint := fmt.Sprintf("/items/%d", id)

	if !update.needsForm() {
		body := map[string]any{}
		if update.Title != "" {
			body["title"] = update.Title
		}
		if update.Description != "" {
			body["description"] = update.Description
		}
		if update.Category != "" {
			body["category"] = update.Category
		}
		if update.OfferType != "" {
			body["offer_type"] = update.OfferType
		}
		if update.Volume != nil {
			body["volume"] = *update.Volume
		}
		if update.State != "" {
			body["state"] = update.State
		}
		if update.City != "" {
			body["city"] = update.City
		}
		if update.Address != "" {
			body["address"] = update.Address
		}
		if update.DurationDays > 0 {
			body["duration_days"] = update.DurationDays
		}
		_, err := s.http.Request(ctx, endpoint, true,
			httpx.WithMethod(http.MethodPut), httpx.WithBody(body))
		return err
	}

	order := make([]string, 0, len(update.ImageOrder))
	for _, ref := range update.ImageOrder {
		if !ref.valid() {
			return errBadImageOrder
		}
		order = append(order, ref.encode())
	}

	form := httpx.NewForm()
	if update.Title != "" {
		form.AddField("title", update.Title)
	}
	if update.Description != "" {
		form.AddField("description", update.Description)
	}
	if update.Category != "" {
		form.AddField("category", update.Category)
	}
	if update.OfferType != "" {
		form.AddField("offer_type", update.OfferType)
	}
	if update.Volume != nil {
		form.AddField("volume", strconv.FormatFloat(*update.Volume, 'f', -1, 64))
	}
	if update.State != "" {
		form.AddField("state", update.State)
	}
	if update.City != "" {
		form.AddField("city", update.City)
	}
	if update.Address != "" {
		form.AddField("address", update.Address)
	}
	if update.DurationDays > 0 {
		form.AddField("duration_days", strconv.Itoa(update.DurationDays))
	}
	if update.MainImage != nil {
		form.AddFile("image", update.MainImage.Name, update.MainImage.Reader)
	}
	for _, img := range update.ExtraImages {
		form.AddFile("images", img.Name, img.Reader)
	}
	for _, id := range update.DeleteImageIDs {
		form.AddField("delete_image_ids", strconv.Itoa(id))
	}
	if len(order) > 0 {
		form.AddField("new_image_order", strings.Join(order, ","))
	}

	_, err := s.http.FormRequest(ctx, endpoint, http.MethodPut, form, true)
	return err
}

// UploadImage attaches one extra image to an existing item and returns its
// URL.
func (s *ItemsService) UploadImage(ctx context.Context, id int, name string, r io.Reader) (string, error) {
	form := httpx.NewForm().AddFile("file", name, r)

	var out struct {
		ImageURL string `json:"image_url"`
	}
	_, err := s.http.FormRequest(ctx, fmt.Sprintf("/items/%d/images", id), http.MethodPost, form, true, httpx.WithResult(&out))
	if err != nil {
		return "", err
	}
	return out.ImageURL, nil
}

func (s *ItemsService) Delete(ctx context.Context, id int) error {
	_, err := s.http.Request(ctx, fmt.Sprintf("/items/%d", id), true, httpx.WithMethod(http.MethodDelete))
	return err
}

var errBadCategories = errors.New("market: invalid categories response")

func (s *ItemsService) Categories(ctx context.Context) ([]string, error) {
	var out struct {
		Categories []string `json:"categories"`
	}
	_, err := s.http.Get(ctx, "/items/categories", nil, true, httpx.WithResult(&out))
	if err != nil {
		return nil, fmt.Errorf("fetch item categories: %w", err)
	}
	if out.Categories == nil {
		return nil, errBadCategories
	}
	return out.Categories, nil
}
