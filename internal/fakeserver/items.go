package fakeserver

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

var validDurations = map[int]bool{1: true, 7: true, 15: true, 30: true}

var (
	errInvalidFileType   = errors.New("Invalid file type")
	errInvalidImageOrder = errors.New("Invalid image order")
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

func itemJSON(it *item, owner *user) map[string]any {
	ownerName := ""
	if owner != nil {
		ownerName = owner.Username
	}
	location := it.City
	if it.City != "" && it.State != "" {
		location = it.City + " - " + it.State
	}
	images := make([]map[string]any, 0, len(it.Images))
	for _, img := range it.Images {
		images = append(images, map[string]any{
			"id":       img.ID,
			"url":      img.URL,
			"position": img.Position,
		})
	}
	return map[string]any{
		"id":             it.ID,
		"owner_id":       it.OwnerID,
		"owner_username": ownerName,
		"title":          it.Title,
		"description":    it.Description,
		"category":       it.Category,
		"image_url":      it.ImageURL,
		"images":         images,
		"offer_type":     it.OfferType,
		"volume":         it.Volume,
		"location":       location,
		"duration_days":  it.DurationDays,
		"created_at":     it.CreatedAt,
		"status":         it.Status,
		"expires_at":     it.ExpiresAt,
	}
}

func (s *Server) listCategories(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"categories": categories})
}

func (s *Server) listItems(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	if pageSize < 1 {
		pageSize = 20
	}
	status := c.QueryParam("status")
	if status == "" {
		status = "ativo"
	}
	search := strings.ToLower(strings.TrimSpace(c.QueryParam("search")))
	ownerID, _ := strconv.Atoi(c.QueryParam("owner_id"))
	offerType := c.QueryParam("offer_type")
	wantCategories := csvSet(c.QueryParam("categories"))
	wantStates := csvSet(c.QueryParam("states"))
	wantCities := csvSet(c.QueryParam("cities"))

	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*item
	for _, it := range s.items {
		if status != "all" && it.Status != status {
			continue
		}
		if ownerID > 0 && it.OwnerID != ownerID {
			continue
		}
		if offerType != "" && it.OfferType != offerType {
			continue
		}
		if len(wantCategories) > 0 && !wantCategories[it.Category] {
			continue
		}
		if len(wantStates) > 0 && !wantStates[it.State] {
			continue
		}
		if len(wantCities) > 0 && !wantCities[it.City] {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(it.Title), search) &&
			!strings.Contains(strings.ToLower(it.Description), search) {
			continue
		}
		matched = append(matched, it)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	totalPages := (total + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	items := make([]map[string]any, 0, end-start)
	for _, it := range matched[start:end] {
		items = append(items, itemJSON(it, s.users[it.OwnerID]))
	}

	return c.JSON(http.StatusOK, map[string]any{
		"items":       items,
		"page":        page,
		"page_size":   pageSize,
		"total_items": total,
		"total_pages": totalPages,
	})
}

func csvSet(raw string) map[string]bool {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	set := map[string]bool{}
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = true
		}
	}
	return set
}

func (s *Server) createItem(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.currentUser(c)
	if u == nil {
		return fail(c, http.StatusUnauthorized, "Not authenticated")
	}

	title := strings.TrimSpace(c.FormValue("title"))
	category := c.FormValue("category")
	durationRaw := c.FormValue("duration_days")
	if title == "" || category == "" || durationRaw == "" {
		return fail(c, http.StatusBadRequest, "Missing required fields")
	}
	duration, err := strconv.Atoi(durationRaw)
	if err != nil || !validDurations[duration] {
		return fail(c, http.StatusBadRequest, "Invalid duration")
	}

	imageURL := ""
	if fh, err := c.FormFile("image"); err == nil {
		if !imageExts[strings.ToLower(filepath.Ext(fh.Filename))] {
			return fail(c, http.StatusUnsupportedMediaType, "Invalid file type")
		}
		imageURL = "/uploads/" + fh.Filename
	}

	var extras []itemImage
	if form, err := c.MultipartForm(); err == nil {
		for i, fh := range form.File["images"] {
			if !imageExts[strings.ToLower(filepath.Ext(fh.Filename))] {
				return fail(c, http.StatusUnsupportedMediaType, "Invalid file type")
			}
			extras = append(extras, itemImage{
				ID:       s.allocID(),
				URL:      "/uploads/" + fh.Filename,
				Position: i + 1,
			})
		}
	}

	volume, _ := strconv.ParseFloat(c.FormValue("volume"), 64)

	it := &item{
		ID:           s.allocID(),
		OwnerID:      u.ID,
		Title:        title,
		Description:  c.FormValue("description"),
		Category:     category,
		ImageURL:     imageURL,
		Images:       extras,
		OfferType:    c.FormValue("offer_type"),
		Volume:       volume,
		State:        c.FormValue("state"),
		City:         c.FormValue("city"),
		Address:      c.FormValue("address"),
		DurationDays: duration,
		Status:       "ativo",
		CreatedAt:    now(),
	}
	s.items[it.ID] = it

	return c.JSON(http.StatusCreated, map[string]any{
		"message": "Item created successfully",
		"item_id": it.ID,
	})
}

func (s *Server) getItem(c echo.Context) error {
	id, _ := strconv.Atoi(c.Param("id"))

	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return fail(c, http.StatusNotFound, "item not found")
	}
	return c.JSON(http.StatusOK, itemJSON(it, s.users[it.OwnerID]))
}

func (s *Server) updateItem(c echo.Context) error {
	id, _ := strconv.Atoi(c.Param("id"))

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.currentUser(c)
	if u == nil {
		return fail(c, http.StatusUnauthorized, "Not authenticated")
	}
	it, ok := s.items[id]
	if !ok {
		return fail(c, http.StatusNotFound, "item not found")
	}
	if it.OwnerID != u.ID {
		return fail(c, http.StatusForbidden, "Not authorized")
	}

	fields := map[string]string{}
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		var body map[string]any
		if err := c.Bind(&body); err != nil {
			return fail(c, http.StatusBadRequest, "Missing required fields")
		}
		for k, v := range body {
			fields[k] = fmt.Sprint(v)
		}
	} else {
		for _, k := range []string{"title", "description", "category", "offer_type", "volume", "state", "city", "address", "duration_days"} {
			if v := c.FormValue(k); v != "" {
				fields[k] = v
			}
		}
		if fh, err := c.FormFile("image"); err == nil {
			if !imageExts[strings.ToLower(filepath.Ext(fh.Filename))] {
				return fail(c, http.StatusUnsupportedMediaType, "Invalid file type")
			}
			it.ImageURL = "/uploads/" + fh.Filename
		}
		if err := s.applyImageChanges(c, it); err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, errInvalidFileType) {
				status = http.StatusUnsupportedMediaType
			}
			return fail(c, status, err.Error())
		}
	}

	if v, ok := fields["title"]; ok {
		it.Title = v
	}
	if v, ok := fields["description"]; ok {
		it.Description = v
	}
	if v, ok := fields["category"]; ok {
		it.Category = v
	}
	if v, ok := fields["offer_type"]; ok {
		it.OfferType = v
	}
	if v, ok := fields["volume"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			it.Volume = f
		}
	}
	if v, ok := fields["state"]; ok {
		it.State = v
	}
	if v, ok := fields["city"]; ok {
		it.City = v
	}
	if v, ok := fields["address"]; ok {
		it.Address = v
	}
	if v, ok := fields["duration_days"]; ok {
		if d, err := strconv.Atoi(v); err == nil {
			if !validDurations[d] {
				return fail(c, http.StatusBadRequest, "Invalid duration")
			}
			it.DurationDays = d
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message": "Item updated successfully",
		"item":    itemJSON(it, u),
	})
}

func (s *Server) deleteItem(c echo.Context) error {
	id, _ := strconv.Atoi(c.Param("id"))

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.currentUser(c)
	if u == nil {
		return fail(c, http.StatusUnauthorized, "Not authenticated")
	}
	it, ok := s.items[id]
	if !ok {
		return fail(c, http.StatusNotFound, "item not found")
	}
	if it.OwnerID != u.ID {
		return fail(c, http.StatusForbidden, "Not authorized")
	}

	it.Status = "cancelado"
	for _, o := range s.offers {
		if o.ItemID == it.ID && o.Status == "ativo" {
			o.Status = "cancelado"
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Item canceled"})
}

func (s *Server) uploadItemImage(c echo.Context) error {
	id, _ := strconv.Atoi(c.Param("id"))

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.currentUser(c)
	if u == nil {
		return fail(c, http.StatusUnauthorized, "Not authenticated")
	}
	it, ok := s.items[id]
	if !ok {
		return fail(c, http.StatusNotFound, "item not found")
	}
	if it.OwnerID != u.ID {
		return fail(c, http.StatusForbidden, "Not authorized")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return fail(c, http.StatusBadRequest, "Missing required fields")
	}
	if !imageExts[strings.ToLower(filepath.Ext(fh.Filename))] {
		return fail(c, http.StatusUnsupportedMediaType, "Invalid file type")
	}

	url := fmt.Sprintf("/uploads/%d/%s", it.ID, fh.Filename)
	it.Images = append(it.Images, itemImage{
		ID:       s.allocID(),
		URL:      url,
		Position: len(it.Images) + 1,
	})
	return c.JSON(http.StatusCreated, map[string]string{"image_url": url})
}

// applyImageChanges handles the image parts of a multipart item update:
// newly uploaded extras, deletions, and the submitted display order. Order
// entries are existing image IDs or "new:<n>" for the nth upload of this
// same request.
func (s *Server) applyImageChanges(c echo.Context, it *item) error {
	form, err := c.MultipartForm()
	if err != nil {
		return nil
	}

	var added []int
	for _, fh := range form.File["images"] {
		if !imageExts[strings.ToLower(filepath.Ext(fh.Filename))] {
			return errInvalidFileType
		}
		img := itemImage{
			ID:       s.allocID(),
			URL:      "/uploads/" + fh.Filename,
			Position: len(it.Images) + 1,
		}
		it.Images = append(it.Images, img)
		added = append(added, img.ID)
	}

	for _, raw := range form.Value["delete_image_ids"] {
		id, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		for i, img := range it.Images {
			if img.ID == id {
				it.Images = append(it.Images[:i], it.Images[i+1:]...)
				break
			}
		}
	}

	if order := c.FormValue("new_image_order"); order != "" {
		byID := map[int]itemImage{}
		for _, img := range it.Images {
			byID[img.ID] = img
		}
		var reordered []itemImage
		for pos, ref := range strings.Split(order, ",") {
			ref = strings.TrimSpace(ref)
			var id int
			if n, ok := strings.CutPrefix(ref, "new:"); ok {
				idx, err := strconv.Atoi(n)
				if err != nil || idx < 1 || idx > len(added) {
					return errInvalidImageOrder
				}
				id = added[idx-1]
			} else {
				parsed, err := strconv.Atoi(ref)
				if err != nil {
					return errInvalidImageOrder
				}
				id = parsed
			}
			img, ok := byID[id]
			if !ok {
				return errInvalidImageOrder
			}
			delete(byID, id)
			img.Position = pos + 1
			reordered = append(reordered, img)
		}
		// images left out of the order keep their relative placement at the end
		for _, img := range it.Images {
			if left, ok := byID[img.ID]; ok {
				left.Position = len(reordered) + 1
				reordered = append(reordered, left)
			}
		}
		it.Images = reordered
	}
	return nil
}
