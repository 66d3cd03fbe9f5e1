// Package fakeserver is an in-memory stand-in for the marketplace backend.
// It answers the same routes with the same payloads and error strings, which
// makes it good enough to run the SDK's end-to-end tests against and to back
// the CLI's serve command during development.
package fakeserver

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

type user struct {
	ID           int
	Username     string
	Email        string
	PasswordHash []byte
	CreatedAt    string
}

type itemImage struct {
	ID       int
	URL      string
	Position int
}

type item struct {
	ID           int
	OwnerID      int
	Title        string
	Description  string
	Category     string
	ImageURL     string
	Images       []itemImage
	OfferType    string
	Volume       float64
	State        string
	City         string
	Address      string
	DurationDays int
	Status       string
	CreatedAt    string
	ExpiresAt    string
}

type offer struct {
	ID              int
	UserID          int
	ItemID          int
	Price           float64
	Message         string
	Status          string
	CreatedAt       string
	OwnerConfirmed  bool
	BidderConfirmed bool
}

var categories = []string{
	"Eletrônicos", "Móveis", "Roupas", "Livros", "Esportes",
	"Ferramentas", "Brinquedos", "Outros",
}

var citiesByState = map[string][]string{
	"SP": {"São Paulo", "Campinas", "Santos"},
	"RJ": {"Rio de Janeiro", "Niterói"},
	"MG": {"Belo Horizonte", "Uberlândia"},
	"RS": {"Porto Alegre", "Caxias do Sul"},
}

// Server holds the whole backend state behind one mutex. Handlers are quick
// and the server exists to serve tests, so there is no point in anything
// finer grained.
type Server struct {
	echo *echo.Echo

	mu       sync.Mutex
	users    map[int]*user
	sessions map[string]int
	items    map[int]*item
	offers   map[int]*offer
	nextID   int
}

func New() *Server {
	s := &Server{
		users:    map[int]*user{},
		sessions: map[string]int{},
		items:    map[int]*item{},
		offers:   map[int]*offer{},
		nextID:   1,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api := e.Group("/api")
	api.POST("/auth/register", s.register)
	api.POST("/auth/login", s.login)
	api.GET("/auth/me", s.me)
	api.POST("/auth/logout", s.logout)

	api.GET("/items/", s.listItems)
	api.POST("/items/", s.createItem)
	api.GET("/items/categories", s.listCategories)
	api.GET("/items/:id", s.getItem)
	api.PUT("/items/:id", s.updateItem)
	api.DELETE("/items/:id", s.deleteItem)
	api.POST("/items/:id/images", s.uploadItemImage)

	api.POST("/offers/", s.createOffer)
	api.GET("/offers/my", s.myOffers)
	api.GET("/offers/item/:id", s.offersForItem)
	api.GET("/offers/:id", s.getOffer)
	api.PUT("/offers/:id", s.updateOffer)
	api.PATCH("/offers/:id/cancel", s.cancelOffer)
	api.PATCH("/offers/:id/confirm", s.confirmOffer)
	api.PATCH("/offers/:id/decline", s.declineOffer)

	api.GET("/locations/states", s.listStates)
	api.GET("/locations/cities", s.listCities)

	s.echo = e
	return s
}

// Handler exposes the server as a plain http.Handler for httptest or
// http.Server mounting.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr and blocks, for the CLI's serve command.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) allocID() int {
	id := s.nextID
	s.nextID++
	return id
}

func now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05")
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"msg": msg})
}

// currentUser resolves the session cookie. Callers hold s.mu.
func (s *Server) currentUser(c echo.Context) *user {
	cookie, err := c.Cookie("session")
	if err != nil {
		return nil
	}
	id, ok := s.sessions[cookie.Value]
	if !ok {
		return nil
	}
	return s.users[id]
}

func (s *Server) register(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Missing required fields")
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "Missing required fields")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == req.Username || u.Email == req.Email {
			return fail(c, http.StatusConflict, "Username or email already taken")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Internal server error")
	}

	u := &user{
		ID:           s.allocID(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    now(),
	}
	s.users[u.ID] = u

	return c.JSON(http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user_id": u.ID,
	})
}

func (s *Server) login(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusUnauthorized, "Invalid credentials")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var found *user
	for _, u := range s.users {
		if u.Username == req.Username {
			found = u
			break
		}
	}
	if found == nil || bcrypt.CompareHashAndPassword(found.PasswordHash, []byte(req.Password)) != nil {
		return fail(c, http.StatusUnauthorized, "Invalid credentials")
	}

	token := uuid.NewString()
	s.sessions[token] = found.ID
	c.SetCookie(&http.Cookie{
		Name:     "session",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	})

	return c.JSON(http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    userJSON(found),
	})
}

func (s *Server) me(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.currentUser(c)
	if u == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "not propperly logged in"})
	}
	return c.JSON(http.StatusOK, userJSON(u))
}

func (s *Server) logout(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cookie, err := c.Cookie("session"); err == nil {
		delete(s.sessions, cookie.Value)
	}
	c.SetCookie(&http.Cookie{Name: "session", Value: "", Path: "/", MaxAge: -1})
	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out"})
}

func userJSON(u *user) map[string]any {
	return map[string]any{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"created_at": u.CreatedAt,
	}
}

func (s *Server) listStates(c echo.Context) error {
	states := make([]string, 0, len(citiesByState))
	for st := range citiesByState {
		states = append(states, st)
	}
	sort.Strings(states)
	return c.JSON(http.StatusOK, states)
}

func (s *Server) listCities(c echo.Context) error {
	param := c.QueryParam("states")
	if strings.TrimSpace(param) == "" {
		return fail(c, http.StatusBadRequest, "Parâmetro 'states' obrigatório")
	}

	out := map[string][]string{}
	for _, st := range strings.Split(param, ",") {
		st = strings.TrimSpace(st)
		if st == "" {
			continue
		}
		cities, ok := citiesByState[st]
		if !ok {
			out[st] = []string{}
			continue
		}
		out[st] = cities
	}
	return c.JSON(http.StatusOK, out)
}

// ExpireItem runs the listing-expiry transition for one item, the job the
// real backend's scheduler performs when a listing window closes. The best
// active offer wins and moves to pending confirmation together with the
// item; with no offers the item simply expires.
func (s *Server) ExpireItem(itemID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[itemID]
	if !ok || it.Status != "ativo" {
		return false
	}

	var winner *offer
	for _, o := range s.offers {
		if o.ItemID != itemID || o.Status != "ativo" {
			continue
		}
		if winner == nil || o.Price > winner.Price {
			winner = o
		}
	}

	if winner == nil {
		it.Status = "expired"
		return true
	}

	winner.Status = "pendendo_confirmacao"
	it.Status = "pendendo_confirmacao"
	for _, o := range s.offers {
		if o.ItemID == itemID && o.ID != winner.ID && o.Status == "ativo" {
			o.Status = "cancelado"
		}
	}
	return true
}
