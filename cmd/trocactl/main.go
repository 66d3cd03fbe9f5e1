// trocactl is a small developer console for the marketplace API: it can run
// the in-memory backend for local work and poke the main endpoints through
// the SDK.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/troca-app/troca-go/apierr"
	"github.com/troca-app/troca-go/cache"
	"github.com/troca-app/troca-go/cache/memory"
	"github.com/troca-app/troca-go/cache/sqlite"
	"github.com/troca-app/troca-go/config"
	"github.com/troca-app/troca-go/httpx"
	"github.com/troca-app/troca-go/internal/fakeserver"
	"github.com/troca-app/troca-go/market"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "trocactl:", err)
		os.Exit(1)
	}
}

func usage() error {
	fmt.Fprintln(os.Stderr, `usage: trocactl <command> [flags]

commands:
  serve        run the in-memory development backend
  states       list states with registered cities
  cities       list cities for a state: trocactl cities SP
  categories   list item categories
  items        browse listings: trocactl items [-search q] [-category c]
  item         show one listing: trocactl item <id>
  offers       list your offers: trocactl offers -user u -pass p`)
	return fmt.Errorf("missing or unknown command")
}

func run(args []string) error {
	if len(args) == 0 {
		return usage()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	ctx := context.Background()

	if args[0] == "serve" {
		fs := flag.NewFlagSet("serve", flag.ExitOnError)
		addr := fs.String("addr", ":5887", "listen address")
		_ = fs.Parse(args[1:])
		logger.Info().Str("addr", *addr).Msg("starting development backend")
		return fakeserver.New().Start(*addr)
	}

	m := market.New(newHTTPClient(cfg, logger))

	switch args[0] {
	case "states":
		states, err := m.Locations.States(ctx)
		if err != nil {
			return err
		}
		for _, s := range states {
			fmt.Println(s)
		}
		return nil

	case "cities":
		if len(args) < 2 {
			return fmt.Errorf("usage: trocactl cities <state>")
		}
		cities, err := m.Locations.Cities(ctx, args[1])
		if err != nil {
			return err
		}
		for _, c := range cities {
			fmt.Println(c)
		}
		return nil

	case "categories":
		cats, err := m.Items.Categories(ctx)
		if err != nil {
			return err
		}
		for _, c := range cats {
			fmt.Println(c)
		}
		return nil

	case "items":
		fs := flag.NewFlagSet("items", flag.ExitOnError)
		search := fs.String("search", "", "search in title and description")
		category := fs.String("category", "", "filter by category")
		state := fs.String("state", "", "filter by state code")
		page := fs.Int("page", 1, "result page")
		_ = fs.Parse(args[1:])

		filter := market.ItemFilter{Search: *search, Page: *page}
		if *category != "" {
			filter.Categories = []string{*category}
		}
		if *state != "" {
			filter.States = []string{*state}
		}
		res, err := m.Items.List(ctx, filter)
		if err != nil {
			return err
		}
		for _, it := range res.Items {
			fmt.Printf("%6d  %-12s %-20s %s\n", it.ID, it.Status, it.Category, it.Title)
		}
		fmt.Printf("page %d/%d, %d items\n", res.Page, res.TotalPages, res.TotalItems)
		return nil

	case "item":
		if len(args) < 2 {
			return fmt.Errorf("usage: trocactl item <id>")
		}
		id, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid item id %q", args[1])
		}
		it, err := m.Items.Get(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("#%d %s\nowner: %s\ncategory: %s\nstatus: %s\nlocation: %s\n%s\n",
			it.ID, it.Title, it.OwnerUsername, it.Category, it.Status, it.Location, it.Description)
		return nil

	case "offers":
		fs := flag.NewFlagSet("offers", flag.ExitOnError)
		user := fs.String("user", "", "username")
		pass := fs.String("pass", "", "password")
		_ = fs.Parse(args[1:])
		if *user == "" || *pass == "" {
			return fmt.Errorf("offers requires -user and -pass")
		}
		if _, err := m.Auth.Login(ctx, *user, *pass); err != nil {
			return err
		}
		mine, err := m.Offers.Mine(ctx)
		if err != nil {
			return err
		}
		for _, o := range mine {
			title := "(item gone)"
			if o.Item != nil {
				title = o.Item.Title
			}
			fmt.Printf("%6d  %-22s %8.2f  %s\n", o.Offer.ID, o.Offer.Status, o.Offer.Price, title)
		}
		return nil

	default:
		return usage()
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(lvl).With().Timestamp().Logger()
}

func newHTTPClient(cfg config.Config, logger zerolog.Logger) *httpx.Client {
	var store cache.Store
	if cfg.CachePath != "" {
		s, err := sqlite.Open(cfg.CachePath)
		if err != nil {
			logger.Warn().Err(err).Msg("sqlite cache unavailable, using memory")
		} else {
			store = s
		}
	}
	if store == nil {
		store = memory.NewStore(memory.Options{MaxEntries: cfg.CacheMaxEntries})
	}

	presenter := func(n apierr.Notice) {
		fmt.Fprintf(os.Stderr, "%s: %s\n", n.Title, n.Message)
		if n.ActionText != "" {
			fmt.Fprintf(os.Stderr, "  -> %s (%s)\n", n.ActionText, n.ActionHref)
		}
	}

	return httpx.NewClient(
		httpx.WithBaseURL(cfg.BaseURL),
		httpx.WithClientTimeout(cfg.Timeout),
		httpx.WithCache(store),
		httpx.WithPresenter(presenter),
		httpx.WithLogger(logger),
	)
}
