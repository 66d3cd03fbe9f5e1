package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/troca-app/troca-go/httpx"
)

type LocationsService struct {
	http *httpx.Client
}

// States lists the state codes that have registered cities, sorted.
func (s *LocationsService) States(ctx context.Context) ([]string, error) {
	var states []string
	_, err := s.http.Get(ctx, "/locations/states", nil, true, httpx.WithResult(&states))
	if err != nil {
		return nil, fmt.Errorf("fetch states: %w", err)
	}
	return states, nil
}

var errEmptyState = errors.New("market: state code is required")

// CitiesForStates maps each requested state code to its cities. Blank and
// duplicate codes are dropped before the call; asking for nothing returns an
// empty map without touching the network.
func (s *LocationsService) CitiesForStates(ctx context.Context, states []string) (map[string][]string, error) {
	seen := map[string]bool{}
	var kept []string
	for _, st := range states {
		st = strings.TrimSpace(st)
		if st == "" || seen[st] {
			continue
		}
		seen[st] = true
		kept = append(kept, st)
	}
	if len(kept) == 0 {
		return map[string][]string{}, nil
	}

	params := url.Values{}
	params.Set("states", strings.Join(kept, ","))

	raw, err := s.http.Get(ctx, "/locations/cities", params, true)
	if err != nil {
		return nil, fmt.Errorf("fetch cities: %w", err)
	}
	return decodeCities(raw)
}

// decodeCities tolerates both the bare state-to-cities object and a {data:
// ...} envelope, and skips values that are not string arrays. The envelope
// is only unwrapped when "data" is the sole member and holds an object, so
// a state literally coded "data" survives intact.
func decodeCities(raw json.RawMessage) (map[string][]string, error) {
	var loose map[string]json.RawMessage
	if err := json.Unmarshal(raw, &loose); err != nil {
		return nil, fmt.Errorf("decode cities response: %w", err)
	}

	if inner, ok := loose["data"]; ok && len(loose) == 1 {
		var unwrapped map[string]json.RawMessage
		if err := json.Unmarshal(inner, &unwrapped); err == nil {
			loose = unwrapped
		}
	}

	out := make(map[string][]string, len(loose))
	for state, val := range loose {
		var cities []string
		if err := json.Unmarshal(val, &cities); err != nil {
			continue
		}
		out[state] = cities
	}
	return out, nil
}

// Cities returns one state's cities as a sorted list.
func (s *LocationsService) Cities(ctx context.Context, state string) ([]string, error) {
	state = strings.TrimSpace(state)
	if state == "" {
		return nil, errEmptyState
	}

	byState, err := s.CitiesForStates(ctx, []string{state})
	if err != nil {
		return nil, err
	}
	cities := byState[state]
	sort.Strings(cities)
	return cities, nil
}
