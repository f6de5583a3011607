// Package geocode turns free-text addresses into coordinates through a
// Nominatim-compatible search API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/churchhub/internal/domain/models"
	"github.com/hashicorp/go-retryablehttp"
)

// DefaultBaseURL is the public OpenStreetMap Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// ErrEmptyQuery is returned when the address is blank.
var ErrEmptyQuery = errors.New("geocode: empty query")

// Config configures the client. Nominatim's usage policy requires a
// descriptive User-Agent.
type Config struct {
	BaseURL   string
	UserAgent string
	Country   string // ISO code passed as countrycodes, default "br"
	Limit     int    // default 5
}

// Address is the structured part of a result.
type Address struct {
	Road          string `json:"road,omitempty"`
	Neighbourhood string `json:"neighbourhood,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`
	Postcode      string `json:"postcode,omitempty"`
	Country       string `json:"country,omitempty"`
}

// Result is one candidate location.
type Result struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	DisplayName string  `json:"display_name"`
	Address     Address `json:"address"`
}

// Point returns the result's coordinates.
func (r Result) Point() models.LatLng { return models.LatLng{Lat: r.Lat, Lng: r.Lng} }

// Client queries the search endpoint.
type Client struct {
	cfg  Config
	http *retryablehttp.Client
}

// New builds a client with a small retry budget.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "churchhub/1.0"
	}
	if cfg.Country == "" {
		cfg.Country = "br"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 5
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = nil
	return &Client{cfg: cfg, http: rc}
}

type nominatimAddress struct {
	Road          string `json:"road"`
	Neighbourhood string `json:"neighbourhood"`
	City          string `json:"city"`
	Town          string `json:"town"`
	State         string `json:"state"`
	Postcode      string `json:"postcode"`
	Country       string `json:"country"`
}

type nominatimResult struct {
	Lat         string           `json:"lat"`
	Lon         string           `json:"lon"`
	DisplayName string           `json:"display_name"`
	Address     nominatimAddress `json:"address"`
}

// Search returns candidates for q, best first. No match is an empty slice.
func (c *Client) Search(ctx context.Context, q string) ([]Result, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrEmptyQuery
	}

	v := url.Values{}
	v.Set("q", q)
	v.Set("format", "jsonv2")
	v.Set("limit", strconv.Itoa(c.cfg.Limit))
	v.Set("addressdetails", "1")
	v.Set("countrycodes", c.cfg.Country)
	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/search?" + v.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode: status %d", resp.StatusCode)
	}

	var raw []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("geocode: decode: %w", err)
	}

	out := make([]Result, 0, len(raw))
	for _, r := range raw {
		lat, errLat := strconv.ParseFloat(r.Lat, 64)
		lng, errLng := strconv.ParseFloat(r.Lon, 64)
		if errLat != nil || errLng != nil {
			continue
		}
		city := r.Address.City
		if city == "" {
			city = r.Address.Town
		}
		out = append(out, Result{
			Lat:         lat,
			Lng:         lng,
			DisplayName: r.DisplayName,
			Address: Address{
				Road:          r.Address.Road,
				Neighbourhood: r.Address.Neighbourhood,
				City:          city,
				State:         r.Address.State,
				Postcode:      r.Address.Postcode,
				Country:       r.Address.Country,
			},
		})
	}
	return out, nil
}

// Locate returns the best match for address, or ok=false when there is none.
func (c *Client) Locate(ctx context.Context, address string) (models.LatLng, bool, error) {
	rs, err := c.Search(ctx, address)
	if err != nil || len(rs) == 0 {
		return models.LatLng{}, false, err
	}
	return rs[0].Point(), true, nil
}

// Locator resolves an address to a point. *Client implements it.
type Locator interface {
	Locate(ctx context.Context, address string) (models.LatLng, bool, error)
}

// LocatePlace fills p.Location from its address and UF when p has no
// coordinates yet. With a nil locator, no address, or no match, p is left
// unlocated; only a lookup failure is returned.
func LocatePlace(ctx context.Context, loc Locator, p *models.Place) error {
	if loc == nil || p.Location != nil || strings.TrimSpace(p.Address) == "" {
		return nil
	}
	q := p.Address
	if p.UF != "" && !strings.Contains(strings.ToUpper(q), p.UF) {
		q += ", " + p.UF
	}
	pt, ok, err := loc.Locate(ctx, q)
	if err != nil {
		return err
	}
	if ok {
		p.Location = &pt
	}
	return nil
}
