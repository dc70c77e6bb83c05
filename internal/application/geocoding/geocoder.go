package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned when the geocoder has no match for an address.
var ErrNotFound = errors.New("geocoding: address not found")

type Address struct {
	Street string
	City   string
	State  string
	Zip    string
}

// Query joins the non-empty parts into a single free-form search string.
func (a Address) Query() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Street, a.City, a.State, a.Zip} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Geocoder resolves addresses to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, addr Address) (Coordinates, error)
}

// maxResponseBytes caps how much of an upstream response is read.
const maxResponseBytes = 1 << 20

var defaultHTTPClient = &http.Client{Timeout: 10 * time.Second}

// NominatimClient is a Geocoder backed by an OSM Nominatim compatible /search endpoint.
// It is safe for concurrent use; a nil Client uses a shared default.
type NominatimClient struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Client    *http.Client
}

type nominatimPlace struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func (c *NominatimClient) Geocode(ctx context.Context, addr Address) (Coordinates, error) {
	client := c.Client
	if client == nil {
		client = defaultHTTPClient
	}
	if c.BaseURL == "" {
		return Coordinates{}, fmt.Errorf("geocoding: GEOCODER_URL is not set")
	}
	q := addr.Query()
	if q == "" {
		return Coordinates{}, ErrNotFound
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("format", "json")
	params.Set("limit", "1")
	endpoint := strings.TrimRight(c.BaseURL, "/") + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Coordinates{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocoding request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocoding: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Coordinates{}, fmt.Errorf("geocoding error: status %d body: %s", resp.StatusCode, snippet(body))
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return Coordinates{}, fmt.Errorf("geocoding: decode response: %w", err)
	}
	if len(places) == 0 {
		return Coordinates{}, ErrNotFound
	}
	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocoding: bad latitude %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocoding: bad longitude %q: %w", places[0].Lon, err)
	}
	return Coordinates{Latitude: lat, Longitude: lon}, nil
}

// snippet trims an upstream error body for inclusion in an error message.
func snippet(body []byte) string {
	const max = 256
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
