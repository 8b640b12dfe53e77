package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wanderapp/wander/internal/models"
	"github.com/wanderapp/wander/internal/place"
)

// defaultCategories is the category filter sent when config leaves it empty,
// matching the full set the app browses.
const defaultCategories = "accommodation,activity,airport,commercial,catering," +
	"emergency,education,childcare,entertainment,healthcare,heritage,highway," +
	"leisure,man_made,natural,office,parking,pet,power,production,railway," +
	"rental,service,tourism,religion,camping,amenity,beach,adult,building,ski," +
	"sport,public_transport,memorial"

// PlacesClient fetches nearby points of interest from the places
// collaborator (Geoapify-shaped response).
type PlacesClient struct {
	caller
	apiKey     string
	apiURL     string
	radius     int
	limit      int
	categories string
}

// NewPlacesClient creates a places client. The provider requires an API key;
// construction fails without one.
func NewPlacesClient(apiKey, apiURL string, radiusMeters, limit int, categories string, timeout time.Duration, retry Retry) (*PlacesClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if radiusMeters <= 0 {
		radiusMeters = 3000
	}
	if limit <= 0 {
		limit = 20
	}
	if strings.TrimSpace(categories) == "" {
		categories = defaultCategories
	}
	return &PlacesClient{
		caller:     newCaller("places", timeout, retry),
		apiKey:     apiKey,
		apiURL:     apiURL,
		radius:     radiusMeters,
		limit:      limit,
		categories: categories,
	}, nil
}

type placesResponse struct {
	Features []place.Feature `json:"features"`
}

// Nearby returns points of interest within the configured radius of coords,
// in provider order. A response without features yields an empty list, not
// an error.
func (c *PlacesClient) Nearby(ctx context.Context, coords models.Coordinates) ([]place.Feature, error) {
	base, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid places URL: %w", err)
	}
	params := url.Values{}
	params.Set("categories", c.categories)
	params.Set("filter", fmt.Sprintf("circle:%s,%s,%d",
		strconv.FormatFloat(coords.Longitude, 'f', -1, 64),
		strconv.FormatFloat(coords.Latitude, 'f', -1, 64),
		c.radius))
	params.Set("limit", strconv.Itoa(c.limit))
	params.Set("apiKey", c.apiKey)
	base.RawQuery = params.Encode()

	var resp placesResponse
	if err := c.getJSON(ctx, base.String(), &resp); err != nil {
		return nil, err
	}
	return resp.Features, nil
}
