package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/wanderapp/wander/internal/models"
)

// GeocodeClient resolves coordinates to a locality via the reverse-geocode
// collaborator (BigDataCloud-shaped response).
type GeocodeClient struct {
	caller
	apiURL string
}

// NewGeocodeClient creates a reverse-geocode client against apiURL.
func NewGeocodeClient(apiURL string, timeout time.Duration, retry Retry) *GeocodeClient {
	return &GeocodeClient{
		caller: newCaller("geocode", timeout, retry),
		apiURL: apiURL,
	}
}

type geocodeResponse struct {
	City        string `json:"city"`
	Locality    string `json:"locality"`
	CountryName string `json:"countryName"`
}

// ReverseGeocode returns the address for coords. City falls back to the
// provider's locality field when city is empty.
func (c *GeocodeClient) ReverseGeocode(ctx context.Context, coords models.Coordinates) (models.Address, error) {
	base, err := url.Parse(c.apiURL)
	if err != nil {
		return models.Address{}, fmt.Errorf("invalid geocode URL: %w", err)
	}
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(coords.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(coords.Longitude, 'f', -1, 64))
	params.Set("localityLanguage", "en")
	base.RawQuery = params.Encode()

	var resp geocodeResponse
	if err := c.getJSON(ctx, base.String(), &resp); err != nil {
		return models.Address{}, err
	}

	city := resp.City
	if city == "" {
		city = resp.Locality
	}
	return models.Address{City: city, Country: resp.CountryName}, nil
}
