package client

import (
	"context"
	"fmt"
	"time"

	"github.com/wanderapp/wander/internal/models"
)

// IPLocateClient estimates the device position from its public IP. It is
// the position source of the location store; any failure here is a generic
// network failure from the caller's point of view.
type IPLocateClient struct {
	caller
	apiURL string
}

// NewIPLocateClient creates an IP-position client against apiURL.
func NewIPLocateClient(apiURL string, timeout time.Duration, retry Retry) *IPLocateClient {
	return &IPLocateClient{
		caller: newCaller("iplocate", timeout, retry),
		apiURL: apiURL,
	}
}

type ipLocateResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Locate returns the coordinates inferred from the caller's public IP.
func (c *IPLocateClient) Locate(ctx context.Context) (models.Coordinates, error) {
	var resp ipLocateResponse
	if err := c.getJSON(ctx, c.apiURL, &resp); err != nil {
		return models.Coordinates{}, err
	}
	if resp.Latitude == 0 && resp.Longitude == 0 {
		return models.Coordinates{}, fmt.Errorf("%w: response has no coordinates", ErrUpstreamFailure)
	}
	return models.Coordinates{Latitude: resp.Latitude, Longitude: resp.Longitude}, nil
}
