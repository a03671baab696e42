package directory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/xavierca1/leadsync/internal/infra/integration/httpx"
	"github.com/xavierca1/leadsync/internal/usecase"
)

// Client talks to the retailer directory. It resolves accounts and
// locations for validation and registers leads against locations.
type Client struct {
	api *httpx.Client
}

func NewClient(baseURL, apiKey string) *Client {
	api := httpx.New("directory", baseURL, 10*time.Second)
	api.Authorize = func(_ context.Context, req *http.Request) error {
		if apiKey != "" {
			req.Header.Set("X-Api-Key", apiKey)
		}
		return nil
	}
	return &Client{api: api}
}

func (c *Client) GetAccount(ctx context.Context, universalRetailerID string) (*usecase.Account, error) {
	var account usecase.Account
	err := c.api.Do(ctx, http.MethodGet, "/accounts/"+url.PathEscape(universalRetailerID), nil, &account)
	if httpx.IsNotFound(err) {
		return nil, usecase.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *Client) GetLocation(ctx context.Context, universalRetailerID, locationID string) (*usecase.Location, error) {
	path := fmt.Sprintf("/accounts/%s/locations/%s", url.PathEscape(universalRetailerID), url.PathEscape(locationID))
	var location usecase.Location
	err := c.api.Do(ctx, http.MethodGet, path, nil, &location)
	if httpx.IsNotFound(err) {
		return nil, usecase.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &location, nil
}

func (c *Client) RegisterLead(ctx context.Context, input LeadInput) (string, error) {
	path := fmt.Sprintf("/accounts/%s/locations/%s/leads", url.PathEscape(input.UniversalRetailerID), url.PathEscape(input.LocationID))
	var out registerResponse
	if err := c.api.Do(ctx, http.MethodPut, path, input, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return input.LeadID, nil
	}
	return out.ID, nil
}

func (c *Client) UpdateLead(ctx context.Context, entryID string, input LeadInput) error {
	return c.api.Do(ctx, http.MethodPatch, "/leads/"+url.PathEscape(entryID), input, nil)
}

func (c *Client) CloseLead(ctx context.Context, entryID, reason string) error {
	err := c.api.Do(ctx, http.MethodPost, "/leads/"+url.PathEscape(entryID)+"/close", closeRequest{Reason: reason}, nil)
	if httpx.IsNotFound(err) {
		return nil
	}
	return err
}

type LeadInput struct {
	LeadID              string `json:"leadId"`
	LeadType            string `json:"leadType"`
	UniversalRetailerID string `json:"universalRetailerId"`
	LocationID          string `json:"locationId"`
	Name                string `json:"name"`
	PhoneNumber         string `json:"phoneNumber"`
	Email               string `json:"email,omitempty"`
	Message             string `json:"message,omitempty"`
	Status              string `json:"status"`
}

type registerResponse struct {
	ID string `json:"id"`
}

type closeRequest struct {
	Reason string `json:"reason,omitempty"`
}
