package numberintel

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/xavierca1/leadsync/internal/infra/integration/httpx"
	"github.com/xavierca1/leadsync/internal/usecase"
)

// Client looks up carrier, line type and opt-out data for phone numbers.
type Client struct {
	api *httpx.Client
}

func NewClient(baseURL, apiKey string) *Client {
	api := httpx.New("numberintel", baseURL, 5*time.Second)
	api.Authorize = func(_ context.Context, req *http.Request) error {
		if apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}
		return nil
	}
	return &Client{api: api}
}

type lookupResponse struct {
	PhoneNumber string `json:"phoneNumber"`
	Valid       bool   `json:"valid"`
	LineType    string `json:"lineType"`
	OptedOut    bool   `json:"optedOut"`
	Blocked     bool   `json:"blocked"`
}

// Lookup reports unknown numbers as invalid rather than as an error.
func (c *Client) Lookup(ctx context.Context, phoneNumber string) (*usecase.NumberInfo, error) {
	var out lookupResponse
	err := c.api.Do(ctx, http.MethodGet, "/numbers/"+url.PathEscape(phoneNumber), nil, &out)
	if httpx.IsNotFound(err) {
		return &usecase.NumberInfo{PhoneNumber: phoneNumber, Valid: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &usecase.NumberInfo{
		PhoneNumber: phoneNumber,
		Valid:       out.Valid,
		LineType:    out.LineType,
		OptedOut:    out.OptedOut,
		Blocked:     out.Blocked,
	}, nil
}
