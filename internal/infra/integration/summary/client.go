package summary

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/xavierca1/leadsync/internal/infra/integration/httpx"
)

// Client calls the summary provider. It authenticates with client
// credentials and caches the token until shortly before it expires.
type Client struct {
	api          *httpx.Client
	auth         *httpx.Client
	ClientID     string
	ClientSecret string

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	now         func() time.Time
}

func NewClient(baseURL, clientID, clientSecret string) *Client {
	c := &Client{
		api:          httpx.New("summary", baseURL, 30*time.Second),
		auth:         httpx.New("summary-auth", baseURL, 10*time.Second),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		now:          time.Now,
	}
	c.api.Authorize = func(ctx context.Context, req *http.Request) error {
		token, err := c.ensureAuthenticated(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	}
	return c
}

func (c *Client) ensureAuthenticated(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Add(30*time.Second).Before(c.tokenExpiry) {
		return c.token, nil
	}
	if c.ClientID == "" || c.ClientSecret == "" {
		return "", errors.New("summary provider not configured")
	}

	var data struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expires_in"`
	}
	payload := map[string]string{
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
	}
	if err := c.auth.Do(ctx, http.MethodPost, "/authentication", payload, &data); err != nil {
		return "", fmt.Errorf("summary authentication failed: %w", err)
	}
	if data.Token == "" {
		return "", errors.New("summary authentication returned no token")
	}

	exp := data.ExpiresIn
	if exp == 0 {
		exp = 3600
	}
	c.token = data.Token
	c.tokenExpiry = c.now().Add(time.Duration(exp) * time.Second)
	return c.token, nil
}

type SummarizeInput struct {
	Reference string `json:"reference"`
	Text      string `json:"text"`
	Language  string `json:"language,omitempty"`
}

type SummarizeOutput struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
}

func (c *Client) Summarize(ctx context.Context, input SummarizeInput) (*SummarizeOutput, error) {
	var out SummarizeOutput
	if err := c.api.Do(ctx, http.MethodPost, "/summaries", input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
