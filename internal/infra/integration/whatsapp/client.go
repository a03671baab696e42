package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/xavierca1/leadsync/internal/infra/integration/httpx"
)

type Config struct {
	BaseURL     string
	AccessToken string
	PhoneID     string
	Language    string
}

type Client struct {
	api *httpx.Client
	cfg Config
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.facebook.com/v18.0"
	}
	if cfg.Language == "" {
		cfg.Language = "en_US"
	}
	api := httpx.New("whatsapp", cfg.BaseURL, 10*time.Second)
	api.Authorize = func(_ context.Context, req *http.Request) error {
		if cfg.AccessToken == "" || cfg.PhoneID == "" {
			return errors.New("whatsapp not configured")
		}
		req.Header.Set("Authorization", "Bearer "+cfg.AccessToken)
		return nil
	}
	return &Client{api: api, cfg: cfg}
}

// SendMessage sends a template message and returns the provider message id.
func (c *Client) SendMessage(ctx context.Context, input SendMessageInput) (string, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                input.PhoneNumber,
		"type":              "template",
		"template": map[string]any{
			"name":     input.TemplateName,
			"language": map[string]string{"code": c.cfg.Language},
			"components": []map[string]any{
				{
					"type":       "body",
					"parameters": convertParametersToAPI(input.Parameters),
				},
			},
		},
	}

	var result SendMessageResponse
	if err := c.api.Do(ctx, http.MethodPost, fmt.Sprintf("/%s/messages", c.cfg.PhoneID), payload, &result); err != nil {
		return "", err
	}
	if result.Error != nil {
		return "", fmt.Errorf("whatsapp: %s (code %d)", result.Error.Message, result.Error.Code)
	}
	if len(result.Messages) == 0 {
		return "", errors.New("whatsapp did not return a message id")
	}
	return result.Messages[0].ID, nil
}

func convertParametersToAPI(params []string) []map[string]string {
	result := make([]map[string]string, 0, len(params))
	for _, param := range params {
		result = append(result, map[string]string{
			"type": "text",
			"text": param,
		})
	}
	return result
}
