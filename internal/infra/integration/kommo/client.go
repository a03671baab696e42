package kommo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/xavierca1/leadsync/internal/infra/integration/httpx"
)

type Config struct {
	BaseURL        string
	APIToken       string
	PipelineID     int
	StatusID       int
	ClosedStatusID int
}

type Client struct {
	api *httpx.Client
	cfg Config
}

func NewClient(cfg Config) *Client {
	if cfg.ClosedStatusID == 0 {
		cfg.ClosedStatusID = 143
	}
	api := httpx.New("kommo", cfg.BaseURL, 15*time.Second)
	api.Authorize = func(_ context.Context, req *http.Request) error {
		if cfg.APIToken == "" {
			return errors.New("kommo not configured")
		}
		req.Header.Set("Authorization", "Bearer "+cfg.APIToken)
		return nil
	}
	return &Client{api: api, cfg: cfg}
}

// CreateLead files a lead against an existing or new contact and returns
// both ids.
func (c *Client) CreateLead(ctx context.Context, input CreateLeadInput) (contactID, leadID int, err error) {
	contactID, err = c.findOrCreateContact(ctx, input)
	if err != nil {
		return 0, 0, fmt.Errorf("kommo contact: %w", err)
	}

	lead := leadPayload{
		Name:       input.Title,
		PipelineID: c.cfg.PipelineID,
		StatusID:   c.cfg.StatusID,
		Embedded: &leadEmbedded{
			Tags:     tagsFor(input.Tags),
			Contacts: []idRef{{ID: contactID}},
		},
	}
	var result embeddedResponse
	if err := c.api.Do(ctx, http.MethodPost, "/leads", []leadPayload{lead}, &result); err != nil {
		return contactID, 0, err
	}
	if len(result.Embedded.Leads) == 0 {
		return contactID, 0, errors.New("kommo did not return the created lead")
	}
	return contactID, result.Embedded.Leads[0].ID, nil
}

// UpdateLead patches name and tags of an existing lead.
func (c *Client) UpdateLead(ctx context.Context, leadID int, input CreateLeadInput) error {
	lead := leadPayload{
		ID:       leadID,
		Name:     input.Title,
		Embedded: &leadEmbedded{Tags: tagsFor(input.Tags)},
	}
	return c.api.Do(ctx, http.MethodPatch, "/leads", []leadPayload{lead}, nil)
}

// CloseLead moves the lead to the closed status.
func (c *Client) CloseLead(ctx context.Context, leadID int, reason string) error {
	lead := leadPayload{ID: leadID, StatusID: c.cfg.ClosedStatusID}
	if reason != "" {
		lead.Embedded = &leadEmbedded{Tags: tagsFor([]string{"closed:" + reason})}
	}
	return c.api.Do(ctx, http.MethodPatch, "/leads", []leadPayload{lead}, nil)
}

func (c *Client) findOrCreateContact(ctx context.Context, input CreateLeadInput) (int, error) {
	contactID, err := c.findContactByPhone(ctx, input.Phone)
	if err == nil && contactID > 0 {
		return contactID, nil
	}
	return c.createContact(ctx, input)
}

func (c *Client) findContactByPhone(ctx context.Context, phone string) (int, error) {
	var result embeddedResponse
	if err := c.api.Do(ctx, http.MethodGet, "/contacts?query="+url.QueryEscape(phone), nil, &result); err != nil {
		return 0, err
	}
	if len(result.Embedded.Contacts) > 0 {
		return result.Embedded.Contacts[0].ID, nil
	}
	return 0, errors.New("contact not found")
}

func (c *Client) createContact(ctx context.Context, input CreateLeadInput) (int, error) {
	contact := contactPayload{
		Name: input.ContactName,
		CustomFields: []customField{
			{FieldCode: "PHONE", Values: []fieldValue{{Value: input.Phone, EnumCode: "WORK"}}},
		},
	}
	if input.Email != "" {
		contact.CustomFields = append(contact.CustomFields,
			customField{FieldCode: "EMAIL", Values: []fieldValue{{Value: input.Email, EnumCode: "WORK"}}})
	}

	var result embeddedResponse
	if err := c.api.Do(ctx, http.MethodPost, "/contacts", []contactPayload{contact}, &result); err != nil {
		return 0, err
	}
	if len(result.Embedded.Contacts) == 0 {
		return 0, errors.New("kommo did not return the created contact")
	}
	return result.Embedded.Contacts[0].ID, nil
}

func tagsFor(names []string) []tag {
	tags := make([]tag, 0, len(names))
	for _, n := range names {
		tags = append(tags, tag{Name: n})
	}
	return tags
}
